package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tnqbao/gau-review-orchestrator/entity"
	"github.com/tnqbao/gau-review-orchestrator/repository"
)

// baseFile is the YAML layout accepted by "base import".
//
//	bases:
//	  - base_id: appXXXX
//	    table_name: Projects
//	    custom_instructions: Only web games qualify.
//	    field_mappings:
//	      code_url: Code URL
//	      playable_url: Playable URL
type baseFile struct {
	Bases []baseDefinition `yaml:"bases"`
}

type baseDefinition struct {
	BaseID             string               `yaml:"base_id"`
	TableName          string               `yaml:"table_name"`
	CustomInstructions string               `yaml:"custom_instructions"`
	FieldMappings      entity.FieldMappings `yaml:"field_mappings"`
}

type importSummary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

var baseCmd = &cobra.Command{
	Use:   "base",
	Short: "Manage review bases",
}

var baseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the owner's review bases",
	RunE: func(cmd *cobra.Command, args []string) error {
		ownerID, err := owner()
		if err != nil {
			return err
		}
		bases, err := reviewService(false).ListBases(ownerID)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, bases)
		}
		for _, base := range bases {
			missing := base.FieldMappings.Data().Missing()
			fmt.Printf("#%-4d %s/%s  missing: %s\n", base.ID, base.BaseID, base.TableName, strings.Join(missing, ", "))
		}
		return nil
	},
}

var baseImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Create or update review bases from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ownerID, err := owner()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		defs, err := parseBaseFile(data)
		if err != nil {
			return err
		}
		summary, err := importBases(repo, ownerID, defs)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, summary)
		}
		fmt.Printf("%d bases created, %d updated\n", summary.Created, summary.Updated)
		return nil
	},
}

func init() {
	ownerFlag(baseCmd)
	baseCmd.AddCommand(baseListCmd, baseImportCmd)
	rootCmd.AddCommand(baseCmd)
}

func parseBaseFile(data []byte) ([]baseDefinition, error) {
	var file baseFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("invalid base file: %w", err)
	}
	if len(file.Bases) == 0 {
		return nil, errors.New("base file defines no bases")
	}

	seen := make(map[string]bool, len(file.Bases))
	for i := range file.Bases {
		def := &file.Bases[i]
		def.BaseID = strings.TrimSpace(def.BaseID)
		def.TableName = strings.TrimSpace(def.TableName)
		def.CustomInstructions = strings.TrimSpace(def.CustomInstructions)
		def.FieldMappings = def.FieldMappings.Normalize()

		if def.BaseID == "" || def.TableName == "" {
			return nil, fmt.Errorf("base %d: base_id and table_name are required", i+1)
		}
		key := def.BaseID + "/" + def.TableName
		if seen[key] {
			return nil, fmt.Errorf("base %s is defined twice", key)
		}
		seen[key] = true
	}
	return file.Bases, nil
}

// importBases applies every definition or none of them.
func importBases(repo *repository.Repository, ownerID uuid.UUID, defs []baseDefinition) (*importSummary, error) {
	summary := &importSummary{}
	err := repo.Transaction(func(tx *repository.Repository) error {
		for _, def := range defs {
			existing, err := tx.ReviewBaseRepo.FindByTable(ownerID, def.BaseID, def.TableName)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				base := &entity.ReviewBase{
					OwnerID:            ownerID,
					BaseID:             def.BaseID,
					TableName:          def.TableName,
					FieldMappings:      datatypes.NewJSONType(def.FieldMappings),
					CustomInstructions: def.CustomInstructions,
				}
				if err := tx.ReviewBaseRepo.Create(base); err != nil {
					return fmt.Errorf("failed to create %s/%s: %w", def.BaseID, def.TableName, err)
				}
				summary.Created++
				continue
			}
			if err != nil {
				return err
			}

			if err := tx.ReviewBaseRepo.UpdateMappings(existing.ID, ownerID, def.FieldMappings); err != nil {
				return fmt.Errorf("failed to update %s/%s: %w", def.BaseID, def.TableName, err)
			}
			if err := tx.ReviewBaseRepo.UpdateInstructions(existing.ID, ownerID, def.CustomInstructions); err != nil {
				return fmt.Errorf("failed to update %s/%s: %w", def.BaseID, def.TableName, err)
			}
			summary.Updated++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}
