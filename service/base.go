package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tnqbao/gau-review-orchestrator/analyzer"
	"github.com/tnqbao/gau-review-orchestrator/entity"
	"github.com/tnqbao/gau-review-orchestrator/infra"
)

const (
	searchSampleRecords = 100
	searchResultLimit   = 20
)

// BaseRegistration is a stored base plus the mapping keys detection left empty.
type BaseRegistration struct {
	Base    *entity.ReviewBase `json:"base"`
	Missing []string           `json:"missing_fields"`
}

// RecordMatch is one search hit with its mapped submission fields.
type RecordMatch struct {
	ID          string `json:"id"`
	CodeURL     string `json:"code_url,omitempty"`
	PlayableURL string `json:"playable_url,omitempty"`
	Summary     string `json:"summary"`
}

// RegisterBase samples the table, detects its field mappings and stores the configuration.
func (s *ReviewService) RegisterBase(ctx context.Context, ownerID uuid.UUID, baseID, tableName, instructions string) (*BaseRegistration, error) {
	baseID, tableName = strings.TrimSpace(baseID), strings.TrimSpace(tableName)
	if baseID == "" || tableName == "" {
		return nil, ErrEmptyIdentifier
	}

	if _, err := s.bases.FindByTable(ownerID, baseID, tableName); err == nil {
		return nil, ErrBaseExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up base: %w", err)
	}

	mappings, err := s.detect(ctx, baseID, tableName)
	if err != nil {
		return nil, err
	}

	base := &entity.ReviewBase{
		OwnerID:            ownerID,
		BaseID:             baseID,
		TableName:          tableName,
		FieldMappings:      datatypes.NewJSONType(mappings),
		CustomInstructions: instructions,
	}
	if err := s.bases.Create(base); err != nil {
		return nil, fmt.Errorf("failed to save base: %w", err)
	}

	missing := mappings.Missing()
	if len(missing) > 0 {
		s.logger.WarningWithContextf(ctx, "[Review] Base %s/%s registered without fields: %s", baseID, tableName, strings.Join(missing, ", "))
	} else {
		s.logger.InfoWithContextf(ctx, "[Review] Base %s/%s registered with all fields mapped", baseID, tableName)
	}
	return &BaseRegistration{Base: base, Missing: nonNilKeys(missing)}, nil
}

// RescanBase re-detects the field mappings of a stored base.
func (s *ReviewService) RescanBase(ctx context.Context, ownerID uuid.UUID, id uint64) (*BaseRegistration, error) {
	base, err := s.bases.FindByID(id, ownerID)
	if err != nil {
		return nil, notFound(err, ErrBaseNotFound)
	}

	mappings, err := s.detect(ctx, base.BaseID, base.TableName)
	if err != nil {
		return nil, err
	}
	if err := s.bases.UpdateMappings(id, ownerID, mappings); err != nil {
		return nil, fmt.Errorf("failed to save mappings: %w", err)
	}
	base.FieldMappings = datatypes.NewJSONType(mappings)
	return &BaseRegistration{Base: base, Missing: nonNilKeys(mappings.Missing())}, nil
}

func (s *ReviewService) detect(ctx context.Context, baseID, tableName string) (entity.FieldMappings, error) {
	records, err := s.records.ListRecords(ctx, baseID, tableName, analyzer.FieldSampleRecords)
	if err != nil {
		return entity.FieldMappings{}, fmt.Errorf("failed to sample records: %w", err)
	}
	mappings, err := s.detector.Detect(ctx, records, s.judge)
	if err != nil {
		return entity.FieldMappings{}, fmt.Errorf("failed to detect field mappings: %w", err)
	}
	return mappings, nil
}

func (s *ReviewService) UpdateMappings(ownerID uuid.UUID, id uint64, mappings entity.FieldMappings) (*entity.ReviewBase, error) {
	if _, err := s.bases.FindByID(id, ownerID); err != nil {
		return nil, notFound(err, ErrBaseNotFound)
	}
	if err := s.bases.UpdateMappings(id, ownerID, mappings.Normalize()); err != nil {
		return nil, fmt.Errorf("failed to save mappings: %w", err)
	}
	return s.GetBase(ownerID, id)
}

func (s *ReviewService) UpdateInstructions(ownerID uuid.UUID, id uint64, instructions string) (*entity.ReviewBase, error) {
	if _, err := s.bases.FindByID(id, ownerID); err != nil {
		return nil, notFound(err, ErrBaseNotFound)
	}
	if err := s.bases.UpdateInstructions(id, ownerID, strings.TrimSpace(instructions)); err != nil {
		return nil, fmt.Errorf("failed to save instructions: %w", err)
	}
	return s.GetBase(ownerID, id)
}

func (s *ReviewService) GetBase(ownerID uuid.UUID, id uint64) (*entity.ReviewBase, error) {
	base, err := s.bases.FindByID(id, ownerID)
	if err != nil {
		return nil, notFound(err, ErrBaseNotFound)
	}
	return base, nil
}

func (s *ReviewService) ListBases(ownerID uuid.UUID) ([]entity.ReviewBase, error) {
	bases, err := s.bases.FindByOwner(ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bases: %w", err)
	}
	if bases == nil {
		bases = []entity.ReviewBase{}
	}
	return bases, nil
}

func (s *ReviewService) DeleteBase(ownerID uuid.UUID, id uint64) error {
	deleted, err := s.bases.Delete(id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete base: %w", err)
	}
	if !deleted {
		return ErrBaseNotFound
	}
	return nil
}

// SearchRecords finds records of a base whose text fields contain query, case-insensitively.
func (s *ReviewService) SearchRecords(ctx context.Context, ownerID uuid.UUID, id uint64, query string) ([]RecordMatch, error) {
	base, err := s.bases.FindByID(id, ownerID)
	if err != nil {
		return nil, notFound(err, ErrBaseNotFound)
	}

	records, err := s.records.ListRecords(ctx, base.BaseID, base.TableName, searchSampleRecords)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	mappings := base.FieldMappings.Data()
	matches := []RecordMatch{}
	for _, record := range records {
		if needle != "" && !recordContains(record, needle) {
			continue
		}
		matches = append(matches, RecordMatch{
			ID:          record.ID,
			CodeURL:     infra.StringField(record.Fields, mappings.CodeURL),
			PlayableURL: infra.StringField(record.Fields, mappings.PlayableURL),
			Summary:     recordSummary(record),
		})
		if len(matches) == searchResultLimit {
			break
		}
	}
	return matches, nil
}

func recordContains(record infra.Record, needle string) bool {
	if strings.Contains(strings.ToLower(record.ID), needle) {
		return true
	}
	for _, value := range record.Fields {
		if text, ok := value.(string); ok && strings.Contains(strings.ToLower(text), needle) {
			return true
		}
	}
	return false
}

// recordSummary joins the first few text fields in name order.
func recordSummary(record infra.Record) string {
	names := make([]string, 0, len(record.Fields))
	for name, value := range record.Fields {
		if _, ok := value.(string); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	parts := make([]string, 0, 3)
	for _, name := range names {
		text := strings.TrimSpace(record.Fields[name].(string))
		if text == "" {
			continue
		}
		if len([]rune(text)) > 60 {
			text = string([]rune(text)[:60]) + "..."
		}
		parts = append(parts, name+": "+text)
		if len(parts) == cap(parts) {
			break
		}
	}
	return strings.Join(parts, " | ")
}

func nonNilKeys(keys []string) []string {
	if keys == nil {
		return []string{}
	}
	return keys
}
