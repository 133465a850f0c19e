package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tnqbao/gau-review-orchestrator/entity"
)

var (
	jobStatus string
	jobForce  bool
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Inspect and control review jobs",
}

var jobGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one job with its steps and console log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ownerID, id, err := jobArgs(args)
		if err != nil {
			return err
		}
		job, err := reviewService(false).GetJob(ownerID, id)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, job)
		}
		printJob(os.Stdout, job)
		return nil
	},
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List running and recent jobs, or the jobs in one status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ownerID, err := owner()
		if err != nil {
			return err
		}
		svc := reviewService(false)

		if jobStatus != "" {
			jobs, err := svc.ListJobsByStatus(ownerID, jobStatus)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(os.Stdout, jobs)
			}
			for i := range jobs {
				printJobLine(os.Stdout, &jobs[i])
			}
			return nil
		}

		list, err := svc.ListJobs(ownerID)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, list)
		}
		fmt.Printf("Running (%d)\n", len(list.Running))
		for i := range list.Running {
			printJobLine(os.Stdout, &list.Running[i])
		}
		fmt.Printf("History (%d)\n", len(list.History))
		for i := range list.History {
			printJobLine(os.Stdout, &list.History[i])
		}
		return nil
	},
}

var jobCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a job; --force writes the cancelled state immediately",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ownerID, id, err := jobArgs(args)
		if err != nil {
			return err
		}
		outcome, err := reviewService(true).Cancel(cmd.Context(), ownerID, id, jobForce)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, outcome)
		}
		if !outcome.Changed {
			fmt.Printf("job #%d unchanged (%s)\n", id, outcome.Status)
			return nil
		}
		fmt.Printf("job #%d cancel requested (%s)\n", id, outcome.Status)
		return nil
	},
}

var jobDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a finished job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ownerID, id, err := jobArgs(args)
		if err != nil {
			return err
		}
		if err := reviewService(false).Delete(ownerID, id); err != nil {
			return err
		}
		fmt.Printf("job #%d deleted\n", id)
		return nil
	},
}

func init() {
	ownerFlag(jobCmd)
	jobListCmd.Flags().StringVar(&jobStatus, "status", "", "Filter by status (pending|running|completed|failed|cancelled)")
	jobCancelCmd.Flags().BoolVar(&jobForce, "force", false, "Mark the job cancelled without waiting for the worker")
	jobCmd.AddCommand(jobGetCmd, jobListCmd, jobCancelCmd, jobDeleteCmd)
	rootCmd.AddCommand(jobCmd)
}

func jobArgs(args []string) (ownerID uuid.UUID, id uint64, err error) {
	ownerID, err = owner()
	if err != nil {
		return ownerID, 0, err
	}
	id, err = strconv.ParseUint(args[0], 10, 64)
	if err != nil || id == 0 {
		return ownerID, 0, fmt.Errorf("invalid job id %q", args[0])
	}
	return ownerID, id, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printJobLine(w io.Writer, job *entity.ReviewJob) {
	fmt.Fprintf(w, "#%-6d %-10s %s/%s/%s  %s\n",
		job.ID, job.Status, job.Location.BaseID, job.Location.TableName, job.Location.RecordID, job.CurrentStep)
}

func printJob(w io.Writer, job *entity.ReviewJob) {
	printJobLine(w, job)
	fmt.Fprintf(w, "created %s", job.CreatedAt.Format("2006-01-02 15:04:05"))
	if job.CompletedAt != nil {
		fmt.Fprintf(w, ", completed %s", job.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(w)

	for _, step := range job.Steps {
		line := fmt.Sprintf("  step %-12s %s", step.Name, step.Status)
		if step.Error != "" {
			line += ": " + step.Error
		}
		fmt.Fprintln(w, line)
	}
	for _, entry := range job.ConsoleLog {
		fmt.Fprintf(w, "  %s [%s] %s\n", entry.Timestamp.Format("15:04:05"), entry.Level, entry.Message)
	}
	if res := job.Result.Data(); res != nil {
		fmt.Fprintf(w, "result: %s", res.Status)
		if res.ConfidenceScore > 0 {
			fmt.Fprintf(w, " (confidence %d)", res.ConfidenceScore)
		}
		fmt.Fprintln(w)
		if res.ReviewNotes != "" {
			fmt.Fprintln(w, res.ReviewNotes)
		}
	}
}
