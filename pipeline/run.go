package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tnqbao/gau-review-orchestrator/analyzer"
	"github.com/tnqbao/gau-review-orchestrator/entity"
	"github.com/tnqbao/gau-review-orchestrator/infra"
)

// ErrInterrupted marks a job whose earlier execution stopped without reaching a terminal state.
var ErrInterrupted = errors.New("review was interrupted before it finished, please start it again")

type submission struct {
	CodeURL      string
	PlayableURL  string
	ClaimedHours float64
}

// jobRun is the state of one job execution.
type jobRun struct {
	o        *Orchestrator
	job      *entity.ReviewJob
	token    *CancelToken
	console  *console
	judge    analyzer.Judge
	mappings entity.FieldMappings

	// detached is set once a guarded write finds the job no longer running.
	detached bool
}

func (r *jobRun) execute(ctx context.Context) {
	c := r.console
	loc := r.job.Location

	// A redelivered job keeps the audit of its first execution; stages are not run twice.
	if len(r.job.ConsoleLog) > 0 || len(r.job.Steps) > 0 {
		r.o.logger.WarningWithContextf(ctx, "[Orchestrator] Job #%d already has %d steps from an earlier execution", r.job.ID, len(r.job.Steps))
		r.fail(ctx, ErrInterrupted)
		return
	}

	c.Info(ctx, "Job initialized - starting review process")

	if r.cancelled(ctx) {
		r.cancel(ctx)
		return
	}

	c.Info(ctx, "Fetching record from record store (Base: %s, Table: %s, Record: %s)", loc.BaseID, loc.TableName, loc.RecordID)
	record, err := r.o.records.GetRecord(ctx, loc)
	if err != nil {
		r.fail(ctx, fmt.Errorf("failed to fetch record: %w", err))
		return
	}
	c.Success(ctx, "Record fetched successfully - %d fields found", len(record.Fields))
	sub := r.readSubmission(ctx, record.Fields)

	if r.cancelled(ctx) {
		r.cancel(ctx)
		return
	}
	var valid bool
	r.o.measure(ctx, "identity", func(ctx context.Context) {
		valid = r.checkIdentity(ctx, sub)
	})
	if !valid {
		c.Warning(ctx, "Flagging submission due to invalid GitHub URL")
		r.flag(ctx, invalidIdentityVerdict(), "Flagged: Invalid GitHub URL")
		return
	}

	if r.cancelled(ctx) {
		r.cancel(ctx)
		return
	}
	var duplicate bool
	r.o.measure(ctx, "duplicate", func(ctx context.Context) {
		duplicate = r.checkDuplicate(ctx, sub)
	})

	if r.cancelled(ctx) {
		r.cancel(ctx)
		return
	}
	var content Outcome[*entity.ContentSignals]
	r.o.measure(ctx, "content", func(ctx context.Context) {
		content = r.testContent(ctx, sub)
	})
	switch content.Kind {
	case OutcomeFatal:
		r.fail(ctx, fmt.Errorf("judgment error during project testing: %w", content.Err))
		return
	case OutcomeFlagForHuman:
		r.flag(ctx, siteInaccessibleVerdict(content.Err), "Flagged: Site inaccessible")
		return
	}

	if r.cancelled(ctx) {
		r.cancel(ctx)
		return
	}
	var commits Outcome[*entity.CommitSignals]
	r.o.measure(ctx, "commits", func(ctx context.Context) {
		commits = r.analyzeCommits(ctx, sub)
	})
	switch commits.Kind {
	case OutcomeFatal:
		r.fail(ctx, fmt.Errorf("judgment error during commit analysis: %w", commits.Err))
		return
	case OutcomeFlagForHuman:
		r.flag(ctx, repositoryInaccessibleVerdict(commits.Err), "Flagged: GitHub repo inaccessible")
		return
	}

	if r.cancelled(ctx) {
		r.cancel(ctx)
		return
	}
	var verdict Outcome[*entity.Verdict]
	r.o.measure(ctx, "verdict", func(ctx context.Context) {
		verdict = r.decide(ctx, duplicate, content.Value, commits.Value, sub)
	})
	if verdict.Kind == OutcomeFatal {
		r.fail(ctx, fmt.Errorf("failed to finalize review: %w", verdict.Err))
		return
	}

	v := verdict.Value
	r.o.measure(ctx, "write_back", func(ctx context.Context) {
		r.writeBack(ctx, v.Status, v.ReviewNotes, v.UserFeedback)
	})
	c.Success(ctx, "Review process completed successfully!")
	c.Info(ctx, "Summary: %s - Job #%d complete", v.Status, r.job.ID)
	r.finish(ctx, entity.JobStatusCompleted, "Complete: "+v.Status, entity.ResultFromVerdict(*v))
}

// cancelled is the checkpoint before every stage: the in-process token first, then the stored flag.
func (r *jobRun) cancelled(ctx context.Context) bool {
	if r.token.Requested() {
		return true
	}
	requested, err := r.o.jobs.IsCancelRequested(r.job.ID)
	if err != nil {
		r.o.logger.WarningWithContextf(ctx, "[Orchestrator] Job #%d: failed to read cancel flag: %v", r.job.ID, err)
		return false
	}
	if requested {
		r.token.Request()
	}
	return requested
}

func (r *jobRun) readSubmission(ctx context.Context, fields map[string]interface{}) submission {
	c := r.console
	sub := submission{
		CodeURL:      infra.StringField(fields, r.mappings.CodeURL),
		PlayableURL:  infra.StringField(fields, r.mappings.PlayableURL),
		ClaimedHours: claimedHours(fields, r.mappings.HackatimeHours),
	}

	if sub.CodeURL != "" && strings.Contains(strings.ToLower(sub.CodeURL), strings.ToLower(r.o.VCSHost)) {
		normalized := analyzer.NormalizeRepositoryURL(sub.CodeURL)
		if normalized != sub.CodeURL {
			c.Info(ctx, "Normalized GitHub URL:")
			c.Info(ctx, "   From: %s", sub.CodeURL)
			c.Info(ctx, "   To: %s", normalized)
			sub.CodeURL = normalized
		}
	}

	c.Info(ctx, "Extracted data:")
	c.Info(ctx, "   • Code URL: %s", sub.CodeURL)
	c.Info(ctx, "   • Playable URL: %s", sub.PlayableURL)
	c.Info(ctx, "   • Claimed Hours: %v", sub.ClaimedHours)
	return sub
}

// claimedHours accepts a number or a numeric string; anything else counts as zero.
func claimedHours(fields map[string]interface{}, name string) float64 {
	if name == "" {
		return 0
	}
	switch v := fields[name].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

func (r *jobRun) checkIdentity(ctx context.Context, sub submission) bool {
	c := r.console
	c.Info(ctx, "STEP 0: Validating GitHub URL...")
	r.setStep(ctx, "Validating GitHub URL...")

	if !analyzer.IsSupportedRepository(sub.CodeURL, r.o.VCSHost) {
		c.Error(ctx, "GitHub URL validation FAILED - Not a valid GitHub URL")
		r.appendStep(ctx, entity.StepEntry{
			Name:   StepIdentity,
			Status: "Failed - Not a GitHub URL",
			Error:  "Code URL must be a GitHub link",
			Result: entity.StepResult{Identity: &entity.IdentityCheck{CodeURL: sub.CodeURL, IsSupportedHost: false}},
		})
		return false
	}

	c.Success(ctx, "GitHub URL validation PASSED")
	r.appendStep(ctx, entity.StepEntry{
		Name:   StepIdentity,
		Status: "Passed",
		Result: entity.StepResult{Identity: &entity.IdentityCheck{CodeURL: sub.CodeURL, IsSupportedHost: true}},
	})
	return true
}

// checkDuplicate fails open: a corpus error counts as an original submission.
func (r *jobRun) checkDuplicate(ctx context.Context, sub submission) bool {
	c := r.console
	c.Info(ctx, "STEP 1: Checking for duplicate submissions...")
	r.setStep(ctx, "Step 1: Checking for duplicates...")

	duplicate, err := r.o.duplicates.Check(ctx, sub.CodeURL, sub.PlayableURL)
	if err != nil {
		c.Warning(ctx, "Duplicate check failed, treating as original submission: %v", err)
		r.appendStep(ctx, entity.StepEntry{Name: StepDuplicate, Status: "Failed", Error: err.Error()})
		return false
	}

	if duplicate {
		c.Warning(ctx, "DUPLICATE FOUND - This project was already submitted!")
	} else {
		c.Success(ctx, "No duplicate found - Original submission")
	}
	r.appendStep(ctx, entity.StepEntry{
		Name:   StepDuplicate,
		Status: fmt.Sprintf("Already submitted: %t", duplicate),
		Result: entity.StepResult{Duplicate: &entity.DuplicateCheck{
			IsDuplicate: duplicate,
			CodeURL:     sub.CodeURL,
			PlayableURL: sub.PlayableURL,
		}},
	})
	return duplicate
}

func (r *jobRun) testContent(ctx context.Context, sub submission) Outcome[*entity.ContentSignals] {
	c := r.console
	c.Info(ctx, "STEP 2: Testing project functionality...")

	if analyzer.IsNonWebDeliverable(sub.PlayableURL) {
		kind := "Desktop/mobile app (no web URL)"
		if sub.PlayableURL != "" {
			kind = "Video demo link"
		}
		c.Info(ctx, "Detected desktop/mobile app or video demo - skipping web testing")
		c.Info(ctx, "   Project type: %s", kind)

		signals := analyzer.NeutralContentSignals()
		r.appendStep(ctx, entity.StepEntry{
			Name:   StepContent,
			Status: "Skipped - Desktop/Mobile App",
			Result: entity.StepResult{Content: signals},
		})
		return Outcome[*entity.ContentSignals]{Kind: OutcomeOK, Value: signals}
	}

	c.Info(ctx, "   Fetching website: %s", sub.PlayableURL)
	r.setStep(ctx, "Step 2: Testing project functionality...")

	signals, err := r.o.content.Analyze(ctx, sub.PlayableURL, r.judge)
	out := classify(signals, err, analyzer.FailedContentSignals)

	switch out.Kind {
	case OutcomeOK:
		c.Success(ctx, "Project Test Complete!")
		c.Info(ctx, "   • Is Working: %t", signals.IsWorking)
		c.Info(ctx, "   • Is Legitimate: %t", signals.IsLegitimate)
		c.Info(ctx, "   • Quality Score: %d/10", signals.QualityScore)
		c.Info(ctx, "   • Originality Score: %d/10", signals.OriginalityScore)
		r.appendStep(ctx, entity.StepEntry{
			Name:   StepContent,
			Status: fmt.Sprintf("Working: %t, Legitimate: %t", signals.IsWorking, signals.IsLegitimate),
			Result: entity.StepResult{Content: signals},
		})
	case OutcomeDegraded:
		c.Warning(ctx, "Project test encountered non-critical error: %v", out.Err)
		r.appendStep(ctx, entity.StepEntry{
			Name:   StepContent,
			Status: "Failed",
			Error:  out.Err.Error(),
			Result: entity.StepResult{Content: out.Value},
		})
	case OutcomeFlagForHuman:
		c.Warning(ctx, "Cannot access website - flagging for manual review")
		r.appendStep(ctx, entity.StepEntry{Name: StepContent, Status: "Failed - Site inaccessible", Error: out.Err.Error()})
	case OutcomeFatal:
		c.Error(ctx, "Critical judgment error in project test: %v", out.Err)
	}
	return out
}

func (r *jobRun) analyzeCommits(ctx context.Context, sub submission) Outcome[*entity.CommitSignals] {
	c := r.console
	c.Info(ctx, "STEP 3: Analyzing GitHub commits...")
	c.Info(ctx, "   Requesting commit history (up to %d commits)...", r.o.CommitWindow)
	r.setStep(ctx, "Step 3: Analyzing GitHub commits...")

	signals, err := r.o.commits.Analyze(ctx, sub.CodeURL, sub.ClaimedHours, r.judge)
	out := classify(signals, err, analyzer.FailedCommitSignals)

	switch out.Kind {
	case OutcomeOK:
		if signals.Metadata != nil && signals.Metadata.Note == analyzer.RateLimitedNote {
			c.Warning(ctx, "GitHub API rate limited - continuing with neutral commit data")
		} else {
			c.Success(ctx, "Commit Analysis Complete!")
		}
		if signals.Metadata != nil {
			c.Info(ctx, "   • Fetched %d commits", signals.Metadata.TotalCommits)
		}
		c.Info(ctx, "   • Pattern: %s", signals.CommitPattern)
		c.Info(ctx, "   • Matches Hours: %t", signals.CommitsMatchHours)
		c.Info(ctx, "   • Commit Quality: %d/10", signals.CommitQualityScore)
		c.Info(ctx, "   • Estimated Hours: %v", signals.EstimatedActualHours)
		r.appendStep(ctx, entity.StepEntry{
			Name:   StepCommits,
			Status: fmt.Sprintf("Pattern: %s, Matches hours: %t", signals.CommitPattern, signals.CommitsMatchHours),
			Result: entity.StepResult{Commits: signals},
		})
	case OutcomeDegraded:
		c.Warning(ctx, "Commit analysis encountered non-critical error: %v", out.Err)
		r.appendStep(ctx, entity.StepEntry{
			Name:   StepCommits,
			Status: "Failed",
			Error:  out.Err.Error(),
			Result: entity.StepResult{Commits: out.Value},
		})
	case OutcomeFlagForHuman:
		c.Warning(ctx, "Cannot access GitHub repository - flagging for manual review")
		r.appendStep(ctx, entity.StepEntry{Name: StepCommits, Status: "Failed - Repository inaccessible", Error: out.Err.Error()})
	case OutcomeFatal:
		c.Error(ctx, "Critical judgment error in commit analysis: %v", out.Err)
	}
	return out
}

func (r *jobRun) decide(ctx context.Context, duplicate bool, content *entity.ContentSignals, commits *entity.CommitSignals, sub submission) Outcome[*entity.Verdict] {
	c := r.console
	c.Info(ctx, "STEP 4: Making final decision...")
	c.Info(ctx, "   Combining all previous analysis results")
	r.setStep(ctx, "Step 4: Finalizing review...")

	var verdict *entity.Verdict
	var err error
	if reason, technical := analyzer.TechnicalUncertainty(content); technical {
		c.Warning(ctx, "Technical issue detected - flagging for human review")
		c.Warning(ctx, "   • Project testing: %s", reason)
		v := technicalIssueVerdict(reason)
		verdict = &v
	} else {
		verdict, err = r.o.verdicts.Decide(ctx, analyzer.VerdictInput{
			Duplicate:          duplicate,
			Content:            content,
			Commits:            commits,
			ClaimedHours:       sub.ClaimedHours,
			CustomInstructions: r.job.CustomInstructions,
		}, r.judge)
	}

	out := decisive(verdict, err)
	if out.Kind == OutcomeFatal {
		c.Error(ctx, "Failed to make final decision: %v", out.Err)
		return out
	}

	c.Success(ctx, "Final Decision Made!")
	c.Info(ctx, "   Decision: %s", verdict.Status)
	c.Info(ctx, "   Confidence: %d/10", verdict.ConfidenceScore)
	if verdict.Status == entity.VerdictApproved {
		c.Success(ctx, "   Project APPROVED for submission!")
	} else {
		c.Warning(ctx, "   Project FLAGGED for manual review")
	}
	r.appendStep(ctx, entity.StepEntry{
		Name:   StepVerdict,
		Status: "Decision: " + verdict.Status,
		Result: entity.StepResult{Verdict: verdict},
	})
	return out
}

// flag completes the job with a verdict produced without the synthesizer.
func (r *jobRun) flag(ctx context.Context, verdict entity.Verdict, currentStep string) {
	r.writeBack(ctx, verdict.Status, verdict.ReviewNotes, verdict.UserFeedback)
	r.finish(ctx, entity.JobStatusCompleted, currentStep, entity.ResultFromVerdict(verdict))
}

func (r *jobRun) fail(ctx context.Context, err error) {
	r.console.Error(ctx, "Review failed: %v", err)
	r.appendStep(ctx, entity.StepEntry{Name: StepFatal, Status: "Failed", Error: err.Error()})
	r.writeBack(ctx, entity.ResultStatusError, "Error during review: "+err.Error(), errorFeedback)
	r.finish(ctx, entity.JobStatusFailed, "Error: "+err.Error(), &entity.JobResult{
		Status: entity.ResultStatusError,
		Error:  err.Error(),
	})
}

func (r *jobRun) cancel(ctx context.Context) {
	r.console.Warning(ctx, "Job cancelled by user")
	r.finish(ctx, entity.JobStatusCancelled, CancelledStep, CancelledResult(false))
}

func (r *jobRun) finish(ctx context.Context, status entity.JobStatus, currentStep string, res *entity.JobResult) {
	applied, err := r.o.jobs.Finish(r.job.ID, status, currentStep, res)
	if err != nil {
		r.o.logger.ErrorWithContextf(ctx, err, "[Orchestrator] Job #%d: failed to record %s state: %v", r.job.ID, status, err)
		return
	}
	if !applied {
		r.o.logger.WarningWithContextf(ctx, "[Orchestrator] Job #%d was finished elsewhere before reaching %s", r.job.ID, status)
		return
	}
	r.o.logger.InfoWithContextf(ctx, "[Orchestrator] Job #%d finished: %s (%s)", r.job.ID, status, currentStep)
}

func (r *jobRun) appendStep(ctx context.Context, step entity.StepEntry) {
	applied, err := r.o.jobs.AppendStep(r.job.ID, step)
	if err != nil {
		r.o.logger.ErrorWithContextf(ctx, err, "[Orchestrator] Job #%d: failed to record step %q: %v", r.job.ID, step.Name, err)
		return
	}
	if !applied {
		r.detached = true
	}
}

func (r *jobRun) setStep(ctx context.Context, step string) {
	applied, err := r.o.jobs.UpdateCurrentStep(r.job.ID, step)
	if err != nil {
		r.o.logger.ErrorWithContextf(ctx, err, "[Orchestrator] Job #%d: failed to update current step: %v", r.job.ID, err)
		return
	}
	if !applied {
		r.detached = true
	}
}

// writeBack applies the outcome to the mapped record fields at most once per job.
func (r *jobRun) writeBack(ctx context.Context, tag, notes, feedback string) {
	c := r.console
	if r.detached {
		r.o.logger.WarningWithContextf(ctx, "[Orchestrator] Job #%d is no longer running, skipping write-back", r.job.ID)
		return
	}

	fields := map[string]interface{}{}
	if r.mappings.AutoReviewNotes != "" {
		fields[r.mappings.AutoReviewNotes] = notes
	}
	if r.mappings.AutoUserFeedback != "" && feedback != "" {
		fields[r.mappings.AutoUserFeedback] = feedback
	}
	if r.mappings.AutoReviewTag != "" {
		fields[r.mappings.AutoReviewTag] = tag
	}
	if len(fields) == 0 {
		c.Info(ctx, "No review fields mapped - skipping record update")
		return
	}

	claimed, err := r.o.jobs.ClaimWriteBack(r.job.ID)
	if err != nil {
		c.Warning(ctx, "Could not reserve record update: %v", err)
		return
	}
	if !claimed {
		c.Warning(ctx, "Record was already updated for this job - skipping")
		return
	}

	c.Info(ctx, "Updating record store with review results...")
	writeCtx := ctx
	if r.o.WriteBackTimeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(ctx, r.o.WriteBackTimeout)
		defer cancel()
	}

	if err := r.o.records.UpdateRecord(writeCtx, r.job.Location, fields); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.Warning(ctx, "Record update timed out (%s), continuing anyway...", r.o.WriteBackTimeout)
		} else {
			c.Warning(ctx, "Record update failed: %v", err)
		}
		c.Warning(ctx, "Review completed but could not update the record")
		return
	}
	c.Success(ctx, "Record updated with %d fields", len(fields))
}
