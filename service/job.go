package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tnqbao/gau-review-orchestrator/entity"
	"github.com/tnqbao/gau-review-orchestrator/pipeline"
)

const dispatchFailedStep = "Error: failed to dispatch job"

// JobList is the default listing: live jobs plus the latest finished ones.
type JobList struct {
	Running []entity.ReviewJob `json:"running"`
	History []entity.ReviewJob `json:"history"`
}

type CancelOutcome struct {
	Changed bool             `json:"changed"`
	Status  entity.JobStatus `json:"status"`
}

// Start creates a job for one record, marks it running and hands it off. The job id is
// returned as soon as the row is durable; execution happens elsewhere.
func (s *ReviewService) Start(ctx context.Context, ownerID uuid.UUID, loc entity.RecordLocation, mappings entity.FieldMappings, instructions string) (*entity.ReviewJob, error) {
	job := entity.NewReviewJob(ownerID, loc, mappings, instructions)
	if err := s.jobs.Create(job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	if err := s.launch(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// StartReview starts a job for a record of a registered base, snapshotting its configuration.
func (s *ReviewService) StartReview(ctx context.Context, ownerID uuid.UUID, baseID, tableName, recordID string) (*entity.ReviewJob, error) {
	base, err := s.bases.FindByTable(ownerID, baseID, tableName)
	if err != nil {
		return nil, notFound(err, ErrBaseNotFound)
	}
	loc := entity.RecordLocation{BaseID: base.BaseID, TableName: base.TableName, RecordID: recordID}
	return s.Start(ctx, ownerID, loc, base.FieldMappings.Data(), base.CustomInstructions)
}

// StartBulk starts one job per record. The jobs are created together; each is then
// launched on its own.
func (s *ReviewService) StartBulk(ctx context.Context, ownerID uuid.UUID, baseID, tableName string, recordIDs []string) ([]*entity.ReviewJob, error) {
	ids := make([]string, 0, len(recordIDs))
	for _, id := range recordIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, ErrNoRecords
	}
	if s.BulkLimit > 0 && len(ids) > s.BulkLimit {
		return nil, fmt.Errorf("%w: %d given, limit is %d", ErrTooManyRecords, len(ids), s.BulkLimit)
	}

	base, err := s.bases.FindByTable(ownerID, baseID, tableName)
	if err != nil {
		return nil, notFound(err, ErrBaseNotFound)
	}

	jobs := make([]*entity.ReviewJob, 0, len(ids))
	for _, id := range ids {
		loc := entity.RecordLocation{BaseID: base.BaseID, TableName: base.TableName, RecordID: id}
		jobs = append(jobs, entity.NewReviewJob(ownerID, loc, base.FieldMappings.Data(), base.CustomInstructions))
	}
	if err := s.jobs.CreateBatch(jobs); err != nil {
		return nil, fmt.Errorf("failed to create jobs: %w", err)
	}

	started := 0
	for _, job := range jobs {
		if err := s.launch(ctx, job); err != nil {
			s.logger.WarningWithContextf(ctx, "[Review] Bulk job #%d not started: %v", job.ID, err)
			continue
		}
		started++
	}
	s.logger.InfoWithContextf(ctx, "[Review] Started %d/%d bulk jobs for %s/%s", started, len(jobs), baseID, tableName)
	return jobs, nil
}

// launch moves a fresh job to running and dispatches it. A dispatch failure finishes the job as failed.
func (s *ReviewService) launch(ctx context.Context, job *entity.ReviewJob) error {
	marked, err := s.jobs.MarkRunning(job.ID)
	if err != nil {
		return fmt.Errorf("failed to mark job %d running: %w", job.ID, err)
	}
	if !marked {
		return fmt.Errorf("job %d is no longer pending", job.ID)
	}
	job.Status = entity.JobStatusRunning

	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		s.logger.ErrorWithContextf(ctx, err, "[Review] Failed to dispatch job #%d: %v", job.ID, err)
		if _, finishErr := s.jobs.Finish(job.ID, entity.JobStatusFailed, dispatchFailedStep, &entity.JobResult{
			Status: entity.ResultStatusError,
			Error:  err.Error(),
		}); finishErr != nil {
			s.logger.ErrorWithContextf(ctx, finishErr, "[Review] Failed to mark job #%d failed: %v", job.ID, finishErr)
		}
		job.Status = entity.JobStatusFailed
		return fmt.Errorf("failed to dispatch job %d: %w", job.ID, err)
	}

	s.logger.InfoWithContextf(ctx, "[Review] Job #%d started for record %s", job.ID, job.Location.RecordID)
	return nil
}

func (s *ReviewService) GetJob(ownerID uuid.UUID, id uint64) (*entity.ReviewJob, error) {
	job, err := s.jobs.FindByIDAndOwner(id, ownerID)
	if err != nil {
		return nil, notFound(err, ErrJobNotFound)
	}
	return job, nil
}

func (s *ReviewService) ListJobs(ownerID uuid.UUID) (*JobList, error) {
	running, err := s.jobs.FindActiveByOwner(ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active jobs: %w", err)
	}
	history, err := s.jobs.FindHistoryByOwner(ownerID, s.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list job history: %w", err)
	}
	if running == nil {
		running = []entity.ReviewJob{}
	}
	if history == nil {
		history = []entity.ReviewJob{}
	}
	return &JobList{Running: running, History: history}, nil
}

func (s *ReviewService) ListJobsByStatus(ownerID uuid.UUID, status string) ([]entity.ReviewJob, error) {
	st := entity.JobStatus(strings.ToLower(strings.TrimSpace(status)))
	if !st.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	jobs, err := s.jobs.FindByOwnerAndStatus(ownerID, st, s.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s jobs: %w", st, err)
	}
	if jobs == nil {
		jobs = []entity.ReviewJob{}
	}
	return jobs, nil
}

// Cancel stops a live job. A soft cancel sets the flag the worker checks before each stage;
// force writes the cancelled state immediately. Cancelling a finished or already-cancelling
// job changes nothing and is not an error.
func (s *ReviewService) Cancel(ctx context.Context, ownerID uuid.UUID, id uint64, force bool) (*CancelOutcome, error) {
	job, err := s.jobs.FindByIDAndOwner(id, ownerID)
	if err != nil {
		return nil, notFound(err, ErrJobNotFound)
	}
	if job.Status.IsTerminal() {
		return &CancelOutcome{Changed: false, Status: job.Status}, nil
	}

	var changed bool
	switch {
	case force:
		changed, err = s.jobs.ForceCancel(id, pipeline.CancelledStep, pipeline.CancelledResult(true))
	case job.Status == entity.JobStatusPending:
		// nothing executes a pending job yet, so nobody would observe the flag
		changed, err = s.jobs.ForceCancel(id, pipeline.CancelledStep, pipeline.CancelledResult(false))
	default:
		changed, err = s.jobs.RequestCancel(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to cancel job %d: %w", id, err)
	}

	if changed {
		s.signal(ctx, id)
		s.logger.InfoWithContextf(ctx, "[Review] Cancel requested for job #%d (force: %t)", id, force)
	}

	current, err := s.jobs.FindByIDAndOwner(id, ownerID)
	if err != nil {
		return nil, notFound(err, ErrJobNotFound)
	}
	return &CancelOutcome{Changed: changed, Status: current.Status}, nil
}

func (s *ReviewService) signal(ctx context.Context, id uint64) {
	if s.registry != nil {
		s.registry.Cancel(id)
	}
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyCancel(ctx, id); err != nil {
		s.logger.WarningWithContextf(ctx, "[Review] Failed to broadcast cancel of job #%d: %v", id, err)
	}
}

// Delete removes a finished job.
func (s *ReviewService) Delete(ownerID uuid.UUID, id uint64) error {
	job, err := s.jobs.FindByIDAndOwner(id, ownerID)
	if err != nil {
		return notFound(err, ErrJobNotFound)
	}
	if !job.Status.IsTerminal() {
		return ErrJobActive
	}
	deleted, err := s.jobs.Delete(id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete job %d: %w", id, err)
	}
	if !deleted {
		return ErrJobActive
	}
	return nil
}
