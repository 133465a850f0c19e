package repository

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-review-orchestrator/entity"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReviewJobRepository persists jobs. Every mutation of a job's audit trail is
// guarded by status = 'running', so a terminal job can no longer change.
type ReviewJobRepository struct {
	db *gorm.DB
}

func NewReviewJobRepository(db *gorm.DB) *ReviewJobRepository {
	return &ReviewJobRepository{db: db}
}

func (r *ReviewJobRepository) Create(job *entity.ReviewJob) error {
	return r.db.Create(job).Error
}

// CreateBatch inserts all jobs in one statement.
func (r *ReviewJobRepository) CreateBatch(jobs []*entity.ReviewJob) error {
	if len(jobs) == 0 {
		return nil
	}
	return r.db.Create(&jobs).Error
}

func (r *ReviewJobRepository) FindByID(id uint64) (*entity.ReviewJob, error) {
	var job entity.ReviewJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *ReviewJobRepository) FindByIDAndOwner(id uint64, ownerID uuid.UUID) (*entity.ReviewJob, error) {
	var job entity.ReviewJob
	err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// FindActiveByOwner returns pending and running jobs, oldest first.
func (r *ReviewJobRepository) FindActiveByOwner(ownerID uuid.UUID) ([]entity.ReviewJob, error) {
	var jobs []entity.ReviewJob
	err := r.db.Where("owner_id = ? AND status IN ?", ownerID,
		[]entity.JobStatus{entity.JobStatusPending, entity.JobStatusRunning}).
		Order("created_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// FindHistoryByOwner returns the most recently finished jobs.
func (r *ReviewJobRepository) FindHistoryByOwner(ownerID uuid.UUID, limit int) ([]entity.ReviewJob, error) {
	var jobs []entity.ReviewJob
	err := r.db.Where("owner_id = ? AND status IN ?", ownerID, entity.TerminalStatuses).
		Order("completed_at DESC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// FindByOwnerAndStatus returns the owner's jobs in one status, newest first.
func (r *ReviewJobRepository) FindByOwnerAndStatus(ownerID uuid.UUID, status entity.JobStatus, limit int) ([]entity.ReviewJob, error) {
	var jobs []entity.ReviewJob
	err := r.db.Where("owner_id = ? AND status = ?", ownerID, status).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *ReviewJobRepository) markRunningQuery(tx *gorm.DB, id uint64) *gorm.DB {
	return tx.Model(&entity.ReviewJob{}).
		Where("id = ? AND status = ?", id, entity.JobStatusPending).
		Update("status", entity.JobStatusRunning)
}

// MarkRunning moves a pending job to running. It reports false when the job was not pending.
func (r *ReviewJobRepository) MarkRunning(id uint64) (bool, error) {
	result := r.markRunningQuery(r.db, id)
	return result.RowsAffected > 0, result.Error
}

func (r *ReviewJobRepository) appendQuery(tx *gorm.DB, id uint64, column string, entry interface{}) *gorm.DB {
	data, err := json.Marshal([]interface{}{entry})
	if err != nil {
		tx.AddError(err)
		return tx
	}
	return tx.Model(&entity.ReviewJob{}).
		Where("id = ? AND status = ?", id, entity.JobStatusRunning).
		Update(column, gorm.Expr(column+" || ?::jsonb", string(data)))
}

func (r *ReviewJobRepository) AppendConsole(id uint64, entry entity.ConsoleEntry) (bool, error) {
	result := r.appendQuery(r.db, id, "console_log", entry)
	return result.RowsAffected > 0, result.Error
}

func (r *ReviewJobRepository) AppendStep(id uint64, step entity.StepEntry) (bool, error) {
	result := r.appendQuery(r.db, id, "steps", step)
	return result.RowsAffected > 0, result.Error
}

func (r *ReviewJobRepository) UpdateCurrentStep(id uint64, step string) (bool, error) {
	result := r.db.Model(&entity.ReviewJob{}).
		Where("id = ? AND status = ?", id, entity.JobStatusRunning).
		Update("current_step", step)
	return result.RowsAffected > 0, result.Error
}

func (r *ReviewJobRepository) finishQuery(tx *gorm.DB, id uint64, status entity.JobStatus, currentStep string, res *entity.JobResult, at time.Time) *gorm.DB {
	return tx.Model(&entity.ReviewJob{}).
		Where("id = ? AND status = ?", id, entity.JobStatusRunning).
		Updates(map[string]interface{}{
			"status":       status,
			"current_step": currentStep,
			"result":       datatypes.NewJSONType(res),
			"completed_at": at,
		})
}

// Finish records the terminal state. Only the first call for a job has any effect.
func (r *ReviewJobRepository) Finish(id uint64, status entity.JobStatus, currentStep string, res *entity.JobResult) (bool, error) {
	result := r.finishQuery(r.db, id, status, currentStep, res, time.Now().UTC())
	return result.RowsAffected > 0, result.Error
}

func (r *ReviewJobRepository) IsCancelRequested(id uint64) (bool, error) {
	var flags []bool
	err := r.db.Model(&entity.ReviewJob{}).Where("id = ?", id).Pluck("cancel_requested", &flags).Error
	if err != nil || len(flags) == 0 {
		return false, err
	}
	return flags[0], nil
}

// RequestCancel sets the cancel flag on a live job. It reports false when the flag was
// already set or the job is finished.
func (r *ReviewJobRepository) RequestCancel(id uint64) (bool, error) {
	result := r.db.Model(&entity.ReviewJob{}).
		Where("id = ? AND status IN ? AND cancel_requested = ?", id,
			[]entity.JobStatus{entity.JobStatusPending, entity.JobStatusRunning}, false).
		Update("cancel_requested", true)
	return result.RowsAffected > 0, result.Error
}

// ForceCancel finishes a live job as cancelled without waiting for its worker.
func (r *ReviewJobRepository) ForceCancel(id uint64, currentStep string, res *entity.JobResult) (bool, error) {
	result := r.db.Model(&entity.ReviewJob{}).
		Where("id = ? AND status IN ?", id, []entity.JobStatus{entity.JobStatusPending, entity.JobStatusRunning}).
		Updates(map[string]interface{}{
			"status":           entity.JobStatusCancelled,
			"current_step":     currentStep,
			"result":           datatypes.NewJSONType(res),
			"cancel_requested": true,
			"completed_at":     time.Now().UTC(),
		})
	return result.RowsAffected > 0, result.Error
}

func (r *ReviewJobRepository) claimWriteBackQuery(tx *gorm.DB, id uint64, at time.Time) *gorm.DB {
	return tx.Model(&entity.ReviewJob{}).
		Where("id = ? AND written_back_at IS NULL", id).
		Update("written_back_at", at)
}

// ClaimWriteBack reserves the single write-back of a job's outcome to the record store.
func (r *ReviewJobRepository) ClaimWriteBack(id uint64) (bool, error) {
	result := r.claimWriteBackQuery(r.db, id, time.Now().UTC())
	return result.RowsAffected > 0, result.Error
}

// Delete removes a finished job. Live jobs are never deleted.
func (r *ReviewJobRepository) Delete(id uint64, ownerID uuid.UUID) (bool, error) {
	result := r.db.Where("id = ? AND owner_id = ? AND status IN ?", id, ownerID, entity.TerminalStatuses).
		Delete(&entity.ReviewJob{})
	return result.RowsAffected > 0, result.Error
}
