package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-review-orchestrator/http/controller/dto"
	"github.com/tnqbao/gau-review-orchestrator/utils"
)

func (ctrl *Controller) StartReview(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID, ok := ctrl.ownerID(c, "Job")
	if !ok {
		return
	}

	var req dto.StartReviewRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to bind JSON: %v", err)
		utils.JSON400(c, "Invalid request payload")
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Job] Starting review of %s/%s/%s for user_id: %s",
		req.BaseID, req.TableName, req.RecordID, ownerID)

	job, err := ctrl.Service.StartReview(ctx, ownerID, req.BaseID, req.TableName, req.RecordID)
	if err != nil {
		ctrl.respondError(ctx, c, "Job", err)
		return
	}

	utils.JSON202(c, gin.H{
		"message": "Review started",
		"job_id":  job.ID,
		"status":  job.Status,
	})
}

// TriggerReview is the signed automation entry point. The owner comes from the signature header.
func (ctrl *Controller) TriggerReview(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID, ok := ctrl.ownerID(c, "Trigger")
	if !ok {
		return
	}

	var req dto.TriggerReviewRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Trigger] Failed to bind JSON: %v", err)
		utils.JSON400(c, "Invalid request payload")
		return
	}

	job, err := ctrl.Service.StartReview(ctx, ownerID, req.BaseID, req.TableName, req.RecordID)
	if err != nil {
		ctrl.respondError(ctx, c, "Trigger", err)
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Trigger] Automation started job #%d for record %s", job.ID, req.RecordID)
	utils.JSON202(c, gin.H{
		"job_id": job.ID,
		"status": job.Status,
	})
}

func (ctrl *Controller) StartBulkReview(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID, ok := ctrl.ownerID(c, "Job")
	if !ok {
		return
	}

	var req dto.StartBulkReviewRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to bind JSON: %v", err)
		utils.JSON400(c, "Invalid request payload")
		return
	}

	jobs, err := ctrl.Service.StartBulk(ctx, ownerID, req.BaseID, req.TableName, req.RecordIDs)
	if err != nil {
		ctrl.respondError(ctx, c, "Job", err)
		return
	}

	summaries := make([]gin.H, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, gin.H{
			"job_id":    job.ID,
			"record_id": job.Location.RecordID,
			"status":    job.Status,
		})
	}
	utils.JSON202(c, gin.H{
		"message": "Bulk review started",
		"count":   len(jobs),
		"jobs":    summaries,
	})
}

func (ctrl *Controller) GetJob(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID, ok := ctrl.ownerID(c, "Job")
	if !ok {
		return
	}
	id, ok := ctrl.idParam(c, "Job")
	if !ok {
		return
	}

	job, err := ctrl.Service.GetJob(ownerID, id)
	if err != nil {
		ctrl.respondError(ctx, c, "Job", err)
		return
	}
	utils.JSON200(c, gin.H{"job": job})
}

// ListJobs returns running and recent jobs, or only the jobs in ?status=.
func (ctrl *Controller) ListJobs(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID, ok := ctrl.ownerID(c, "Job")
	if !ok {
		return
	}

	if status := c.Query("status"); status != "" {
		jobs, err := ctrl.Service.ListJobsByStatus(ownerID, status)
		if err != nil {
			ctrl.respondError(ctx, c, "Job", err)
			return
		}
		utils.JSON200(c, gin.H{"jobs": jobs})
		return
	}

	list, err := ctrl.Service.ListJobs(ownerID)
	if err != nil {
		ctrl.respondError(ctx, c, "Job", err)
		return
	}
	utils.JSON200(c, list)
}

func (ctrl *Controller) CancelJob(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID, ok := ctrl.ownerID(c, "Job")
	if !ok {
		return
	}
	id, ok := ctrl.idParam(c, "Job")
	if !ok {
		return
	}
	force := c.Query("force") == "true"

	outcome, err := ctrl.Service.Cancel(ctx, ownerID, id, force)
	if err != nil {
		ctrl.respondError(ctx, c, "Job", err)
		return
	}

	message := "Cancellation requested"
	if !outcome.Changed {
		message = "Job is not running"
	}
	utils.JSON200(c, gin.H{
		"message": message,
		"changed": outcome.Changed,
		"status":  outcome.Status,
	})
}

func (ctrl *Controller) DeleteJob(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID, ok := ctrl.ownerID(c, "Job")
	if !ok {
		return
	}
	id, ok := ctrl.idParam(c, "Job")
	if !ok {
		return
	}

	if err := ctrl.Service.Delete(ownerID, id); err != nil {
		ctrl.respondError(ctx, c, "Job", err)
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Job] Deleted job #%d", id)
	utils.JSON200(c, gin.H{"message": "Job deleted"})
}
