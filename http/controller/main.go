package controller

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tnqbao/gau-review-orchestrator/analyzer"
	"github.com/tnqbao/gau-review-orchestrator/config"
	"github.com/tnqbao/gau-review-orchestrator/infra"
	"github.com/tnqbao/gau-review-orchestrator/repository"
	"github.com/tnqbao/gau-review-orchestrator/service"
	"github.com/tnqbao/gau-review-orchestrator/utils"
)

type Controller struct {
	Config     *config.Config
	Infra      *infra.Infra
	Repository *repository.Repository
	Service    *service.ReviewService
}

func NewController(config *config.Config, infra *infra.Infra, repo *repository.Repository, svc *service.ReviewService) *Controller {
	if repo == nil {
		panic("Failed to initialize Repository")
	}
	if svc == nil {
		panic("Failed to initialize Review service")
	}
	return &Controller{
		Config:     config,
		Infra:      infra,
		Repository: repo,
		Service:    svc,
	}
}

func (ctrl *Controller) ownerID(c *gin.Context, component string) (uuid.UUID, bool) {
	ctx := c.Request.Context()
	userIDStr := c.GetString("user_id")
	if userIDStr == "" {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, nil, "[%s] user_id not found in context", component)
		utils.JSON401(c, "Unauthorized: user_id not found")
		return uuid.Nil, false
	}

	ownerID, err := uuid.Parse(userIDStr)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[%s] Invalid user_id format: %v", component, err)
		utils.JSON400(c, "Invalid user_id format")
		return uuid.Nil, false
	}
	return ownerID, true
}

func (ctrl *Controller) idParam(c *gin.Context, component string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		ctrl.Infra.Logger.WarningWithContextf(c.Request.Context(), "[%s] Invalid id parameter: %q", component, c.Param("id"))
		utils.JSON400(c, "Invalid id")
		return 0, false
	}
	return id, true
}

// respondError maps service errors onto status codes. Anything unrecognised is a 500.
func (ctrl *Controller) respondError(ctx context.Context, c *gin.Context, component string, err error) {
	switch {
	case errors.Is(err, service.ErrJobNotFound), errors.Is(err, service.ErrBaseNotFound):
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[%s] %v", component, err)
		utils.JSON404(c, err.Error())
	case errors.Is(err, service.ErrJobActive), errors.Is(err, service.ErrBaseExists):
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[%s] %v", component, err)
		utils.JSON409(c, err.Error())
	case errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrNoRecords),
		errors.Is(err, service.ErrTooManyRecords),
		errors.Is(err, service.ErrEmptyIdentifier),
		errors.Is(err, analyzer.ErrNoSampleRecords):
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[%s] Rejected request: %v", component, err)
		utils.JSON400(c, err.Error())
	case errors.Is(err, infra.ErrJudgmentUnavailable), isUpstream(err):
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[%s] Upstream service failed: %v", component, err)
		utils.JSON502(c, "Upstream service failed: "+err.Error())
	default:
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[%s] %v", component, err)
		utils.JSON500(c, "Internal server error")
	}
}

func isUpstream(err error) bool {
	var statusErr *infra.StatusError
	return errors.As(err, &statusErr)
}
