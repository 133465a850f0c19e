package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-review-orchestrator/http/controller/dto"
	"github.com/tnqbao/gau-review-orchestrator/utils"
)

func (ctrl *Controller) RegisterBase(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID, ok := ctrl.ownerID(c, "Base")
	if !ok {
		return
	}

	var req dto.RegisterBaseRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Base] Failed to bind JSON: %v", err)
		utils.JSON400(c, "Invalid request payload")
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Base] Registering %s/%s for user_id: %s", req.BaseID, req.TableName, ownerID)
	reg, err := ctrl.Service.RegisterBase(ctx, ownerID, req.BaseID, req.TableName, req.CustomInstructions)
	if err != nil {
		ctrl.respondError(ctx, c, "Base", err)
		return
	}

	utils.JSON200(c, gin.H{
		"message":        "Base registered",
		"base":           reg.Base,
		"missing_fields": reg.Missing,
	})
}

func (ctrl *Controller) ListBases(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID, ok := ctrl.ownerID(c, "Base")
	if !ok {
		return
	}

	bases, err := ctrl.Service.ListBases(ownerID)
	if err != nil {
		ctrl.respondError(ctx, c, "Base", err)
		return
	}
	utils.JSON200(c, gin.H{"bases": bases})
}

func (ctrl *Controller) GetBase(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID, ok := ctrl.ownerID(c, "Base")
	if !ok {
		return
	}
	id, ok := ctrl.idParam(c, "Base")
	if !ok {
		return
	}

	base, err := ctrl.Service.GetBase(ownerID, id)
	if err != nil {
		ctrl.respondError(ctx, c, "Base", err)
		return
	}
	utils.JSON200(c, gin.H{
		"base":           base,
		"missing_fields": base.FieldMappings.Data().Missing(),
	})
}

func (ctrl *Controller) RescanBase(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID, ok := ctrl.ownerID(c, "Base")
	if !ok {
		return
	}
	id, ok := ctrl.idParam(c, "Base")
	if !ok {
		return
	}

	reg, err := ctrl.Service.RescanBase(ctx, ownerID, id)
	if err != nil {
		ctrl.respondError(ctx, c, "Base", err)
		return
	}
	utils.JSON200(c, gin.H{
		"message":        "Field mappings re-detected",
		"base":           reg.Base,
		"missing_fields": reg.Missing,
	})
}

func (ctrl *Controller) UpdateBaseMappings(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID, ok := ctrl.ownerID(c, "Base")
	if !ok {
		return
	}
	id, ok := ctrl.idParam(c, "Base")
	if !ok {
		return
	}

	var req dto.UpdateMappingsRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Base] Failed to bind JSON: %v", err)
		utils.JSON400(c, "Invalid request payload")
		return
	}

	base, err := ctrl.Service.UpdateMappings(ownerID, id, req.FieldMappings)
	if err != nil {
		ctrl.respondError(ctx, c, "Base", err)
		return
	}
	utils.JSON200(c, gin.H{"message": "Field mappings updated", "base": base})
}

func (ctrl *Controller) UpdateBaseInstructions(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID, ok := ctrl.ownerID(c, "Base")
	if !ok {
		return
	}
	id, ok := ctrl.idParam(c, "Base")
	if !ok {
		return
	}

	var req dto.UpdateInstructionsRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Base] Failed to bind JSON: %v", err)
		utils.JSON400(c, "Invalid request payload")
		return
	}

	base, err := ctrl.Service.UpdateInstructions(ownerID, id, req.CustomInstructions)
	if err != nil {
		ctrl.respondError(ctx, c, "Base", err)
		return
	}
	utils.JSON200(c, gin.H{"message": "Instructions updated", "base": base})
}

func (ctrl *Controller) DeleteBase(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID, ok := ctrl.ownerID(c, "Base")
	if !ok {
		return
	}
	id, ok := ctrl.idParam(c, "Base")
	if !ok {
		return
	}

	if err := ctrl.Service.DeleteBase(ownerID, id); err != nil {
		ctrl.respondError(ctx, c, "Base", err)
		return
	}
	utils.JSON200(c, gin.H{"message": "Base deleted"})
}

// SearchBaseRecords looks up records of a base by id or field text (?q=).
func (ctrl *Controller) SearchBaseRecords(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID, ok := ctrl.ownerID(c, "Base")
	if !ok {
		return
	}
	id, ok := ctrl.idParam(c, "Base")
	if !ok {
		return
	}

	records, err := ctrl.Service.SearchRecords(ctx, ownerID, id, c.Query("q"))
	if err != nil {
		ctrl.respondError(ctx, c, "Base", err)
		return
	}
	utils.JSON200(c, gin.H{"records": records})
}
