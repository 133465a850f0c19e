package dto

import "github.com/tnqbao/gau-review-orchestrator/entity"

type StartReviewRequestDTO struct {
	BaseID    string `json:"base_id" binding:"required"`
	TableName string `json:"table_name" binding:"required"`
	RecordID  string `json:"record_id" binding:"required"`
}

type StartBulkReviewRequestDTO struct {
	BaseID    string   `json:"base_id" binding:"required"`
	TableName string   `json:"table_name" binding:"required"`
	RecordIDs []string `json:"record_ids" binding:"required,min=1"`
}

// TriggerReviewRequestDTO is posted by record-store automations, signed with the shared key.
type TriggerReviewRequestDTO struct {
	BaseID    string `json:"base_id" binding:"required"`
	TableName string `json:"table_name" binding:"required"`
	RecordID  string `json:"record_id" binding:"required"`
}

type RegisterBaseRequestDTO struct {
	BaseID             string `json:"base_id" binding:"required"`
	TableName          string `json:"table_name" binding:"required"`
	CustomInstructions string `json:"custom_instructions"`
}

type UpdateMappingsRequestDTO struct {
	FieldMappings entity.FieldMappings `json:"field_mappings"`
}

type UpdateInstructionsRequestDTO struct {
	CustomInstructions string `json:"custom_instructions"`
}
