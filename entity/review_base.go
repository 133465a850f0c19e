package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// FieldMappings maps each review concept to a field name in the owner's record-store table.
// An empty value means the table has no such field.
type FieldMappings struct {
	CodeURL          string `json:"code_url" yaml:"code_url"`
	PlayableURL      string `json:"playable_url" yaml:"playable_url"`
	HackatimeHours   string `json:"hackatime_hours" yaml:"hackatime_hours"`
	AutoReviewNotes  string `json:"auto_review_notes" yaml:"auto_review_notes"`
	AutoUserFeedback string `json:"auto_user_feedback" yaml:"auto_user_feedback"`
	AutoReviewTag    string `json:"auto_review_tag" yaml:"auto_review_tag"`
}

// Normalize clears the placeholder values the judgment service uses for "no such field".
func (m FieldMappings) Normalize() FieldMappings {
	clean := func(s string) string {
		s = strings.TrimSpace(s)
		switch strings.ToLower(s) {
		case "null", "none", "exact_field_name_or_null":
			return ""
		}
		return s
	}
	return FieldMappings{
		CodeURL:          clean(m.CodeURL),
		PlayableURL:      clean(m.PlayableURL),
		HackatimeHours:   clean(m.HackatimeHours),
		AutoReviewNotes:  clean(m.AutoReviewNotes),
		AutoUserFeedback: clean(m.AutoUserFeedback),
		AutoReviewTag:    clean(m.AutoReviewTag),
	}
}

// Missing lists the mapping keys that have no field.
func (m FieldMappings) Missing() []string {
	var missing []string
	pairs := []struct {
		key   string
		value string
	}{
		{"code_url", m.CodeURL},
		{"playable_url", m.PlayableURL},
		{"hackatime_hours", m.HackatimeHours},
		{"auto_review_notes", m.AutoReviewNotes},
		{"auto_user_feedback", m.AutoUserFeedback},
		{"auto_review_tag", m.AutoReviewTag},
	}
	for _, p := range pairs {
		if p.value == "" {
			missing = append(missing, p.key)
		}
	}
	return missing
}

// ReviewBase is an owner's configured record-store table.
type ReviewBase struct {
	ID                 uint64                            `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID            uuid.UUID                         `json:"owner_id" gorm:"type:uuid;not null;uniqueIndex:idx_owner_base_table"`
	BaseID             string                            `json:"base_id" gorm:"type:varchar(120);not null;uniqueIndex:idx_owner_base_table"`
	TableName          string                            `json:"table_name" gorm:"column:table_name;type:varchar(120);not null;uniqueIndex:idx_owner_base_table"`
	FieldMappings      datatypes.JSONType[FieldMappings] `json:"field_mappings" gorm:"type:jsonb;not null;default:'{}'"`
	CustomInstructions string                            `json:"custom_instructions" gorm:"type:text"`
	CreatedAt          time.Time                         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt          time.Time                         `json:"updated_at" gorm:"autoUpdateTime"`
}
