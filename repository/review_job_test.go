package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/tnqbao/gau-review-orchestrator/entity"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newDryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=review dbname=review sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	if err != nil {
		t.Fatalf("failed to open dry-run db: %v", err)
	}
	return db
}

func TestAuditMutationsAreGuardedByRunningStatus(t *testing.T) {
	db := newDryRunDB(t)
	repo := NewReviewJobRepository(db)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		query func(tx *gorm.DB) *gorm.DB
		want  []string
	}{
		{
			name: "append console",
			query: func(tx *gorm.DB) *gorm.DB {
				return repo.appendQuery(tx, 7, "console_log", entity.ConsoleEntry{Level: "info", Message: "hi"})
			},
			want: []string{`"console_log"=console_log ||`, "::jsonb", "status = 'running'"},
		},
		{
			name: "append step",
			query: func(tx *gorm.DB) *gorm.DB {
				return repo.appendQuery(tx, 7, "steps", entity.StepEntry{Name: "GitHub URL Validation"})
			},
			want: []string{`"steps"=steps ||`, "GitHub URL Validation", "status = 'running'"},
		},
		{
			name: "finish",
			query: func(tx *gorm.DB) *gorm.DB {
				return repo.finishQuery(tx, 7, entity.JobStatusCompleted, "Complete: Approved",
					&entity.JobResult{Status: "Approved"}, at)
			},
			want: []string{`"status"='completed'`, `"completed_at"=`, "status = 'running'"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql := db.ToSQL(tt.query)
			for _, fragment := range tt.want {
				if !strings.Contains(sql, fragment) {
					t.Errorf("SQL %q does not contain %q", sql, fragment)
				}
			}
		})
	}
}

func TestClaimWriteBackOnlyWhenUnclaimed(t *testing.T) {
	db := newDryRunDB(t)
	repo := NewReviewJobRepository(db)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return repo.claimWriteBackQuery(tx, 3, time.Now())
	})
	if !strings.Contains(sql, "written_back_at IS NULL") {
		t.Errorf("claim query is not guarded: %s", sql)
	}
}

func TestMarkRunningOnlyFromPending(t *testing.T) {
	db := newDryRunDB(t)
	repo := NewReviewJobRepository(db)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return repo.markRunningQuery(tx, 3)
	})
	if !strings.Contains(sql, "status = 'pending'") || !strings.Contains(sql, `"status"='running'`) {
		t.Errorf("unexpected mark-running SQL: %s", sql)
	}
}
