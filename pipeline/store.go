package pipeline

import (
	"context"

	"github.com/tnqbao/gau-review-orchestrator/analyzer"
	"github.com/tnqbao/gau-review-orchestrator/entity"
	"github.com/tnqbao/gau-review-orchestrator/infra"
)

// JobStore is the part of the job repository the orchestrator writes through.
// Every mutation reports false once the job has left the running state.
type JobStore interface {
	FindByID(id uint64) (*entity.ReviewJob, error)
	AppendConsole(id uint64, entry entity.ConsoleEntry) (bool, error)
	AppendStep(id uint64, step entity.StepEntry) (bool, error)
	UpdateCurrentStep(id uint64, step string) (bool, error)
	Finish(id uint64, status entity.JobStatus, currentStep string, res *entity.JobResult) (bool, error)
	IsCancelRequested(id uint64) (bool, error)
	ClaimWriteBack(id uint64) (bool, error)
}

type RecordStore interface {
	GetRecord(ctx context.Context, loc entity.RecordLocation) (*infra.Record, error)
	UpdateRecord(ctx context.Context, loc entity.RecordLocation, fields map[string]interface{}) error
}

type ContentTester interface {
	Analyze(ctx context.Context, demoURL string, judge analyzer.Judge) (*entity.ContentSignals, error)
}

type CommitReviewer interface {
	Analyze(ctx context.Context, repoURL string, claimedHours float64, judge analyzer.Judge) (*entity.CommitSignals, error)
}

type DuplicateChecker interface {
	Check(ctx context.Context, codeURL, demoURL string) (bool, error)
}

type VerdictMaker interface {
	Decide(ctx context.Context, in analyzer.VerdictInput, judge analyzer.Judge) (*entity.Verdict, error)
}

// Archiver stores the snapshot of a finished job.
type Archiver interface {
	ArchiveJob(ctx context.Context, job *entity.ReviewJob) error
}
