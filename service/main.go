package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tnqbao/gau-review-orchestrator/analyzer"
	"github.com/tnqbao/gau-review-orchestrator/config"
	"github.com/tnqbao/gau-review-orchestrator/entity"
	"github.com/tnqbao/gau-review-orchestrator/infra"
	"github.com/tnqbao/gau-review-orchestrator/pipeline"
	"github.com/tnqbao/gau-review-orchestrator/repository"
)

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrJobActive       = errors.New("job is still pending or running")
	ErrBaseNotFound    = errors.New("review base not found")
	ErrBaseExists      = errors.New("review base already registered for this table")
	ErrInvalidStatus   = errors.New("invalid job status")
	ErrNoRecords       = errors.New("no record ids given")
	ErrTooManyRecords  = errors.New("too many records for one bulk review")
	ErrEmptyIdentifier = errors.New("base id and table name are required")
)

type JobRepository interface {
	Create(job *entity.ReviewJob) error
	CreateBatch(jobs []*entity.ReviewJob) error
	FindByIDAndOwner(id uint64, ownerID uuid.UUID) (*entity.ReviewJob, error)
	FindActiveByOwner(ownerID uuid.UUID) ([]entity.ReviewJob, error)
	FindHistoryByOwner(ownerID uuid.UUID, limit int) ([]entity.ReviewJob, error)
	FindByOwnerAndStatus(ownerID uuid.UUID, status entity.JobStatus, limit int) ([]entity.ReviewJob, error)
	MarkRunning(id uint64) (bool, error)
	Finish(id uint64, status entity.JobStatus, currentStep string, res *entity.JobResult) (bool, error)
	RequestCancel(id uint64) (bool, error)
	ForceCancel(id uint64, currentStep string, res *entity.JobResult) (bool, error)
	Delete(id uint64, ownerID uuid.UUID) (bool, error)
}

type BaseRepository interface {
	Create(base *entity.ReviewBase) error
	FindByID(id uint64, ownerID uuid.UUID) (*entity.ReviewBase, error)
	FindByTable(ownerID uuid.UUID, baseID, tableName string) (*entity.ReviewBase, error)
	FindByOwner(ownerID uuid.UUID) ([]entity.ReviewBase, error)
	UpdateMappings(id uint64, ownerID uuid.UUID, mappings entity.FieldMappings) error
	UpdateInstructions(id uint64, ownerID uuid.UUID, instructions string) error
	Delete(id uint64, ownerID uuid.UUID) (bool, error)
}

// RecordLister samples rows of a record-store table.
type RecordLister interface {
	ListRecords(ctx context.Context, baseID, table string, limit int) ([]infra.Record, error)
}

type MappingDetector interface {
	Detect(ctx context.Context, records []infra.Record, judge analyzer.Judge) (entity.FieldMappings, error)
}

// Dispatcher hands a running job to whatever executes it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *entity.ReviewJob) error
}

// CancelNotifier reaches workers in other processes.
type CancelNotifier interface {
	NotifyCancel(ctx context.Context, jobID uint64) error
}

// ReviewService is the job query and control surface shared by the HTTP API and the admin CLI.
type ReviewService struct {
	jobs       JobRepository
	bases      BaseRepository
	records    RecordLister
	detector   MappingDetector
	judge      analyzer.Judge
	dispatcher Dispatcher
	notifier   CancelNotifier
	registry   *pipeline.TokenRegistry
	logger     *infra.LoggerClient

	BulkLimit    int
	HistoryLimit int
}

type Options struct {
	Jobs       JobRepository
	Bases      BaseRepository
	Records    RecordLister
	Detector   MappingDetector
	Judge      analyzer.Judge
	Dispatcher Dispatcher
	Notifier   CancelNotifier
	Registry   *pipeline.TokenRegistry
	Logger     *infra.LoggerClient
}

func NewReviewService(opts Options, cfg *config.EnvConfig) *ReviewService {
	return &ReviewService{
		jobs:         opts.Jobs,
		bases:        opts.Bases,
		records:      opts.Records,
		detector:     opts.Detector,
		judge:        opts.Judge,
		dispatcher:   opts.Dispatcher,
		notifier:     opts.Notifier,
		registry:     opts.Registry,
		logger:       opts.Logger,
		BulkLimit:    cfg.Review.BulkLimit,
		HistoryLimit: cfg.Review.HistoryLimit,
	}
}

// InitReviewService wires the service to the repositories and backends of a process.
func InitReviewService(inf *infra.Infra, repo *repository.Repository, dispatcher Dispatcher, registry *pipeline.TokenRegistry, cfg *config.EnvConfig) *ReviewService {
	opts := Options{
		Jobs:       repo.ReviewJobRepo,
		Bases:      repo.ReviewBaseRepo,
		Records:    inf.RecordStore,
		Detector:   analyzer.NewFieldDetector(cfg),
		Judge:      inf.Judgment,
		Dispatcher: dispatcher,
		Registry:   registry,
		Logger:     inf.Logger,
	}
	if inf.Redis != nil {
		opts.Notifier = inf.Redis
	}
	return NewReviewService(opts, cfg)
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
