package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/tnqbao/gau-review-orchestrator/analyzer"
	"github.com/tnqbao/gau-review-orchestrator/config"
	"github.com/tnqbao/gau-review-orchestrator/entity"
	"github.com/tnqbao/gau-review-orchestrator/infra"
)

const instrumentationName = "github.com/tnqbao/gau-review-orchestrator/pipeline"

const (
	StepIdentity  = "GitHub URL Validation"
	StepDuplicate = "Check for Duplicate Submission"
	StepContent   = "Test Project Functionality"
	StepCommits   = "Analyze GitHub Commits"
	StepVerdict   = "Auto Final Decision"
	StepFatal     = "Fatal Error"
)

// Components are the collaborators of an Orchestrator. Archive may be nil.
type Components struct {
	Jobs       JobStore
	Records    RecordStore
	Judge      analyzer.Judge
	Content    ContentTester
	Commits    CommitReviewer
	Duplicates DuplicateChecker
	Verdicts   VerdictMaker
	Archive    Archiver
	Registry   *TokenRegistry
	Logger     *infra.LoggerClient
}

// Orchestrator drives one job at a time through the review stages. It is safe to
// run many jobs concurrently on the same Orchestrator.
type Orchestrator struct {
	jobs       JobStore
	records    RecordStore
	judge      analyzer.Judge
	content    ContentTester
	commits    CommitReviewer
	duplicates DuplicateChecker
	verdicts   VerdictMaker
	archive    Archiver
	registry   *TokenRegistry
	logger     *infra.LoggerClient

	VCSHost          string
	Model            string
	JudgmentTimeout  time.Duration
	WriteBackTimeout time.Duration
	CommitWindow     int

	tracer        trace.Tracer
	jobsStarted   metric.Int64Counter
	jobsFinished  metric.Int64Counter
	stageDuration metric.Float64Histogram
}

func NewOrchestrator(c Components, cfg *config.EnvConfig) *Orchestrator {
	registry := c.Registry
	if registry == nil {
		registry = NewTokenRegistry()
	}

	o := &Orchestrator{
		jobs:             c.Jobs,
		records:          c.Records,
		judge:            c.Judge,
		content:          c.Content,
		commits:          c.Commits,
		duplicates:       c.Duplicates,
		verdicts:         c.Verdicts,
		archive:          c.Archive,
		registry:         registry,
		logger:           c.Logger,
		VCSHost:          cfg.Review.SupportedVCSHost,
		Model:            cfg.ExternalService.JudgmentModel,
		JudgmentTimeout:  cfg.Review.JudgmentTimeout,
		WriteBackTimeout: cfg.Review.WriteBackTimeout,
		CommitWindow:     cfg.Review.CommitWindow,
		tracer:           otel.Tracer(instrumentationName),
	}

	meter := otel.Meter(instrumentationName)
	var err error
	if o.jobsStarted, err = meter.Int64Counter("review.jobs.started",
		metric.WithDescription("Review jobs picked up for execution")); err != nil {
		o.jobsStarted = noop.Int64Counter{}
	}
	if o.jobsFinished, err = meter.Int64Counter("review.jobs.finished",
		metric.WithDescription("Review jobs that reached a terminal status")); err != nil {
		o.jobsFinished = noop.Int64Counter{}
	}
	if o.stageDuration, err = meter.Float64Histogram("review.stage.duration",
		metric.WithDescription("Duration of one review stage"), metric.WithUnit("s")); err != nil {
		o.stageDuration = noop.Float64Histogram{}
	}
	return o
}

// NewInfraOrchestrator wires the orchestrator to the production collaborators.
func NewInfraOrchestrator(inf *infra.Infra, jobs JobStore, registry *TokenRegistry, cfg *config.EnvConfig) *Orchestrator {
	components := Components{
		Jobs:       jobs,
		Records:    inf.RecordStore,
		Judge:      inf.Judgment,
		Content:    analyzer.NewContentAnalyzer(inf.WebFetcher, cfg),
		Commits:    analyzer.NewCommitAnalyzer(inf.GitHub, cfg),
		Duplicates: analyzer.NewDuplicateDetector(inf.ApprovedProjs, cfg.Review.SupportedVCSHost),
		Verdicts:   analyzer.NewVerdictSynthesizer(cfg),
		Registry:   registry,
		Logger:     inf.Logger,
	}
	if inf.Minio != nil {
		components.Archive = inf.Minio
	}
	return NewOrchestrator(components, cfg)
}

// Run executes a running job to its terminal state. Jobs in any other state are left alone.
func (o *Orchestrator) Run(ctx context.Context, jobID uint64) error {
	job, err := o.jobs.FindByID(jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %d: %w", jobID, err)
	}
	if job.Status != entity.JobStatusRunning {
		o.logger.WarningWithContextf(ctx, "[Orchestrator] Job #%d is %s, nothing to run", jobID, job.Status)
		return nil
	}

	token := o.registry.Register(jobID)
	defer o.registry.Release(jobID)

	ctx, span := o.tracer.Start(ctx, "review.job", trace.WithAttributes(
		attribute.Int64("review.job_id", int64(jobID)),
		attribute.String("review.record_id", job.Location.RecordID),
	))
	defer span.End()
	o.jobsStarted.Add(ctx, 1)

	run := &jobRun{
		o:        o,
		job:      job,
		token:    token,
		console:  newConsole(jobID, o.jobs, o.logger),
		mappings: job.FieldMappings.Data(),
	}
	run.judge = &loggedJudge{next: o.judge, console: run.console, model: o.Model, timeout: o.JudgmentTimeout}
	run.execute(ctx)

	final, err := o.jobs.FindByID(jobID)
	if err != nil {
		o.logger.ErrorWithContextf(ctx, err, "[Orchestrator] Job #%d: failed to reload finished job: %v", jobID, err)
		return nil
	}
	span.SetAttributes(attribute.String("review.status", string(final.Status)))
	o.jobsFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(final.Status))))

	if o.archive != nil {
		if err := o.archive.ArchiveJob(ctx, final); err != nil {
			o.logger.WarningWithContextf(ctx, "[Orchestrator] Job #%d: failed to archive snapshot: %v", jobID, err)
		}
	}
	return nil
}

// measure wraps one stage in a span and records its duration.
func (o *Orchestrator) measure(ctx context.Context, stage string, fn func(ctx context.Context)) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "review.stage", trace.WithAttributes(attribute.String("review.stage", stage)))
	defer func() {
		span.End()
		o.stageDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
	}()
	fn(ctx)
}
