package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/tnqbao/gau-review-orchestrator/analyzer"
	"github.com/tnqbao/gau-review-orchestrator/config"
	"github.com/tnqbao/gau-review-orchestrator/entity"
	"github.com/tnqbao/gau-review-orchestrator/infra"
)

var errJobNotFound = errors.New("job not found")

// memoryJobStore mirrors the running-status guards of the job repository.
type memoryJobStore struct {
	mu         sync.Mutex
	jobs       map[uint64]*entity.ReviewJob
	writeBacks int

	// afterStep runs after every applied step append, outside the lock.
	afterStep func(step entity.StepEntry)
}

func newMemoryJobStore() *memoryJobStore {
	return &memoryJobStore{jobs: map[uint64]*entity.ReviewJob{}}
}

func (s *memoryJobStore) add(job *entity.ReviewJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *memoryJobStore) FindByID(id uint64) (*entity.ReviewJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, errJobNotFound
	}
	clone := *job
	clone.Steps = append(datatypes.JSONSlice[entity.StepEntry]{}, job.Steps...)
	clone.ConsoleLog = append(datatypes.JSONSlice[entity.ConsoleEntry]{}, job.ConsoleLog...)
	return &clone, nil
}

func (s *memoryJobStore) running(id uint64) (*entity.ReviewJob, bool) {
	job, ok := s.jobs[id]
	if !ok || job.Status != entity.JobStatusRunning {
		return nil, false
	}
	return job, true
}

func (s *memoryJobStore) AppendConsole(id uint64, entry entity.ConsoleEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.running(id)
	if !ok {
		return false, nil
	}
	job.ConsoleLog = append(job.ConsoleLog, entry)
	return true, nil
}

func (s *memoryJobStore) AppendStep(id uint64, step entity.StepEntry) (bool, error) {
	s.mu.Lock()
	job, ok := s.running(id)
	if ok {
		job.Steps = append(job.Steps, step)
	}
	hook := s.afterStep
	s.mu.Unlock()

	if ok && hook != nil {
		hook(step)
	}
	return ok, nil
}

func (s *memoryJobStore) UpdateCurrentStep(id uint64, step string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.running(id)
	if !ok {
		return false, nil
	}
	job.CurrentStep = step
	return true, nil
}

func (s *memoryJobStore) Finish(id uint64, status entity.JobStatus, currentStep string, res *entity.JobResult) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.running(id)
	if !ok {
		return false, nil
	}
	now := time.Now().UTC()
	job.Status = status
	job.CurrentStep = currentStep
	job.Result = datatypes.NewJSONType(res)
	job.CompletedAt = &now
	return true, nil
}

func (s *memoryJobStore) IsCancelRequested(id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false, errJobNotFound
	}
	return job.CancelRequested, nil
}

func (s *memoryJobStore) ClaimWriteBack(id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.WrittenBackAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	job.WrittenBackAt = &now
	s.writeBacks++
	return true, nil
}

func (s *memoryJobStore) requestCancel(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id].CancelRequested = true
}

func (s *memoryJobStore) forceCancel(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	now := time.Now().UTC()
	job.Status = entity.JobStatusCancelled
	job.CurrentStep = CancelledStep
	job.Result = datatypes.NewJSONType(CancelledResult(true))
	job.CancelRequested = true
	job.CompletedAt = &now
}

type memoryRecords struct {
	mu        sync.Mutex
	fields    map[string]interface{}
	getErr    error
	updateErr error
	updates   []map[string]interface{}
}

func (r *memoryRecords) GetRecord(ctx context.Context, loc entity.RecordLocation) (*infra.Record, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return &infra.Record{ID: loc.RecordID, Fields: r.fields}, nil
}

func (r *memoryRecords) UpdateRecord(ctx context.Context, loc entity.RecordLocation, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	r.updates = append(r.updates, fields)
	return nil
}

type fakeContent struct {
	calls   int
	signals *entity.ContentSignals
	err     error
}

func (f *fakeContent) Analyze(ctx context.Context, demoURL string, judge analyzer.Judge) (*entity.ContentSignals, error) {
	f.calls++
	return f.signals, f.err
}

type fakeCommits struct {
	calls        int
	repoURL      string
	claimedHours float64
	signals      *entity.CommitSignals
	err          error
}

func (f *fakeCommits) Analyze(ctx context.Context, repoURL string, claimedHours float64, judge analyzer.Judge) (*entity.CommitSignals, error) {
	f.calls++
	f.repoURL = repoURL
	f.claimedHours = claimedHours
	return f.signals, f.err
}

type fakeDuplicates struct {
	calls     int
	duplicate bool
	err       error
}

func (f *fakeDuplicates) Check(ctx context.Context, codeURL, demoURL string) (bool, error) {
	f.calls++
	return f.duplicate, f.err
}

type fakeVerdicts struct {
	calls   int
	input   analyzer.VerdictInput
	verdict *entity.Verdict
	err     error
}

func (f *fakeVerdicts) Decide(ctx context.Context, in analyzer.VerdictInput, judge analyzer.Judge) (*entity.Verdict, error) {
	f.calls++
	f.input = in
	return f.verdict, f.err
}

type fakeArchive struct {
	archived []entity.JobStatus
}

func (a *fakeArchive) ArchiveJob(ctx context.Context, job *entity.ReviewJob) error {
	a.archived = append(a.archived, job.Status)
	return nil
}

type unusedJudge struct{}

func (unusedJudge) Invoke(ctx context.Context, req infra.JudgmentRequest) (string, error) {
	return "", errors.New("judge should not be called")
}

var testMappings = entity.FieldMappings{
	CodeURL:          "Code URL",
	PlayableURL:      "Playable URL",
	HackatimeHours:   "Hours",
	AutoReviewNotes:  "Review Notes",
	AutoUserFeedback: "User Feedback",
	AutoReviewTag:    "Review Tag",
}

func testConfig() *config.EnvConfig {
	cfg := &config.EnvConfig{}
	cfg.Review.SupportedVCSHost = "github.com"
	cfg.Review.WriteBackTimeout = time.Second
	cfg.Review.JudgmentTimeout = time.Second
	cfg.Review.CommitWindow = 30
	cfg.Review.VCSAttempts = 1
	cfg.ExternalService.JudgmentModel = "test-model"
	return cfg
}

func discardLogger() *infra.LoggerClient {
	return infra.NewLoggerClient(slog.NewTextHandler(io.Discard, nil))
}

// harness bundles an orchestrator with in-memory collaborators and one running job.
type harness struct {
	store      *memoryJobStore
	records    *memoryRecords
	content    *fakeContent
	commits    *fakeCommits
	duplicates *fakeDuplicates
	verdicts   *fakeVerdicts
	archive    *fakeArchive
	commitSrc  CommitReviewer
	registry   *TokenRegistry
	jobID      uint64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := newMemoryJobStore()
	job := entity.NewReviewJob(uuid.New(), entity.RecordLocation{BaseID: "app1", TableName: "Projects", RecordID: "rec1"},
		testMappings, "Games need a score counter.")
	job.ID = 1
	job.Status = entity.JobStatusRunning
	store.add(job)

	return &harness{
		store: store,
		records: &memoryRecords{fields: map[string]interface{}{
			"Code URL":     "https://github.com/ann/space-game",
			"Playable URL": "https://ann.dev/space",
			"Hours":        "12.5",
		}},
		content: &fakeContent{signals: &entity.ContentSignals{
			IsWorking: true, IsLegitimate: true, QualityScore: 8, OriginalityScore: 7, Features: []string{"score counter"},
		}},
		commits: &fakeCommits{signals: &entity.CommitSignals{
			CommitsMatchHours: true, CommitPattern: "consistent", AIInvolvement: entity.AIInvolvementLight,
			EstimatedActualHours: 11, Metadata: &entity.CommitMetadata{TotalCommits: 12},
		}},
		duplicates: &fakeDuplicates{},
		verdicts: &fakeVerdicts{verdict: &entity.Verdict{
			Status: entity.VerdictApproved, ConfidenceScore: 8, ReviewNotes: "Consistent history.", UserFeedback: "Great game!",
		}},
		archive:  &fakeArchive{},
		registry: NewTokenRegistry(),
		jobID:    1,
	}
}

func (h *harness) orchestrator() *Orchestrator {
	var commits CommitReviewer = h.commits
	if h.commitSrc != nil {
		commits = h.commitSrc
	}
	return NewOrchestrator(Components{
		Jobs:       h.store,
		Records:    h.records,
		Judge:      unusedJudge{},
		Content:    h.content,
		Commits:    commits,
		Duplicates: h.duplicates,
		Verdicts:   h.verdicts,
		Archive:    h.archive,
		Registry:   h.registry,
		Logger:     discardLogger(),
	}, testConfig())
}

func (h *harness) run(t *testing.T) *entity.ReviewJob {
	t.Helper()
	if err := h.orchestrator().Run(context.Background(), h.jobID); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	job, err := h.store.FindByID(h.jobID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	return job
}

func stepNames(job *entity.ReviewJob) []string {
	names := make([]string, 0, len(job.Steps))
	for _, step := range job.Steps {
		names = append(names, step.Name)
	}
	return names
}

func hasStep(job *entity.ReviewJob, name string) bool {
	for _, step := range job.Steps {
		if step.Name == name {
			return true
		}
	}
	return false
}
