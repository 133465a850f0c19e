package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tnqbao/gau-review-orchestrator/analyzer"
	"github.com/tnqbao/gau-review-orchestrator/config"
	"github.com/tnqbao/gau-review-orchestrator/entity"
	"github.com/tnqbao/gau-review-orchestrator/infra"
	"github.com/tnqbao/gau-review-orchestrator/pipeline"
)

type memoryJobs struct {
	mu     sync.Mutex
	nextID uint64
	jobs   map[uint64]*entity.ReviewJob
}

func newMemoryJobs() *memoryJobs {
	return &memoryJobs{jobs: map[uint64]*entity.ReviewJob{}}
}

func (m *memoryJobs) Create(job *entity.ReviewJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	job.ID = m.nextID
	job.CreatedAt = time.Now().Add(time.Duration(m.nextID) * time.Millisecond)
	clone := *job
	m.jobs[job.ID] = &clone
	return nil
}

func (m *memoryJobs) CreateBatch(jobs []*entity.ReviewJob) error {
	for _, job := range jobs {
		if err := m.Create(job); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryJobs) FindByIDAndOwner(id uint64, ownerID uuid.UUID) (*entity.ReviewJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *job
	return &clone, nil
}

func (m *memoryJobs) filter(ownerID uuid.UUID, keep func(*entity.ReviewJob) bool) []entity.ReviewJob {
	var out []entity.ReviewJob
	for _, job := range m.jobs {
		if job.OwnerID == ownerID && keep(job) {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memoryJobs) FindActiveByOwner(ownerID uuid.UUID) ([]entity.ReviewJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(ownerID, func(j *entity.ReviewJob) bool { return !j.Status.IsTerminal() }), nil
}

func (m *memoryJobs) FindHistoryByOwner(ownerID uuid.UUID, limit int) ([]entity.ReviewJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.filter(ownerID, func(j *entity.ReviewJob) bool { return j.Status.IsTerminal() })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryJobs) FindByOwnerAndStatus(ownerID uuid.UUID, status entity.JobStatus, limit int) ([]entity.ReviewJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.filter(ownerID, func(j *entity.ReviewJob) bool { return j.Status == status })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryJobs) MarkRunning(id uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != entity.JobStatusPending {
		return false, nil
	}
	job.Status = entity.JobStatusRunning
	return true, nil
}

func (m *memoryJobs) Finish(id uint64, status entity.JobStatus, currentStep string, res *entity.JobResult) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != entity.JobStatusRunning {
		return false, nil
	}
	now := time.Now()
	job.Status = status
	job.CurrentStep = currentStep
	job.Result = datatypes.NewJSONType(res)
	job.CompletedAt = &now
	return true, nil
}

func (m *memoryJobs) RequestCancel(id uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status.IsTerminal() || job.CancelRequested {
		return false, nil
	}
	job.CancelRequested = true
	return true, nil
}

func (m *memoryJobs) ForceCancel(id uint64, currentStep string, res *entity.JobResult) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status.IsTerminal() {
		return false, nil
	}
	now := time.Now()
	job.Status = entity.JobStatusCancelled
	job.CurrentStep = currentStep
	job.Result = datatypes.NewJSONType(res)
	job.CancelRequested = true
	job.CompletedAt = &now
	return true, nil
}

func (m *memoryJobs) Delete(id uint64, ownerID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.OwnerID != ownerID || !job.Status.IsTerminal() {
		return false, nil
	}
	delete(m.jobs, id)
	return true, nil
}

func (m *memoryJobs) setStatus(id uint64, status entity.JobStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[id].Status = status
}

type memoryBases struct {
	nextID uint64
	bases  map[uint64]*entity.ReviewBase
}

func newMemoryBases() *memoryBases {
	return &memoryBases{bases: map[uint64]*entity.ReviewBase{}}
}

func (m *memoryBases) Create(base *entity.ReviewBase) error {
	m.nextID++
	base.ID = m.nextID
	clone := *base
	m.bases[base.ID] = &clone
	return nil
}

func (m *memoryBases) FindByID(id uint64, ownerID uuid.UUID) (*entity.ReviewBase, error) {
	base, ok := m.bases[id]
	if !ok || base.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *base
	return &clone, nil
}

func (m *memoryBases) FindByTable(ownerID uuid.UUID, baseID, tableName string) (*entity.ReviewBase, error) {
	for _, base := range m.bases {
		if base.OwnerID == ownerID && base.BaseID == baseID && base.TableName == tableName {
			clone := *base
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryBases) FindByOwner(ownerID uuid.UUID) ([]entity.ReviewBase, error) {
	var out []entity.ReviewBase
	for _, base := range m.bases {
		if base.OwnerID == ownerID {
			out = append(out, *base)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryBases) UpdateMappings(id uint64, ownerID uuid.UUID, mappings entity.FieldMappings) error {
	if base, ok := m.bases[id]; ok && base.OwnerID == ownerID {
		base.FieldMappings = datatypes.NewJSONType(mappings)
	}
	return nil
}

func (m *memoryBases) UpdateInstructions(id uint64, ownerID uuid.UUID, instructions string) error {
	if base, ok := m.bases[id]; ok && base.OwnerID == ownerID {
		base.CustomInstructions = instructions
	}
	return nil
}

func (m *memoryBases) Delete(id uint64, ownerID uuid.UUID) (bool, error) {
	base, ok := m.bases[id]
	if !ok || base.OwnerID != ownerID {
		return false, nil
	}
	delete(m.bases, id)
	return true, nil
}

type fakeRecords struct {
	records []infra.Record
	err     error
	limits  []int
}

func (f *fakeRecords) ListRecords(ctx context.Context, baseID, table string, limit int) ([]infra.Record, error) {
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.records) > limit {
		return f.records[:limit], nil
	}
	return f.records, nil
}

type fakeDetector struct {
	mappings entity.FieldMappings
	err      error
	sampled  int
}

func (f *fakeDetector) Detect(ctx context.Context, records []infra.Record, judge analyzer.Judge) (entity.FieldMappings, error) {
	f.sampled = len(records)
	return f.mappings, f.err
}

type fakeDispatcher struct {
	mu         sync.Mutex
	dispatched []uint64
	err        error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, job *entity.ReviewJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.dispatched = append(f.dispatched, job.ID)
	return nil
}

type fakeNotifier struct {
	notified []uint64
	err      error
}

func (f *fakeNotifier) NotifyCancel(ctx context.Context, jobID uint64) error {
	f.notified = append(f.notified, jobID)
	return f.err
}

var errBackend = errors.New("backend down")

var fullMappings = entity.FieldMappings{
	CodeURL:          "Code URL",
	PlayableURL:      "Playable URL",
	HackatimeHours:   "Hours",
	AutoReviewNotes:  "Review Notes",
	AutoUserFeedback: "User Feedback",
	AutoReviewTag:    "Review Tag",
}

type fixture struct {
	svc        *ReviewService
	jobs       *memoryJobs
	bases      *memoryBases
	records    *fakeRecords
	detector   *fakeDetector
	dispatcher *fakeDispatcher
	notifier   *fakeNotifier
	registry   *pipeline.TokenRegistry
	owner      uuid.UUID
}

func newFixture() *fixture {
	cfg := &config.EnvConfig{}
	cfg.Review.BulkLimit = 3
	cfg.Review.HistoryLimit = 2

	f := &fixture{
		jobs:       newMemoryJobs(),
		bases:      newMemoryBases(),
		records:    &fakeRecords{},
		detector:   &fakeDetector{mappings: fullMappings},
		dispatcher: &fakeDispatcher{},
		notifier:   &fakeNotifier{},
		registry:   pipeline.NewTokenRegistry(),
		owner:      uuid.New(),
	}
	f.svc = NewReviewService(Options{
		Jobs:       f.jobs,
		Bases:      f.bases,
		Records:    f.records,
		Detector:   f.detector,
		Dispatcher: f.dispatcher,
		Notifier:   f.notifier,
		Registry:   f.registry,
		Logger:     infra.NewLoggerClient(slog.NewTextHandler(io.Discard, nil)),
	}, cfg)
	return f
}

func (f *fixture) addBase() *entity.ReviewBase {
	base := &entity.ReviewBase{
		OwnerID:            f.owner,
		BaseID:             "app1",
		TableName:          "Projects",
		FieldMappings:      datatypes.NewJSONType(fullMappings),
		CustomInstructions: "Check the score counter.",
	}
	_ = f.bases.Create(base)
	return base
}
