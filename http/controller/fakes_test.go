package controller

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tnqbao/gau-review-orchestrator/analyzer"
	"github.com/tnqbao/gau-review-orchestrator/config"
	"github.com/tnqbao/gau-review-orchestrator/entity"
	"github.com/tnqbao/gau-review-orchestrator/infra"
	"github.com/tnqbao/gau-review-orchestrator/pipeline"
	"github.com/tnqbao/gau-review-orchestrator/repository"
	"github.com/tnqbao/gau-review-orchestrator/service"
)

type jobTable struct {
	mu   sync.Mutex
	next uint64
	rows map[uint64]entity.ReviewJob
}

func (t *jobTable) Create(job *entity.ReviewJob) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	job.ID = t.next
	job.CreatedAt = time.Now()
	t.rows[job.ID] = *job
	return nil
}

func (t *jobTable) CreateBatch(jobs []*entity.ReviewJob) error {
	for _, job := range jobs {
		_ = t.Create(job)
	}
	return nil
}

func (t *jobTable) FindByIDAndOwner(id uint64, ownerID uuid.UUID) (*entity.ReviewJob, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.rows[id]
	if !ok || job.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	return &job, nil
}

func (t *jobTable) where(ownerID uuid.UUID, keep func(entity.ReviewJob) bool) []entity.ReviewJob {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []entity.ReviewJob
	for id := uint64(1); id <= t.next; id++ {
		if job, ok := t.rows[id]; ok && job.OwnerID == ownerID && keep(job) {
			out = append(out, job)
		}
	}
	return out
}

func (t *jobTable) FindActiveByOwner(ownerID uuid.UUID) ([]entity.ReviewJob, error) {
	return t.where(ownerID, func(j entity.ReviewJob) bool { return !j.Status.IsTerminal() }), nil
}

func (t *jobTable) FindHistoryByOwner(ownerID uuid.UUID, limit int) ([]entity.ReviewJob, error) {
	return t.where(ownerID, func(j entity.ReviewJob) bool { return j.Status.IsTerminal() }), nil
}

func (t *jobTable) FindByOwnerAndStatus(ownerID uuid.UUID, status entity.JobStatus, limit int) ([]entity.ReviewJob, error) {
	return t.where(ownerID, func(j entity.ReviewJob) bool { return j.Status == status }), nil
}

func (t *jobTable) update(id uint64, guard func(entity.ReviewJob) bool, apply func(*entity.ReviewJob)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.rows[id]
	if !ok || !guard(job) {
		return false
	}
	apply(&job)
	t.rows[id] = job
	return true
}

func (t *jobTable) MarkRunning(id uint64) (bool, error) {
	return t.update(id,
		func(j entity.ReviewJob) bool { return j.Status == entity.JobStatusPending },
		func(j *entity.ReviewJob) { j.Status = entity.JobStatusRunning }), nil
}

func (t *jobTable) Finish(id uint64, status entity.JobStatus, currentStep string, res *entity.JobResult) (bool, error) {
	return t.update(id,
		func(j entity.ReviewJob) bool { return j.Status == entity.JobStatusRunning },
		func(j *entity.ReviewJob) { j.Status, j.CurrentStep = status, currentStep }), nil
}

func (t *jobTable) RequestCancel(id uint64) (bool, error) {
	return t.update(id,
		func(j entity.ReviewJob) bool { return j.Status == entity.JobStatusRunning && !j.CancelRequested },
		func(j *entity.ReviewJob) { j.CancelRequested = true }), nil
}

func (t *jobTable) ForceCancel(id uint64, currentStep string, res *entity.JobResult) (bool, error) {
	return t.update(id,
		func(j entity.ReviewJob) bool { return !j.Status.IsTerminal() },
		func(j *entity.ReviewJob) { j.Status, j.CurrentStep = entity.JobStatusCancelled, currentStep }), nil
}

func (t *jobTable) Delete(id uint64, ownerID uuid.UUID) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.rows[id]
	if !ok || job.OwnerID != ownerID || !job.Status.IsTerminal() {
		return false, nil
	}
	delete(t.rows, id)
	return true, nil
}

func (t *jobTable) set(id uint64, status entity.JobStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job := t.rows[id]
	job.Status = status
	t.rows[id] = job
}

type baseTable struct {
	next uint64
	rows map[uint64]entity.ReviewBase
}

func (t *baseTable) Create(base *entity.ReviewBase) error {
	t.next++
	base.ID = t.next
	t.rows[base.ID] = *base
	return nil
}

func (t *baseTable) FindByID(id uint64, ownerID uuid.UUID) (*entity.ReviewBase, error) {
	base, ok := t.rows[id]
	if !ok || base.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	return &base, nil
}

func (t *baseTable) FindByTable(ownerID uuid.UUID, baseID, tableName string) (*entity.ReviewBase, error) {
	for _, base := range t.rows {
		if base.OwnerID == ownerID && base.BaseID == baseID && base.TableName == tableName {
			return &base, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (t *baseTable) FindByOwner(ownerID uuid.UUID) ([]entity.ReviewBase, error) {
	var out []entity.ReviewBase
	for _, base := range t.rows {
		if base.OwnerID == ownerID {
			out = append(out, base)
		}
	}
	return out, nil
}

func (t *baseTable) UpdateMappings(id uint64, ownerID uuid.UUID, mappings entity.FieldMappings) error {
	t.rows[id] = withMappings(t.rows[id], mappings)
	return nil
}

func (t *baseTable) UpdateInstructions(id uint64, ownerID uuid.UUID, instructions string) error {
	base := t.rows[id]
	base.CustomInstructions = instructions
	t.rows[id] = base
	return nil
}

func (t *baseTable) Delete(id uint64, ownerID uuid.UUID) (bool, error) {
	if base, ok := t.rows[id]; !ok || base.OwnerID != ownerID {
		return false, nil
	}
	delete(t.rows, id)
	return true, nil
}

type stubRecords struct {
	records []infra.Record
	err     error
}

func (s *stubRecords) ListRecords(ctx context.Context, baseID, table string, limit int) ([]infra.Record, error) {
	return s.records, s.err
}

type stubDetector struct {
	mappings entity.FieldMappings
}

func (s *stubDetector) Detect(ctx context.Context, records []infra.Record, judge analyzer.Judge) (entity.FieldMappings, error) {
	if len(records) == 0 {
		return entity.FieldMappings{}, analyzer.ErrNoSampleRecords
	}
	return s.mappings, nil
}

type recordingDispatcher struct {
	dispatched []uint64
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, job *entity.ReviewJob) error {
	d.dispatched = append(d.dispatched, job.ID)
	return nil
}

type harness struct {
	router     *gin.Engine
	jobs       *jobTable
	bases      *baseTable
	records    *stubRecords
	detector   *stubDetector
	dispatcher *recordingDispatcher
	owner      uuid.UUID
}

// newHarness mounts the handlers behind a stand-in for the auth middleware that
// trusts the X-Test-User header.
func newHarness() *harness {
	gin.SetMode(gin.TestMode)

	h := &harness{
		jobs:       &jobTable{rows: map[uint64]entity.ReviewJob{}},
		bases:      &baseTable{rows: map[uint64]entity.ReviewBase{}},
		records:    &stubRecords{},
		detector:   &stubDetector{},
		dispatcher: &recordingDispatcher{},
		owner:      uuid.New(),
	}

	cfg := &config.Config{EnvConfig: &config.EnvConfig{}}
	cfg.EnvConfig.Review.BulkLimit = 3
	cfg.EnvConfig.Review.HistoryLimit = 10
	logger := infra.NewLoggerClient(slog.NewTextHandler(io.Discard, nil))

	svc := service.NewReviewService(service.Options{
		Jobs:       h.jobs,
		Bases:      h.bases,
		Records:    h.records,
		Detector:   h.detector,
		Dispatcher: h.dispatcher,
		Registry:   pipeline.NewTokenRegistry(),
		Logger:     logger,
	}, cfg.EnvConfig)
	ctrl := NewController(cfg, &infra.Infra{Logger: logger}, &repository.Repository{}, svc)

	r := gin.New()
	api := r.Group("/", func(c *gin.Context) {
		if user := c.GetHeader("X-Test-User"); user != "" {
			c.Set("user_id", user)
		}
		c.Next()
	})
	api.POST("/jobs", ctrl.StartReview)
	api.POST("/jobs/bulk", ctrl.StartBulkReview)
	api.GET("/jobs", ctrl.ListJobs)
	api.GET("/jobs/:id", ctrl.GetJob)
	api.POST("/jobs/:id/cancel", ctrl.CancelJob)
	api.DELETE("/jobs/:id", ctrl.DeleteJob)
	api.POST("/hooks/jobs", ctrl.TriggerReview)
	api.POST("/bases", ctrl.RegisterBase)
	api.GET("/bases", ctrl.ListBases)
	api.GET("/bases/:id", ctrl.GetBase)
	api.POST("/bases/:id/rescan", ctrl.RescanBase)
	api.PUT("/bases/:id/mappings", ctrl.UpdateBaseMappings)
	api.PUT("/bases/:id/instructions", ctrl.UpdateBaseInstructions)
	api.DELETE("/bases/:id", ctrl.DeleteBase)
	api.GET("/bases/:id/records", ctrl.SearchBaseRecords)
	h.router = r
	return h
}

func (h *harness) addBase() entity.ReviewBase {
	base := withMappings(entity.ReviewBase{
		OwnerID:            h.owner,
		BaseID:             "app1",
		TableName:          "Projects",
		CustomInstructions: "Games only.",
	}, entity.FieldMappings{CodeURL: "Code URL", PlayableURL: "Demo"})
	_ = h.bases.Create(&base)
	return base
}

func withMappings(base entity.ReviewBase, mappings entity.FieldMappings) entity.ReviewBase {
	base.FieldMappings = datatypes.NewJSONType(mappings)
	return base
}
