package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/tnqbao/gau-review-orchestrator/entity"
	"github.com/tnqbao/gau-review-orchestrator/infra"
)

// console appends to a job's live console log and mirrors every line to the service logger.
type console struct {
	jobID  uint64
	store  JobStore
	logger *infra.LoggerClient
	now    func() time.Time
}

func newConsole(jobID uint64, store JobStore, logger *infra.LoggerClient) *console {
	return &console{jobID: jobID, store: store, logger: logger, now: time.Now}
}

func (c *console) write(ctx context.Context, level, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	entry := entity.ConsoleEntry{Timestamp: c.now().UTC(), Level: level, Message: message}

	if _, err := c.store.AppendConsole(c.jobID, entry); err != nil && c.logger != nil {
		c.logger.ErrorWithContextf(ctx, err, "[Orchestrator] Job #%d: failed to append console entry: %v", c.jobID, err)
	}

	if c.logger == nil {
		return
	}
	switch level {
	case entity.ConsoleLevelError:
		c.logger.ErrorWithContextf(ctx, nil, "[Orchestrator] Job #%d: %s", c.jobID, message)
	case entity.ConsoleLevelWarning:
		c.logger.WarningWithContextf(ctx, "[Orchestrator] Job #%d: %s", c.jobID, message)
	default:
		c.logger.InfoWithContextf(ctx, "[Orchestrator] Job #%d: %s", c.jobID, message)
	}
}

func (c *console) Info(ctx context.Context, format string, args ...interface{}) {
	c.write(ctx, entity.ConsoleLevelInfo, format, args...)
}

func (c *console) Success(ctx context.Context, format string, args ...interface{}) {
	c.write(ctx, entity.ConsoleLevelSuccess, format, args...)
}

func (c *console) Warning(ctx context.Context, format string, args ...interface{}) {
	c.write(ctx, entity.ConsoleLevelWarning, format, args...)
}

func (c *console) Error(ctx context.Context, format string, args ...interface{}) {
	c.write(ctx, entity.ConsoleLevelError, format, args...)
}
