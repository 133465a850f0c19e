package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"gorm.io/gorm"

	"github.com/tnqbao/gau-review-orchestrator/infra"
)

type ackRecorder struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.acked = true
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type stubRunner struct {
	ran []uint64
	err error
}

func (s *stubRunner) Run(ctx context.Context, jobID uint64) error {
	s.ran = append(s.ran, jobID)
	return s.err
}

func TestHandleAcknowledgement(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		runErr      error
		wantRun     bool
		wantAck     bool
		wantRequeue bool
	}{
		{"success", `{"job_id": 7, "owner_id": "o"}`, nil, true, true, false},
		{"malformed", `{not json`, nil, false, false, false},
		{"missing id", `{"owner_id": "o"}`, nil, false, false, false},
		{"deleted job", `{"job_id": 7}`, fmt.Errorf("failed to load job 7: %w", gorm.ErrRecordNotFound), true, false, false},
		{"database down", `{"job_id": 7}`, errors.New("connection refused"), true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &stubRunner{err: tt.runErr}
			c := NewReviewConsumer(nil, infra.NewLoggerClient(slog.NewTextHandler(io.Discard, nil)), runner, 1)
			ack := &ackRecorder{}

			c.handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte(tt.body)})

			if (len(runner.ran) == 1) != tt.wantRun {
				t.Errorf("ran = %v", runner.ran)
			}
			if ack.acked != tt.wantAck || ack.nacked == tt.wantAck {
				t.Errorf("acked = %t, nacked = %t", ack.acked, ack.nacked)
			}
			if ack.requeue != tt.wantRequeue {
				t.Errorf("requeue = %t, want %t", ack.requeue, tt.wantRequeue)
			}
		})
	}
}
