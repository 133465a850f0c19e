package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tnqbao/gau-review-orchestrator/entity"
)

type fakeCorpus struct {
	calls         []string
	invalidateErr error
	loadErr       error
}

func (f *fakeCorpus) Invalidate(ctx context.Context) error {
	f.calls = append(f.calls, "invalidate")
	return f.invalidateErr
}

func (f *fakeCorpus) ApprovedSubmissions(ctx context.Context) ([]entity.ReferenceSubmission, error) {
	f.calls = append(f.calls, "load")
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return []entity.ReferenceSubmission{{}, {}}, nil
}

func TestRefreshCorpus(t *testing.T) {
	tests := []struct {
		name      string
		corpus    *fakeCorpus
		wantCount int
		wantCalls string
		wantErr   string
	}{
		{"reloads after invalidation", &fakeCorpus{}, 2, "invalidate,load", ""},
		{"redis down", &fakeCorpus{invalidateErr: errors.New("connection refused")}, 0, "invalidate", "drop cached corpus"},
		{"record store down", &fakeCorpus{loadErr: errors.New("503")}, 0, "invalidate,load", "reload corpus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := refreshCorpus(context.Background(), tt.corpus)
			if tt.wantErr == "" && err != nil {
				t.Fatalf("refreshCorpus: %v", err)
			}
			if tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)) {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
			if count != tt.wantCount {
				t.Errorf("count = %d, want %d", count, tt.wantCount)
			}
			if got := strings.Join(tt.corpus.calls, ","); got != tt.wantCalls {
				t.Errorf("calls = %s, want %s", got, tt.wantCalls)
			}
		})
	}
}
