package pipeline

import (
	"sync"
	"sync/atomic"
)

// CancelToken is the in-process stop signal of one running job.
type CancelToken struct {
	requested atomic.Bool
}

func (t *CancelToken) Request() {
	t.requested.Store(true)
}

func (t *CancelToken) Requested() bool {
	return t != nil && t.requested.Load()
}

// TokenRegistry holds the tokens of the jobs executing in this process.
type TokenRegistry struct {
	mu     sync.Mutex
	tokens map[uint64]*CancelToken
}

func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{tokens: make(map[uint64]*CancelToken)}
}

func (r *TokenRegistry) Register(jobID uint64) *CancelToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token, ok := r.tokens[jobID]; ok {
		return token
	}
	token := &CancelToken{}
	r.tokens[jobID] = token
	return token
}

func (r *TokenRegistry) Release(jobID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, jobID)
}

// Cancel signals the job's token. It reports false when the job does not run here.
func (r *TokenRegistry) Cancel(jobID uint64) bool {
	r.mu.Lock()
	token, ok := r.tokens[jobID]
	r.mu.Unlock()
	if ok {
		token.Request()
	}
	return ok
}

func (r *TokenRegistry) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}
