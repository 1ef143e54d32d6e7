package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"campus-rag/internal/repositories"
)

// ErrRuntimeUnavailable is returned while the runtime components cannot be built
var ErrRuntimeUnavailable = errors.New("runtime components unavailable")

// RuntimeComponents is the process-wide bundle of backend clients
type RuntimeComponents struct {
	Embedder     Embedder
	VectorIndex  repositories.VectorRepository
	Backend      ChatBackend
	Retriever    *Retriever
	Orchestrator *AnswerOrchestrator
}

// Close releases backend connections
func (rc *RuntimeComponents) Close() error {
	if rc == nil || rc.VectorIndex == nil {
		return nil
	}
	return rc.VectorIndex.Close()
}

// RuntimeFactory builds a fresh RuntimeComponents
type RuntimeFactory func(ctx context.Context) (*RuntimeComponents, error)

// RuntimeSource hands out the shared runtime components
type RuntimeSource interface {
	Get(ctx context.Context) (*RuntimeComponents, error)
}

const (
	RuntimeStatusReady   = "ready"
	RuntimeStatusPending = "pending"
	RuntimeStatusFailed  = "failed"
)

// RuntimeProvider builds RuntimeComponents at most once. A failed build is
// not remembered, so the next Get tries again.
type RuntimeProvider struct {
	factory    RuntimeFactory
	components atomic.Pointer[RuntimeComponents]
	mu         sync.Mutex
	failed     atomic.Bool
	logger     *log.Logger
}

// NewRuntimeProvider creates a lazy provider around factory
func NewRuntimeProvider(factory RuntimeFactory, logger *log.Logger) *RuntimeProvider {
	return &RuntimeProvider{
		factory: factory,
		logger:  logger,
	}
}

// Get returns the shared components, building them on first use
func (p *RuntimeProvider) Get(ctx context.Context) (*RuntimeComponents, error) {
	if rc := p.components.Load(); rc != nil {
		return rc, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if rc := p.components.Load(); rc != nil {
		return rc, nil
	}

	p.logger.Println("Initializing runtime components...")
	rc, err := p.factory(ctx)
	if err != nil {
		p.failed.Store(true)
		p.logger.Printf("❌ Runtime initialization failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	}
	if rc == nil {
		p.failed.Store(true)
		return nil, fmt.Errorf("%w: factory returned no components", ErrRuntimeUnavailable)
	}

	p.failed.Store(false)
	p.components.Store(rc)
	p.logger.Println("✅ Runtime components initialized")
	return rc, nil
}

// Status reports whether the components are built
func (p *RuntimeProvider) Status() string {
	if p.components.Load() != nil {
		return RuntimeStatusReady
	}
	if p.failed.Load() {
		return RuntimeStatusFailed
	}
	return RuntimeStatusPending
}

// Close releases the components if they were built
func (p *RuntimeProvider) Close() error {
	return p.components.Load().Close()
}
