package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/plantops/breakdown-board/internal/pkg/metrics"
)

// ErrIO wraps backend failures so callers can map them to a single
// storage-error response without knowing the backend.
var ErrIO = errors.New("storage failure")

// Backend persists the whole document. Implementations do not need to be
// safe for concurrent use; Repo serializes access above them.
type Backend interface {
	// Load reads the current document. A missing document is seeded,
	// never an error.
	Load(ctx context.Context) (*Document, error)
	// Save durably replaces the document.
	Save(ctx context.Context, doc *Document) error
	// Raw returns the persisted document bytes verbatim, for backups.
	Raw(ctx context.Context) ([]byte, error)
	// Name identifies the backend in logs and metrics.
	Name() string
}

// Repo guards a Backend with a single coarse lock. Every mutation runs a
// full load → mutate → save cycle; if the mutation callback or the save
// fails, nothing is persisted and the caller observes no state change.
type Repo struct {
	mu      sync.Mutex
	backend Backend
}

// NewRepo creates a repository over the given backend.
func NewRepo(backend Backend) *Repo {
	return &Repo{backend: backend}
}

// View runs fn with a freshly loaded document under the lock. The
// document is discarded afterwards; mutations made by fn are not saved.
func (r *Repo) View(ctx context.Context, fn func(doc *Document) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load(ctx)
	if err != nil {
		return err
	}
	return fn(doc)
}

// Update runs fn with a freshly loaded document under the lock and saves
// the document if fn succeeds. An error from fn aborts without saving.
func (r *Repo) Update(ctx context.Context, fn func(doc *Document) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load(ctx)
	if err != nil {
		return err
	}

	if err := fn(doc); err != nil {
		return err
	}

	start := time.Now()
	if err := r.backend.Save(ctx, doc); err != nil {
		return fmt.Errorf("%w: save: %w", ErrIO, err)
	}
	metrics.ObserveStoreOperation(r.backend.Name(), "save", time.Since(start))

	return nil
}

// Raw returns the persisted bytes for backup downloads.
func (r *Repo) Raw(ctx context.Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, err := r.backend.Raw(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: raw: %w", ErrIO, err)
	}
	return raw, nil
}

func (r *Repo) load(ctx context.Context) (*Document, error) {
	start := time.Now()
	doc, err := r.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %w", ErrIO, err)
	}
	metrics.ObserveStoreOperation(r.backend.Name(), "load", time.Since(start))
	return doc, nil
}
