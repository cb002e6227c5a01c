// Package persistence keeps a best-effort copy of the workflow state in a
// blob store. Storage failures are logged and returned as Results; they
// never interrupt the caller, and the in-memory state stays authoritative.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lehigh-university-libraries/pagegen/internal/models"
	"github.com/lehigh-university-libraries/pagegen/internal/storage"
	"github.com/lehigh-university-libraries/pagegen/internal/workflow"
)

// DefaultKey is the blob key the snapshot is stored under.
const DefaultKey = "generator-state"

// Source is anything that emits workflow change events.
type Source interface {
	Subscribe(fn workflow.Listener) func()
}

type Bridge struct {
	store   storage.BlobStore
	key     string
	timeout time.Duration
	last    Result[struct{}]
}

type Option func(*Bridge)

func WithKey(key string) Option {
	return func(b *Bridge) {
		if key != "" {
			b.key = key
		}
	}
}

// WithTimeout bounds every storage call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.timeout = d }
}

func New(store storage.BlobStore, opts ...Option) *Bridge {
	b := &Bridge{
		store:   store,
		key:     DefaultKey,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bridge) Key() string { return b.key }

// Load reads the stored snapshot. Missing or malformed blobs yield the
// default state; fields absent from the blob keep their defaults.
func (b *Bridge) Load(ctx context.Context) Result[models.Snapshot] {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	def := models.Default()
	data, err := b.store.Get(ctx, b.key)
	if errors.Is(err, storage.ErrNotFound) {
		slog.Debug("No stored workflow state", "key", b.key)
		return Fallback("load", def, err)
	}
	if err != nil {
		slog.Error("Unable to load workflow state", "key", b.key, "err", err)
		return Fallback("load", def, err)
	}

	snap := models.Default()
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Error("Stored workflow state is malformed", "key", b.key, "err", err)
		return Fallback("load", def, fmt.Errorf("decode snapshot: %w", err))
	}
	snap = snap.Normalize()
	slog.Debug("Loaded workflow state", "key", b.key, "stage", snap.Stage, "pages", len(snap.Outline.Pages))
	return Success("load", snap)
}

// Save writes the snapshot. Failures are logged and reported in the Result.
func (b *Bridge) Save(ctx context.Context, snap models.Snapshot) Result[struct{}] {
	data, err := json.Marshal(snap)
	if err != nil {
		slog.Error("Unable to encode workflow state", "err", err)
		return b.record(Fallback("save", struct{}{}, fmt.Errorf("encode snapshot: %w", err)))
	}

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	if err := b.store.Set(ctx, b.key, data); err != nil {
		slog.Error("Unable to save workflow state", "key", b.key, "err", err)
		return b.record(Fallback("save", struct{}{}, err))
	}
	return b.record(Success("save", struct{}{}))
}

// Purge deletes the stored snapshot.
func (b *Bridge) Purge(ctx context.Context) Result[struct{}] {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	if err := b.store.Delete(ctx, b.key); err != nil {
		slog.Error("Unable to purge workflow state", "key", b.key, "err", err)
		return b.record(Fallback("purge", struct{}{}, err))
	}
	slog.Debug("Purged workflow state", "key", b.key)
	return b.record(Success("purge", struct{}{}))
}

// Attach saves on every change event from src and purges on reset. Each
// event produces one write. The returned function detaches the bridge.
func (b *Bridge) Attach(ctx context.Context, src Source) func() {
	return src.Subscribe(func(evt workflow.Event) {
		if evt.Kind == workflow.EventReset {
			b.Purge(ctx)
			return
		}
		b.Save(ctx, evt.Snapshot)
	})
}

// Last returns the result of the most recent save or purge.
func (b *Bridge) Last() Result[struct{}] { return b.last }

func (b *Bridge) record(r Result[struct{}]) Result[struct{}] {
	b.last = r
	return r
}

func (b *Bridge) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}
