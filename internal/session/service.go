// Package session wires a workflow controller to its snapshot store and the
// history log, and serializes access to them.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lehigh-university-libraries/pagegen/internal/config"
	"github.com/lehigh-university-libraries/pagegen/internal/database"
	"github.com/lehigh-university-libraries/pagegen/internal/history"
	"github.com/lehigh-university-libraries/pagegen/internal/outline"
	"github.com/lehigh-university-libraries/pagegen/internal/persistence"
	"github.com/lehigh-university-libraries/pagegen/internal/progress"
	"github.com/lehigh-university-libraries/pagegen/internal/storage"
	"github.com/lehigh-university-libraries/pagegen/internal/workflow"
)

type Service struct {
	mu      sync.Mutex
	ctrl    *workflow.Controller
	bridge  *persistence.Bridge
	history *history.Store
	detach  func()
	db      *sql.DB
}

// New restores the controller from the bridge and keeps the stored snapshot
// in step with every change. hist may be nil.
func New(ctx context.Context, bridge *persistence.Bridge, hist *history.Store) *Service {
	ctrl := workflow.New(bridge.Load(ctx).Value())
	return &Service{
		ctrl:    ctrl,
		bridge:  bridge,
		history: hist,
		detach:  bridge.Attach(ctx, ctrl),
	}
}

// Open builds a service from configuration. An ephemeral service keeps
// everything in memory.
func Open(ctx context.Context, cfg config.Config, ephemeral bool) (*Service, error) {
	path := cfg.Store.Path
	if ephemeral {
		path = ":memory:"
	}
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}

	var blobs storage.BlobStore
	if ephemeral {
		blobs = storage.NewMemory()
	} else {
		sqlite, err := storage.NewSQLite(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		blobs = sqlite
	}

	hist, err := history.NewStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	bridge := persistence.New(blobs, persistence.WithKey(cfg.Store.Key), persistence.WithTimeout(cfg.Store.Timeout))
	s := New(ctx, bridge, hist)
	s.db = db
	slog.Debug("Session opened", "path", path, "stage", s.ctrl.Stage())
	return s, nil
}

func (s *Service) Close() error {
	s.detach()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Do runs fn with exclusive access to the controller.
func (s *Service) Do(fn func(c *workflow.Controller) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.ctrl)
}

func (s *Service) History() *history.Store { return s.history }

func (s *Service) Bridge() *persistence.Bridge { return s.bridge }

// SetOutline replaces the outline and files it in history, creating the
// record on first use. History failures are logged; the outline is kept.
func (s *Service) SetOutline(ctx context.Context, raw string, pages []outline.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctrl.SetOutline(raw, pages)
	if s.history == nil {
		return
	}

	o := s.ctrl.Snapshot().Outline
	topic := s.ctrl.Topic()
	if id := s.ctrl.RecordID(); id != "" {
		ok, err := s.history.Update(ctx, id, history.Update{Title: &topic, Outline: &o})
		if err != nil {
			slog.Warn("Unable to update history record", "id", id, "err", err)
			return
		}
		if ok {
			return
		}
		slog.Debug("History record is gone, creating a new one", "id", id)
	}

	id, err := s.history.Create(ctx, topic, o, s.ctrl.TaskID())
	if err != nil {
		slog.Warn("Unable to create history record", "err", err)
		return
	}
	s.ctrl.SetRecordID(id)
}

// BeginGeneration starts a new round and marks the history record as
// generating.
func (s *Service) BeginGeneration(ctx context.Context) (progress.Round, []outline.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()

	round := s.ctrl.BeginGeneration()
	status := history.StatusGenerating
	s.updateHistory(ctx, history.Update{Status: &status})
	return round, s.ctrl.Pages()
}

// Finish closes the round and records the outcome in history.
func (s *Service) Finish(ctx context.Context, taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctrl.Finish(taskID)

	records := s.ctrl.Snapshot().Images
	generated := []string{}
	for _, r := range records {
		if r.Status == progress.RecordDone && r.URL != "" {
			generated = append(generated, r.URL)
		}
	}
	status := history.StatusFor(len(records), len(generated))
	u := history.Update{TaskID: &taskID, Generated: generated, Status: &status}
	if len(generated) > 0 {
		u.Thumbnail = &generated[0]
	}
	s.updateHistory(ctx, u)
}

func (s *Service) updateHistory(ctx context.Context, u history.Update) {
	id := s.ctrl.RecordID()
	if s.history == nil || id == "" {
		return
	}
	ok, err := s.history.Update(ctx, id, u)
	if err != nil {
		slog.Warn("Unable to update history record", "id", id, "err", err)
		return
	}
	if !ok {
		slog.Debug("History record not found", "id", id)
	}
}

// Describe is a one-line summary used in logs and CLI output.
func Describe(c *workflow.Controller) string {
	p := c.Snapshot().Progress
	return fmt.Sprintf("stage=%s pages=%d progress=%d/%d (%s)", c.Stage(), len(c.Pages()), p.Current, p.Total, p.Status)
}
