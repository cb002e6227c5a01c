package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/pagegen/internal/models"
	"github.com/lehigh-university-libraries/pagegen/internal/outline"
	"github.com/lehigh-university-libraries/pagegen/internal/progress"
	"github.com/lehigh-university-libraries/pagegen/internal/storage"
	"github.com/lehigh-university-libraries/pagegen/internal/workflow"
)

type failingStore struct {
	err  error
	sets int
}

func (s *failingStore) Get(ctx context.Context, key string) ([]byte, error) { return nil, s.err }

func (s *failingStore) Set(ctx context.Context, key string, value []byte) error {
	s.sets++
	return s.err
}

func (s *failingStore) Delete(ctx context.Context, key string) error { return s.err }

func TestLoadMissingReturnsDefaults(t *testing.T) {
	b := New(storage.NewMemory())
	res := b.Load(context.Background())

	require.False(t, res.IsSuccess())
	require.ErrorIs(t, res.Err(), storage.ErrNotFound)
	require.Equal(t, models.Default(), res.Value())
	require.Equal(t, "load", res.Op())
}

func TestLoadMalformedReturnsDefaults(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Set(ctx, DefaultKey, []byte("{not json")))

	res := New(store).Load(ctx)
	require.Error(t, res.Err())
	require.Equal(t, models.Default(), res.Value())
}

func TestLoadPartialBlobKeepsDefaults(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Set(ctx, DefaultKey, []byte(`{"topic":"winter","stage":"bogus"}`)))

	res := New(store).Load(ctx)
	require.True(t, res.IsSuccess())
	snap := res.Value()
	require.Equal(t, "winter", snap.Topic)
	require.Equal(t, models.StageInput, snap.Stage)
	require.Equal(t, progress.StatusIdle, snap.Progress.Status)
	require.NotNil(t, snap.Outline.Pages)
	require.NotNil(t, snap.Images)
	require.Nil(t, snap.TaskID)
}

func TestFailingStoreNeverPanics(t *testing.T) {
	ctx := context.Background()
	fs := &failingStore{err: errors.New("quota exceeded")}
	b := New(fs)

	load := b.Load(ctx)
	require.Equal(t, models.Default(), load.Value())

	save := b.Save(ctx, models.Default())
	require.EqualError(t, save.Err(), "quota exceeded")
	require.Equal(t, save, b.Last())

	require.Error(t, b.Purge(ctx).Err())
}

func TestSaveRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	b := New(store, WithKey("custom"))

	task := "task_1"
	snap := models.Snapshot{
		Stage:    models.StageResult,
		Topic:    "spring",
		Outline:  outline.Outline{Raw: "A\n\n<page>\n\nB", Pages: []outline.Page{{Index: 0, Type: outline.PageCover, Content: "A"}, {Index: 1, Type: outline.PageSummary, Content: "B"}}},
		Progress: progress.Progress{Current: 2, Total: 2, Status: progress.StatusDone},
		Images:   []progress.Record{{Index: 0, URL: "a.png", Status: progress.RecordDone}, {Index: 1, URL: "b.png", Status: progress.RecordDone}},
		TaskID:   &task,
	}
	require.True(t, b.Save(ctx, snap).IsSuccess())
	require.Equal(t, []string{"custom"}, store.Keys())

	require.Equal(t, snap, b.Load(ctx).Value())
}

func TestAttachSavesEveryEventAndPurgesOnReset(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	b := New(store)
	c := workflow.New(models.Default())

	var saves int
	c.Subscribe(func(e workflow.Event) {
		if e.Kind != workflow.EventReset {
			saves++
		}
	})
	detach := b.Attach(ctx, c)

	c.SetTopic("beach day")
	c.SetOutline("Cover<page>Packing<page>Wrap up", nil)
	c.AttachUserImage(workflow.UserImage{Name: "ref.png", Data: []byte("secret")})
	c.BeginGeneration()
	require.Equal(t, 3, saves)

	raw, err := store.Get(ctx, DefaultKey)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "secret")
	require.NotContains(t, string(raw), "ref.png")

	var stored map[string]any
	require.NoError(t, json.Unmarshal(raw, &stored))
	require.ElementsMatch(t, []string{"stage", "topic", "outline", "progress", "images", "taskId", "recordId"}, keysOf(stored))

	loaded := b.Load(ctx).Value()
	require.Equal(t, models.StageGenerating, loaded.Stage)
	require.Len(t, loaded.Images, 3)

	c.Reset()
	_, err = store.Get(ctx, DefaultKey)
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.Equal(t, "purge", b.Last().Op())

	detach()
	c.SetTopic("after detach")
	_, err = store.Get(ctx, DefaultKey)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAttachWithFailingStoreKeepsController(t *testing.T) {
	fs := &failingStore{err: errors.New("disk full")}
	c := workflow.New(models.Default())
	New(fs).Attach(context.Background(), c)

	c.SetTopic("still works")
	c.AddPage(outline.PageContent, "x")

	require.Equal(t, 2, fs.sets)
	require.Equal(t, "still works", c.Topic())
	require.Len(t, c.Pages(), 1)
}

func keysOf(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
