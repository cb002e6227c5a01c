// Package workflow holds the session state machine that drives a topic
// through outline editing, page generation and the final result.
//
// Stage transitions are not guarded: every operation may be called in any
// stage. Callers that need stricter rules enforce them before calling in.
// A Controller is not safe for concurrent use; callers serialize access.
package workflow

import (
	"time"

	"github.com/lehigh-university-libraries/pagegen/internal/models"
	"github.com/lehigh-university-libraries/pagegen/internal/outline"
	"github.com/lehigh-university-libraries/pagegen/internal/progress"
)

// UserImage is a reference image supplied by the user. User images live
// only in memory and are never part of a Snapshot.
type UserImage struct {
	Name        string
	ContentType string
	Width       int
	Height      int
	Data        []byte
}

type Controller struct {
	stage    models.Stage
	topic    string
	outline  outline.Outline
	tracker  *progress.Tracker
	taskID   *string
	recordID *string

	userImages []UserImage

	listeners map[int]Listener
	order     []int
	nextID    int
	now       func() time.Time
}

// New builds a controller from a restored (or default) snapshot.
func New(snap models.Snapshot) *Controller {
	snap = snap.Normalize()
	c := &Controller{
		stage:     snap.Stage,
		topic:     snap.Topic,
		outline:   snap.Outline.Clone(),
		tracker:   progress.New(),
		taskID:    copyString(snap.TaskID),
		recordID:  copyString(snap.RecordID),
		listeners: make(map[int]Listener),
		now:       time.Now,
	}
	c.tracker.Restore(snap.Progress, snap.Images)
	return c
}

// Subscribe registers fn for change events and returns a function that
// removes it.
func (c *Controller) Subscribe(fn Listener) func() {
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.order = append(c.order, id)
	return func() {
		delete(c.listeners, id)
		for i, v := range c.order {
			if v == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
}

func (c *Controller) emit(kind EventKind) {
	if len(c.order) == 0 {
		return
	}
	evt := Event{Kind: kind, At: c.now(), Snapshot: c.Snapshot()}
	for _, id := range append([]int(nil), c.order...) {
		if fn, ok := c.listeners[id]; ok {
			fn(evt)
		}
	}
}

// Snapshot returns a copy of the persisted field set.
func (c *Controller) Snapshot() models.Snapshot {
	return models.Snapshot{
		Stage:    c.stage,
		Topic:    c.topic,
		Outline:  c.outline.Clone(),
		Progress: c.tracker.Progress(),
		Images:   c.tracker.Records(),
		TaskID:   copyString(c.taskID),
		RecordID: copyString(c.recordID),
	}
}

func (c *Controller) Stage() models.Stage { return c.stage }

func (c *Controller) Topic() string { return c.topic }

// Pages returns a copy of the outline pages.
func (c *Controller) Pages() []outline.Page {
	return c.outline.Clone().Pages
}

func (c *Controller) Round() progress.Round { return c.tracker.Round() }

func (c *Controller) SetTopic(topic string) {
	c.topic = topic
	c.emit(EventTopicSet)
}

// SetOutline replaces the outline and moves to the outline stage. When pages
// is empty the raw text is parsed into pages. The raw text is always rebuilt
// from the resulting pages.
func (c *Controller) SetOutline(raw string, pages []outline.Page) {
	if len(pages) == 0 {
		pages = outline.Parse(raw)
	}
	c.outline.Replace(pages)
	c.stage = models.StageOutline
	c.emit(EventOutlineSet)
}

func (c *Controller) AddPage(t outline.PageType, content string) {
	c.outline.Append(t, content)
	c.emit(EventPageAdded)
}

func (c *Controller) InsertPage(afterIndex int, t outline.PageType, content string) {
	c.outline.InsertAfter(afterIndex, t, content)
	c.emit(EventPageInserted)
}

func (c *Controller) DeletePage(index int) bool {
	if !c.outline.Remove(index) {
		return false
	}
	c.emit(EventPageDeleted)
	return true
}

func (c *Controller) MovePage(from, to int) bool {
	if !c.outline.Move(from, to) {
		return false
	}
	c.emit(EventPageMoved)
	return true
}

func (c *Controller) UpdatePage(index int, content string) bool {
	if !c.outline.Update(index, content) {
		return false
	}
	c.emit(EventPageUpdated)
	return true
}

// BeginGeneration moves to the generating stage and snapshots the current
// pages into a new round of records.
func (c *Controller) BeginGeneration() progress.Round {
	c.stage = models.StageGenerating
	round := c.tracker.Start(c.outline.Pages)
	c.emit(EventGenerationBegun)
	return round
}

// ReportStatus applies an asynchronous update from the generation service.
// Reports for other rounds or unknown indices change nothing.
func (c *Controller) ReportStatus(r progress.Report) bool {
	if !c.tracker.Report(r) {
		return false
	}
	c.emit(EventStatusReported)
	return true
}

func (c *Controller) ReplaceImage(index int, url string) bool {
	if !c.tracker.Replace(index, url) {
		return false
	}
	c.emit(EventImageReplaced)
	return true
}

func (c *Controller) MarkRetrying(index int) bool {
	if !c.tracker.MarkRetrying(index) {
		return false
	}
	c.emit(EventImageRetrying)
	return true
}

func (c *Controller) FailedRecords() []progress.Record { return c.tracker.Failed() }

func (c *Controller) FailedPages() []outline.Page {
	return c.tracker.FailedPages(c.outline.Pages)
}

func (c *Controller) HasFailures() bool { return c.tracker.HasFailures() }

// Finish records the task id and moves to the result stage.
func (c *Controller) Finish(taskID string) {
	c.taskID = models.StringPtr(taskID)
	c.stage = models.StageResult
	c.tracker.Finish()
	c.emit(EventGenerationDone)
}

func (c *Controller) SetRecordID(id string) {
	c.recordID = models.StringPtr(id)
	c.emit(EventRecordIDSet)
}

func (c *Controller) TaskID() string { return models.Deref(c.taskID) }

func (c *Controller) RecordID() string { return models.Deref(c.recordID) }

func (c *Controller) AttachUserImage(img UserImage) {
	c.userImages = append(c.userImages, img)
}

func (c *Controller) UserImages() []UserImage {
	return append([]UserImage(nil), c.userImages...)
}

func (c *Controller) ClearUserImages() {
	c.userImages = nil
}

// Reset returns every field to its default. Listeners receive EventReset,
// on which the stored snapshot is expected to be purged.
func (c *Controller) Reset() {
	def := models.Default()
	c.stage = def.Stage
	c.topic = def.Topic
	c.outline = def.Outline
	c.tracker.Reset()
	c.taskID = nil
	c.recordID = nil
	c.userImages = nil
	c.emit(EventReset)
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}
