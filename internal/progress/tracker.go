// Package progress tracks per-page generation results for one round of
// generation and the aggregate counters shown to the user.
package progress

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/pagegen/internal/outline"
)

// Status is the aggregate generation status.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusGenerating Status = "generating"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// RecordStatus is the status of a single page's generation.
type RecordStatus string

const (
	RecordGenerating RecordStatus = "generating"
	RecordDone       RecordStatus = "done"
	RecordError      RecordStatus = "error"
	RecordRetrying   RecordStatus = "retrying"
)

// Valid reports whether s is a known record status.
func (s RecordStatus) Valid() bool {
	switch s {
	case RecordGenerating, RecordDone, RecordError, RecordRetrying:
		return true
	}
	return false
}

// Progress holds the aggregate counters. Current is not clamped to Total.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Status  Status `json:"status"`
}

// Record is the generation result for one page, keyed by the page index at
// the time the round started.
type Record struct {
	Index     int          `json:"index"`
	URL       string       `json:"url"`
	Status    RecordStatus `json:"status"`
	Error     string       `json:"error,omitempty" yaml:"error,omitempty"`
	Retryable bool         `json:"retryable,omitempty" yaml:"retryable,omitempty"`
}

// Round identifies one generation round. Reports carrying any other round
// are discarded. Numbering starts from a random origin in every tracker, so
// rounds issued by an earlier process do not repeat after a restart.
type Round uint64

// randomRound stays below 2^52 so JSON clients decode rounds exactly.
func randomRound() Round { return Round(rand.Uint64N(1 << 52)) }

// Report is an asynchronous status update from the generation service.
type Report struct {
	Round     Round        `json:"round"`
	Index     int          `json:"index"`
	Status    RecordStatus `json:"status"`
	URL       string       `json:"url,omitempty"`
	Error     string       `json:"error,omitempty"`
	Retryable *bool        `json:"retryable,omitempty"`
}

// Tracker owns the records of the current round. It is not safe for
// concurrent use; callers serialize access.
type Tracker struct {
	progress  Progress
	records   []Record
	round     Round
	lastToken int64
	now       func() time.Time
}

// New returns an idle tracker.
func New() *Tracker {
	return &Tracker{
		progress: Progress{Status: StatusIdle},
		round:    randomRound(),
		now:      time.Now,
	}
}

// Restore loads counters and records from a snapshot. The restored records
// belong to a new round; reports tagged with any round issued before the
// restore are discarded.
func (t *Tracker) Restore(p Progress, records []Record) {
	t.progress = p
	t.records = append([]Record(nil), records...)
	t.round++
}

// Start opens a new round with one generating record per page.
func (t *Tracker) Start(pages []outline.Page) Round {
	t.round++
	t.records = make([]Record, len(pages))
	for i, p := range pages {
		t.records[i] = Record{Index: p.Index, Status: RecordGenerating}
	}
	t.progress = Progress{Current: 0, Total: len(pages), Status: StatusGenerating}
	return t.round
}

// Report applies an update and reports whether it matched a record of the
// current round. Every applied done report increments Current by one, even
// when the same index was already done.
func (t *Tracker) Report(r Report) bool {
	if r.Round != t.round {
		return false
	}
	rec := t.find(r.Index)
	if rec == nil {
		return false
	}
	rec.Status = r.Status
	if r.URL != "" {
		rec.URL = r.URL
	}
	if r.Error != "" {
		rec.Error = r.Error
	}
	if r.Retryable != nil {
		rec.Retryable = *r.Retryable
	}
	if r.Status == RecordDone {
		t.progress.Current++
	}
	return true
}

// Replace marks a record done with a new URL carrying a cache-busting token
// and clears its error.
func (t *Tracker) Replace(index int, url string) bool {
	rec := t.find(index)
	if rec == nil {
		return false
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	rec.URL = fmt.Sprintf("%s%st=%d", url, sep, t.nextToken())
	rec.Status = RecordDone
	rec.Error = ""
	rec.Retryable = false
	return true
}

// MarkRetrying flags a record as being retried. Counters are untouched.
func (t *Tracker) MarkRetrying(index int) bool {
	rec := t.find(index)
	if rec == nil {
		return false
	}
	rec.Status = RecordRetrying
	return true
}

// Finish sets the aggregate status to done.
func (t *Tracker) Finish() {
	t.progress.Status = StatusDone
}

// Reset clears records and counters. The round keeps counting so reports
// from earlier rounds stay stale.
func (t *Tracker) Reset() {
	t.records = nil
	t.progress = Progress{Status: StatusIdle}
}

// Failed returns the records in error.
func (t *Tracker) Failed() []Record {
	var out []Record
	for _, r := range t.records {
		if r.Status == RecordError {
			out = append(out, r)
		}
	}
	return out
}

// FailedPages returns the pages whose index matches a failed record.
func (t *Tracker) FailedPages(pages []outline.Page) []outline.Page {
	failed := make(map[int]bool)
	for _, r := range t.Failed() {
		failed[r.Index] = true
	}
	var out []outline.Page
	for _, p := range pages {
		if failed[p.Index] {
			out = append(out, p)
		}
	}
	return out
}

// HasFailures reports whether any record is in error.
func (t *Tracker) HasFailures() bool {
	for _, r := range t.records {
		if r.Status == RecordError {
			return true
		}
	}
	return false
}

func (t *Tracker) Progress() Progress { return t.progress }

// Records returns a copy of the current records.
func (t *Tracker) Records() []Record {
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

func (t *Tracker) Round() Round { return t.round }

func (t *Tracker) find(index int) *Record {
	for i := range t.records {
		if t.records[i].Index == index {
			return &t.records[i]
		}
	}
	return nil
}

// nextToken returns the current time in milliseconds, bumped when needed so
// consecutive tokens always differ.
func (t *Tracker) nextToken() int64 {
	tok := t.now().UnixMilli()
	if tok <= t.lastToken {
		tok = t.lastToken + 1
	}
	t.lastToken = tok
	return tok
}
