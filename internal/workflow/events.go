package workflow

import (
	"time"

	"github.com/lehigh-university-libraries/pagegen/internal/models"
)

// EventKind names the operation that changed the workflow state.
type EventKind string

const (
	EventTopicSet        EventKind = "topic.set"
	EventOutlineSet      EventKind = "outline.set"
	EventPageAdded       EventKind = "page.added"
	EventPageInserted    EventKind = "page.inserted"
	EventPageDeleted     EventKind = "page.deleted"
	EventPageMoved       EventKind = "page.moved"
	EventPageUpdated     EventKind = "page.updated"
	EventGenerationBegun EventKind = "generation.begun"
	EventStatusReported  EventKind = "generation.reported"
	EventImageReplaced   EventKind = "generation.replaced"
	EventImageRetrying   EventKind = "generation.retrying"
	EventGenerationDone  EventKind = "generation.finished"
	EventRecordIDSet     EventKind = "record.set"
	EventReset           EventKind = "workflow.reset"
)

// Event is emitted after every change to the persisted field set. Snapshot
// is a copy of the state after the change.
type Event struct {
	Kind     EventKind
	At       time.Time
	Snapshot models.Snapshot
}

// Listener receives events synchronously, in emission order.
type Listener func(Event)
