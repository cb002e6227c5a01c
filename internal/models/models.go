package models

import (
	"fmt"

	"github.com/lehigh-university-libraries/pagegen/internal/outline"
	"github.com/lehigh-university-libraries/pagegen/internal/progress"
)

// Stage is the coarse phase of a generation session
type Stage string

const (
	StageInput      Stage = "input"
	StageOutline    Stage = "outline"
	StageGenerating Stage = "generating"
	StageResult     Stage = "result"
)

func (s Stage) Valid() bool {
	switch s {
	case StageInput, StageOutline, StageGenerating, StageResult:
		return true
	}
	return false
}

// Snapshot is the persisted part of a session's workflow state
type Snapshot struct {
	Stage    Stage             `json:"stage" yaml:"stage"`
	Topic    string            `json:"topic" yaml:"topic"`
	Outline  outline.Outline   `json:"outline" yaml:"outline"`
	Progress progress.Progress `json:"progress" yaml:"progress"`
	Images   []progress.Record `json:"images" yaml:"images"`
	TaskID   *string           `json:"taskId" yaml:"taskId"`
	RecordID *string           `json:"recordId" yaml:"recordId"`
}

// Default returns the empty state of a fresh session
func Default() Snapshot {
	return Snapshot{
		Stage:    StageInput,
		Outline:  outline.Outline{Pages: []outline.Page{}},
		Progress: progress.Progress{Status: progress.StatusIdle},
		Images:   []progress.Record{},
	}
}

// Normalize replaces empty or unknown values with their defaults
func (s Snapshot) Normalize() Snapshot {
	if !s.Stage.Valid() {
		s.Stage = StageInput
	}
	// raw text and indices are derived from page order
	s.Outline.Replace(s.Outline.Pages)
	if s.Outline.Pages == nil {
		s.Outline.Pages = []outline.Page{}
	}
	switch s.Progress.Status {
	case progress.StatusIdle, progress.StatusGenerating, progress.StatusDone, progress.StatusError:
	default:
		s.Progress.Status = progress.StatusIdle
	}
	// unknown record statuses surface as failures that can be retried
	images := make([]progress.Record, len(s.Images))
	for i, r := range s.Images {
		if !r.Status.Valid() {
			if r.Error == "" {
				r.Error = fmt.Sprintf("unknown status %q", r.Status)
			}
			r.Status = progress.RecordError
		}
		images[i] = r
	}
	s.Images = images
	if s.TaskID != nil && *s.TaskID == "" {
		s.TaskID = nil
	}
	if s.RecordID != nil && *s.RecordID == "" {
		s.RecordID = nil
	}
	return s
}

// StringPtr returns nil for an empty string
func StringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// Deref returns the pointed-to string or ""
func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
