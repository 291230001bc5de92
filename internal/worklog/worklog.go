// Package worklog submits Tempo worklogs using the stored Jira session cookies.
package worklog

import (
	"encoding/json"
	"time"
)

// Worklog is the Tempo timesheets worklog payload.
type Worklog struct {
	Attributes            map[string]any `json:"attributes"`
	BillableSeconds       *int           `json:"billableSeconds"`
	OriginID              int            `json:"originId"`
	Worker                string         `json:"worker"`
	Comment               *string        `json:"comment"`
	Started               string         `json:"started"`
	TimeSpentSeconds      int            `json:"timeSpentSeconds"`
	OriginTaskID          string         `json:"originTaskId"`
	RemainingEstimate     *int           `json:"remainingEstimate"`
	EndDate               *string        `json:"endDate"`
	IncludeNonWorkingDays *bool          `json:"includeNonWorkingDays"`
}

// New returns a worklog for worker on task, starting on the given day.
// OriginID is -1, meaning the entry is created rather than edited.
func New(worker, taskID string, started time.Time, spent time.Duration) Worklog {
	remaining := 0
	return Worklog{
		Attributes:        map[string]any{},
		OriginID:          -1,
		Worker:            worker,
		Started:           started.Format(time.DateOnly),
		TimeSpentSeconds:  int(spent / time.Second),
		OriginTaskID:      taskID,
		RemainingEstimate: &remaining,
	}
}

// WithComment sets the worklog comment; an empty string clears it.
func (w Worklog) WithComment(comment string) Worklog {
	if comment == "" {
		w.Comment = nil
		return w
	}
	w.Comment = &comment
	return w
}

// MarshalJSON encodes the worklog, sending an empty attributes object rather than null.
func (w Worklog) MarshalJSON() ([]byte, error) {
	type plain Worklog
	if w.Attributes == nil {
		w.Attributes = map[string]any{}
	}
	return json.Marshal(plain(w))
}
