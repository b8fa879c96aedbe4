package model

import "time"

// SessionType selects the task template used for a session.
type SessionType string

const (
	SessionInitial  SessionType = "initial"
	SessionFollowOn SessionType = "followon"
)

const (
	ProgressNotStarted = "Not started"
	PriorityMedium     = "Medium"
	DefaultLabels      = "Add label"
)

// TaskRecord is one generated engagement task, ready for export.
type TaskRecord struct {
	ID        string
	Name      string
	Assignee  string
	StartDate time.Time
	DueDate   time.Time
	Bucket    string
	Progress  string
	Priority  string
	Labels    string

	// Generation context, not part of the Planner columns.
	Customer       string
	Title          string
	Offset         int
	EngagementDate time.Time
}

// Session describes one engagement date within a customer journey.
type Session struct {
	Date  string      `json:"date" yaml:"date"`
	Label string      `json:"label,omitempty" yaml:"label,omitempty"`
	Type  SessionType `json:"type,omitempty" yaml:"type,omitempty"`
}
