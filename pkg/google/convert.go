package google

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harrisonrobin/engage/pkg/businessday"
	"github.com/harrisonrobin/engage/pkg/model"
	"github.com/harrisonrobin/engage/pkg/template"
	"google.golang.org/api/calendar/v3"
)

const (
	// TaskIDProperty is the private extended property linking an event to
	// its generated task.
	TaskIDProperty = "engage_task_id"
	bucketProperty = "engage_bucket"
)

// ConvertRecordToEvent turns a task record into an all-day event on its due date.
func ConvertRecordToEvent(r *model.TaskRecord, colorID string) (*calendar.Event, error) {
	if r == nil {
		return nil, errors.New("could not convert nil TaskRecord")
	}
	if r.DueDate.IsZero() {
		return nil, fmt.Errorf("task %s has no due date", r.ID)
	}

	var desc strings.Builder
	fmt.Fprintf(&desc, "Bucket: %s\n", r.Bucket)
	if r.Assignee != "" {
		fmt.Fprintf(&desc, "Assignee: %s\n", r.Assignee)
	}
	fmt.Fprintf(&desc, "Session: %s (%s)\n", r.EngagementDate.Format(businessday.DateLayout), template.OffsetLabel(r.Offset))
	fmt.Fprintf(&desc, "Progress: %s\n", r.Progress)
	fmt.Fprintf(&desc, "Priority: %s\n", r.Priority)
	fmt.Fprintf(&desc, "ID: %s\n", r.ID)

	return &calendar.Event{
		Summary:     r.Name,
		Description: desc.String(),
		ColorId:     colorID,
		Start: &calendar.EventDateTime{
			Date: r.DueDate.Format(businessday.DateLayout),
		},
		// All-day end dates are exclusive.
		End: &calendar.EventDateTime{
			Date: r.DueDate.AddDate(0, 0, 1).Format(businessday.DateLayout),
		},
		Transparency: "transparent",
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				TaskIDProperty: r.ID,
				bucketProperty: r.Bucket,
			},
		},
	}, nil
}

// EventNeedsUpdate returns a patch carrying only the fields of target that
// differ from existing, or nil when the event is already current.
func EventNeedsUpdate(existing, target *calendar.Event) *calendar.Event {
	patch := &calendar.Event{}
	needsUpdate := false

	if existing.Summary != target.Summary {
		patch.Summary = target.Summary
		needsUpdate = true
	}
	if existing.Description != target.Description {
		patch.Description = target.Description
		needsUpdate = true
	}
	if existing.ColorId != target.ColorId {
		patch.ColorId = target.ColorId
		needsUpdate = true
	}
	if eventDate(existing.Start) != eventDate(target.Start) || eventDate(existing.End) != eventDate(target.End) {
		patch.Start = target.Start
		patch.End = target.End
		needsUpdate = true
	}

	if needsUpdate {
		return patch
	}
	return nil
}

func eventDate(dt *calendar.EventDateTime) string {
	if dt == nil {
		return ""
	}
	if dt.Date != "" {
		return dt.Date
	}
	return dt.DateTime
}
