package google

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/harrisonrobin/engage/pkg/colors"
	"github.com/harrisonrobin/engage/pkg/index"
	"github.com/harrisonrobin/engage/pkg/model"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Calendar API per-user quota is roughly ten requests a second.
const (
	requestInterval = 100 * time.Millisecond
	requestBurst    = 10
)

// CalendarClient pushes task records to one Google Calendar.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
	index      *index.EventIndex
	colors     *colors.Cache
	limiter    *rate.Limiter
	logger     *zap.SugaredLogger
}

// SyncResult counts what a push did.
type SyncResult struct {
	Created   int
	Updated   int
	Unchanged int
}

// NewCalendarClient wraps an existing service. idx and cache may be nil.
func NewCalendarClient(srv *calendar.Service, calendarID string, idx *index.EventIndex, cache *colors.Cache, logger *zap.SugaredLogger) *CalendarClient {
	return &CalendarClient{
		srv:        srv,
		calendarID: calendarID,
		index:      idx,
		colors:     cache,
		limiter:    rate.NewLimiter(rate.Every(requestInterval), requestBurst),
		logger:     logger,
	}
}

// SetRateLimit changes how fast records are pushed. rate.Inf disables pacing.
func (c *CalendarClient) SetRateLimit(r rate.Limit, burst int) {
	c.limiter.SetLimit(r)
	c.limiter.SetBurst(burst)
}

// NewClient builds a calendar service on top of an authorized HTTP client
// and resolves calendarName to its ID.
func NewClient(ctx context.Context, httpClient *http.Client, calendarName string, idx *index.EventIndex, cache *colors.Cache, logger *zap.SugaredLogger, opts ...option.ClientOption) (*CalendarClient, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}

	calendarList, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve calendar list: %w", err)
	}
	for _, item := range calendarList.Items {
		if item.Summary == calendarName {
			return NewCalendarClient(srv, item.Id, idx, cache, logger), nil
		}
	}
	return nil, fmt.Errorf("calendar %q not found", calendarName)
}

// SyncRecords pushes every record, stopping at the first API error.
func (c *CalendarClient) SyncRecords(ctx context.Context, records []model.TaskRecord) (SyncResult, error) {
	var res SyncResult
	for i := range records {
		if err := c.limiter.Wait(ctx); err != nil {
			return res, err
		}
		result, err := c.SyncRecord(ctx, &records[i])
		if err != nil {
			return res, fmt.Errorf("sync %q: %w", records[i].Name, err)
		}
		switch result {
		case OutcomeCreated:
			res.Created++
		case OutcomeUpdated:
			res.Updated++
		default:
			res.Unchanged++
		}
	}
	if c.index != nil {
		c.logger.Debugw("sync finished", "created", res.Created, "updated", res.Updated,
			"unchanged", res.Unchanged, "indexed", c.index.Len(c.calendarID))
	}
	return res, nil
}

// Outcome reports what SyncRecord did with a record.
type Outcome int

const (
	OutcomeUnchanged Outcome = iota
	OutcomeCreated
	OutcomeUpdated
)

// SyncRecord creates the event for r or patches the existing one.
func (c *CalendarClient) SyncRecord(ctx context.Context, r *model.TaskRecord) (Outcome, error) {
	colorID := ""
	if c.colors != nil {
		colorID = c.colors.ColorID(r.Customer)
	}
	target, err := ConvertRecordToEvent(r, colorID)
	if err != nil {
		return OutcomeUnchanged, err
	}

	existing := c.lookupIndexed(ctx, r.ID)
	if existing == nil {
		existing, err = c.GetEventByTaskID(ctx, r.ID)
		if err != nil {
			return OutcomeUnchanged, fmt.Errorf("error searching for event: %w", err)
		}
	}

	if existing != nil {
		c.remember(r.ID, existing.Id)
		patch := EventNeedsUpdate(existing, target)
		if patch == nil {
			c.logger.Debugw("event up to date", "task", r.Name, "event", existing.Id)
			return OutcomeUnchanged, nil
		}
		updated, err := c.PatchEvent(ctx, existing.Id, patch)
		if err != nil {
			return OutcomeUnchanged, err
		}
		c.logger.Debugw("patched event", "task", r.Name, "event", updated.Id)
		return OutcomeUpdated, nil
	}

	created, err := c.srv.Events.Insert(c.calendarID, target).Context(ctx).Do()
	if err != nil {
		return OutcomeUnchanged, err
	}
	c.remember(r.ID, created.Id)
	c.logger.Debugw("created event", "task", r.Name, "event", created.Id)
	return OutcomeCreated, nil
}

func (c *CalendarClient) lookupIndexed(ctx context.Context, taskID string) *calendar.Event {
	if c.index == nil {
		return nil
	}
	eventID := c.index.Get(c.calendarID, taskID)
	if eventID == "" {
		return nil
	}
	ev, err := c.srv.Events.Get(c.calendarID, eventID).Context(ctx).Do()
	if err != nil || ev.Status == "cancelled" {
		c.logger.Debugw("indexed event unavailable, falling back to search", "task", taskID, "event", eventID, "error", err)
		c.index.Remove(c.calendarID, taskID)
		return nil
	}
	return ev
}

func (c *CalendarClient) remember(taskID, eventID string) {
	if c.index != nil {
		c.index.Set(c.calendarID, taskID, eventID)
	}
}

// PatchEvent performs a partial update on an event.
func (c *CalendarClient) PatchEvent(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	return c.srv.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do()
}

// DeleteRecord removes the event pushed for a task, if any.
func (c *CalendarClient) DeleteRecord(ctx context.Context, taskID string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	ev, err := c.GetEventByTaskID(ctx, taskID)
	if err != nil {
		return err
	}
	if c.index != nil {
		c.index.Remove(c.calendarID, taskID)
	}
	if ev == nil {
		return nil
	}
	return c.srv.Events.Delete(c.calendarID, ev.Id).Context(ctx).Do()
}

// GetEventByTaskID finds the event tagged with taskID, or nil.
func (c *CalendarClient) GetEventByTaskID(ctx context.Context, taskID string) (*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", TaskIDProperty, taskID)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(events.Items) > 0 {
		return events.Items[0], nil
	}
	return nil, nil
}
