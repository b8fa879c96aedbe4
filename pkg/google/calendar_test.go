package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harrisonrobin/engage/pkg/colors"
	"github.com/harrisonrobin/engage/pkg/index"
	"github.com/harrisonrobin/engage/pkg/model"
	"github.com/harrisonrobin/engage/pkg/template"
	"github.com/harrisonrobin/engage/pkg/timeline"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// fakeCalendar serves the handful of Calendar API calls the client makes.
type fakeCalendar struct {
	mu      sync.Mutex
	events  map[string]*calendar.Event
	nextID  int
	inserts int
	patches int
	deletes int
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{events: make(map[string]*calendar.Event)}
}

func (f *fakeCalendar) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	switch {
	case path == "users/me/calendarList":
		writeJSON(w, &calendar.CalendarList{Items: []*calendar.CalendarListEntry{
			{Id: "primary-id", Summary: "Primary"},
			{Id: "eng-id", Summary: "Engagements"},
		}})
	case path == "calendars/eng-id/events" && r.Method == http.MethodGet:
		want := r.URL.Query().Get("privateExtendedProperty")
		list := &calendar.Events{}
		for _, ev := range f.events {
			if ev.ExtendedProperties != nil && TaskIDProperty+"="+ev.ExtendedProperties.Private[TaskIDProperty] == want {
				list.Items = append(list.Items, ev)
			}
		}
		writeJSON(w, list)
	case path == "calendars/eng-id/events" && r.Method == http.MethodPost:
		var ev calendar.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.nextID++
		ev.Id = fmt.Sprintf("ev%d", f.nextID)
		f.events[ev.Id] = &ev
		f.inserts++
		writeJSON(w, &ev)
	case strings.HasPrefix(path, "calendars/eng-id/events/"):
		id := strings.TrimPrefix(path, "calendars/eng-id/events/")
		ev, ok := f.events[id]
		if !ok {
			http.Error(w, `{"error":{"code":404,"message":"Not Found"}}`, http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, ev)
		case http.MethodPatch:
			var patch calendar.Event
			if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if patch.Summary != "" {
				ev.Summary = patch.Summary
			}
			if patch.Description != "" {
				ev.Description = patch.Description
			}
			if patch.Start != nil {
				ev.Start, ev.End = patch.Start, patch.End
			}
			f.patches++
			writeJSON(w, ev)
		case http.MethodDelete:
			delete(f.events, id)
			f.deletes++
			w.WriteHeader(http.StatusNoContent)
		}
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, fake *fakeCalendar) (*CalendarClient, *index.EventIndex) {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	dir := t.TempDir()
	idx, err := index.Open(filepath.Join(dir, index.IndexFile))
	if err != nil {
		t.Fatalf("index.Open failed: %v", err)
	}
	cache, err := colors.Open(filepath.Join(dir, colors.CacheFile))
	if err != nil {
		t.Fatalf("colors.Open failed: %v", err)
	}

	c, err := NewClient(context.Background(), server.Client(), "Engagements", idx, cache, zap.NewNop().Sugar(),
		option.WithEndpoint(server.URL+"/"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	c.SetRateLimit(rate.Inf, 0)
	return c, idx
}

func generateRecords(t *testing.T, date string) []model.TaskRecord {
	t.Helper()
	set, err := template.Builtin()
	if err != nil {
		t.Fatalf("Builtin failed: %v", err)
	}
	records, err := timeline.NewGenerator(set, "Jordan Lee").Generate("Contoso", date, model.SessionInitial, "")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return records
}

func TestSyncRecordsIsIdempotent(t *testing.T) {
	fake := newFakeCalendar()
	c, idx := newTestClient(t, fake)
	ctx := context.Background()
	records := generateRecords(t, "2026-03-15")

	res, err := c.SyncRecords(ctx, records)
	if err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	if res.Created != 15 || res.Updated != 0 || res.Unchanged != 0 {
		t.Errorf("Unexpected first sync result: %+v", res)
	}
	if idx.Get(c.calendarID, records[0].ID) == "" {
		t.Error("Expected index entry after create")
	}

	res, err = c.SyncRecords(ctx, records)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if res.Created != 0 || res.Unchanged != 15 {
		t.Errorf("Expected no changes on resync, got %+v", res)
	}
	if fake.inserts != 15 || fake.patches != 0 {
		t.Errorf("Unexpected API calls: %d inserts, %d patches", fake.inserts, fake.patches)
	}
}

func TestSyncRecordPatchesChangedEvent(t *testing.T) {
	fake := newFakeCalendar()
	c, idx := newTestClient(t, fake)
	ctx := context.Background()
	r := generateRecords(t, "2026-03-15")[0]

	if _, err := c.SyncRecord(ctx, &r); err != nil {
		t.Fatalf("SyncRecord failed: %v", err)
	}

	// Drop the index so the lookup has to go through the extended property.
	idx.Remove(c.calendarID, r.ID)
	r.Assignee = "Sam Patel"
	got, err := c.SyncRecord(ctx, &r)
	if err != nil {
		t.Fatalf("SyncRecord failed: %v", err)
	}
	if got != OutcomeUpdated {
		t.Errorf("Expected OutcomeUpdated, got %v", got)
	}
	if fake.patches != 1 {
		t.Errorf("Expected one patch, got %d", fake.patches)
	}
	ev := fake.events[idx.Get(c.calendarID, r.ID)]
	if ev == nil || !strings.Contains(ev.Description, "Assignee: Sam Patel") {
		t.Errorf("Expected patched description, got %+v", ev)
	}
}

func TestDeleteRecord(t *testing.T) {
	fake := newFakeCalendar()
	c, idx := newTestClient(t, fake)
	ctx := context.Background()
	r := generateRecords(t, "2026-03-15")[0]

	if _, err := c.SyncRecord(ctx, &r); err != nil {
		t.Fatalf("SyncRecord failed: %v", err)
	}
	if err := c.DeleteRecord(ctx, r.ID); err != nil {
		t.Fatalf("DeleteRecord failed: %v", err)
	}
	if fake.deletes != 1 || len(fake.events) != 0 {
		t.Errorf("Expected event deleted, %d deletes, %d left", fake.deletes, len(fake.events))
	}
	if idx.Get(c.calendarID, r.ID) != "" {
		t.Error("Expected index entry removed")
	}
	if err := c.DeleteRecord(ctx, r.ID); err != nil {
		t.Errorf("Deleting a missing event should be a no-op: %v", err)
	}
}

func TestNewClientUnknownCalendar(t *testing.T) {
	server := httptest.NewServer(newFakeCalendar())
	defer server.Close()
	_, err := NewClient(context.Background(), server.Client(), "Missing", nil, nil, zap.NewNop().Sugar(),
		option.WithEndpoint(server.URL+"/"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected not found error, got %v", err)
	}
}

func TestSyncRecordsStopsWhenCancelled(t *testing.T) {
	c, _ := newTestClient(t, newFakeCalendar())
	c.SetRateLimit(rate.Every(time.Hour), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := c.SyncRecords(ctx, generateRecords(t, "2026-03-15"))
	if err == nil {
		t.Fatal("Expected error from cancelled context")
	}
	if res.Created != 0 {
		t.Errorf("Expected no events created, got %d", res.Created)
	}
}
