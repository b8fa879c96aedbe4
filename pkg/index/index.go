package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// IndexFile is the default file name inside the config directory.
const IndexFile = "events.json"

// EventIndex remembers which event each generated task was pushed to, per
// calendar, so a sync can fetch the event directly instead of searching by
// extended property. Switching calendars never reuses another calendar's IDs.
type EventIndex struct {
	path      string
	calendars map[string]map[string]string

	mu    sync.RWMutex
	dirty bool
}

type fileFormat struct {
	Calendars map[string]map[string]string `json:"calendars"`
}

// Open loads the index at path, starting empty if the file does not exist.
func Open(path string) (*EventIndex, error) {
	idx := &EventIndex{
		path:      path,
		calendars: make(map[string]map[string]string),
	}

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, err
	}
	var ff fileFormat
	if err := json.Unmarshal(b, &ff); err != nil {
		return nil, fmt.Errorf("corrupt event index %s: %w", path, err)
	}
	for cal, m := range ff.Calendars {
		if len(m) > 0 {
			idx.calendars[cal] = m
		}
	}
	return idx, nil
}

func (idx *EventIndex) Path() string { return idx.path }

// Save writes the index if it changed since it was opened or last saved.
func (idx *EventIndex) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(idx.path), 0700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(fileFormat{Calendars: idx.calendars}, "", "  ")
	if err != nil {
		return err
	}
	tmp := idx.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, idx.path); err != nil {
		return err
	}
	idx.dirty = false
	return nil
}

// Get returns the event ID recorded for taskID on calendarID, or "".
func (idx *EventIndex) Get(calendarID, taskID string) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.calendars[calendarID][taskID]
}

func (idx *EventIndex) Set(calendarID, taskID, eventID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	m, ok := idx.calendars[calendarID]
	if !ok {
		m = make(map[string]string)
		idx.calendars[calendarID] = m
	}
	if m[taskID] != eventID {
		m[taskID] = eventID
		idx.dirty = true
	}
}

func (idx *EventIndex) Remove(calendarID, taskID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	m := idx.calendars[calendarID]
	if _, ok := m[taskID]; !ok {
		return
	}
	delete(m, taskID)
	if len(m) == 0 {
		delete(idx.calendars, calendarID)
	}
	idx.dirty = true
}

// Len counts the tasks indexed for calendarID.
func (idx *EventIndex) Len(calendarID string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.calendars[calendarID])
}
