package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/harrisonrobin/engage/pkg/model"
)

// PlannerDateLayout is the date format Microsoft Planner imports.
const PlannerDateLayout = "01/02/2006"

// CombinedFile is written next to the per-session files for multi-session journeys.
const CombinedFile = "tasks_all_sessions.csv"

// Columns is the fixed header of the Planner import sheet.
var Columns = []string{
	"Task Name",
	"Assignment",
	"Start date",
	"Due date",
	"Bucket",
	"Progress",
	"Priority",
	"Labels",
}

// WriteCSV writes records with a header row in Planner column order.
func WriteCSV(w io.Writer, records []model.TaskRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Name,
			r.Assignee,
			r.StartDate.Format(PlannerDateLayout),
			r.DueDate.Format(PlannerDateLayout),
			r.Bucket,
			r.Progress,
			r.Priority,
			r.Labels,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes records to path. Nothing is written for an empty slice,
// in which case ok is false.
func SaveCSV(path string, records []model.TaskRecord) (ok bool, err error) {
	if len(records) == 0 {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return false, fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteCSV(f, records); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

// SessionFile names the CSV for one session: tasks.csv for an initial
// engagement, tasks_<date>.csv for a follow-on.
func SessionFile(sessionType model.SessionType, date string) string {
	if sessionType == model.SessionFollowOn {
		return "tasks_" + date + ".csv"
	}
	return "tasks.csv"
}

// JourneyFile names the CSV for one session of a multi-session journey. It
// always carries the date, whatever the session type, so sessions never
// overwrite each other.
func JourneyFile(date string) string {
	return "tasks_" + date + ".csv"
}

// SaveJourney writes one tasks_<date>.csv per session, in date order, and a
// combined file when there is more than one session and combined is set.
// It returns the paths written.
func SaveJourney(dir string, sessions map[string][]model.TaskRecord, combined bool) ([]string, error) {
	dates := SortedDates(sessions)

	var created []string
	var all []model.TaskRecord
	for _, date := range dates {
		path := filepath.Join(dir, JourneyFile(date))
		ok, err := SaveCSV(path, sessions[date])
		if err != nil {
			return created, err
		}
		if ok {
			created = append(created, path)
		}
		all = append(all, sessions[date]...)
	}

	if combined && len(sessions) > 1 {
		path := filepath.Join(dir, CombinedFile)
		ok, err := SaveCSV(path, all)
		if err != nil {
			return created, err
		}
		if ok {
			created = append(created, path)
		}
	}
	return created, nil
}

// SortedDates returns the session keys in ascending order. ISO dates sort
// lexically.
func SortedDates(sessions map[string][]model.TaskRecord) []string {
	dates := make([]string, 0, len(sessions))
	for d := range sessions {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}
