package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harrisonrobin/engage/pkg/model"
	"github.com/harrisonrobin/engage/pkg/template"
	"github.com/harrisonrobin/engage/pkg/timeline"
)

func generate(t *testing.T, customer, date string, st model.SessionType, label string) []model.TaskRecord {
	t.Helper()
	set, err := template.Builtin()
	if err != nil {
		t.Fatalf("Builtin failed: %v", err)
	}
	records, err := timeline.NewGenerator(set, "Jordan Lee").Generate(customer, date, st, label)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return records
}

func TestWriteCSV(t *testing.T) {
	records := generate(t, "Contoso, Ltd", "2026-03-15", model.SessionInitial, "")

	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading CSV back failed: %v", err)
	}
	if len(rows) != 16 {
		t.Fatalf("Expected header + 15 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], "|") != strings.Join(Columns, "|") {
		t.Errorf("Unexpected header: %v", rows[0])
	}

	survey := rows[12]
	if survey[0] != "Contoso, Ltd - Send Satisfaction Survey to customer" {
		t.Errorf("Unexpected task name %q", survey[0])
	}
	if survey[2] != "03/15/2026" || survey[3] != "03/15/2026" {
		t.Errorf("Unexpected dates %q %q", survey[2], survey[3])
	}
	if survey[4] != "2026-03-15 - Contoso, Ltd" || survey[5] != "Not started" || survey[6] != "Medium" || survey[7] != "Add label" {
		t.Errorf("Unexpected fixed columns: %v", survey)
	}
	if rows[1][3] != "02/04/2026" {
		t.Errorf("Expected first due date 02/04/2026, got %s", rows[1][3])
	}
}

func TestSaveCSVEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.csv")
	ok, err := SaveCSV(path, nil)
	if err != nil || ok {
		t.Fatalf("SaveCSV(nil) = %v, %v", ok, err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected no file for empty records")
	}
}

func TestSaveJourney(t *testing.T) {
	dir := t.TempDir()
	sessions := map[string][]model.TaskRecord{
		"2026-03-31": generate(t, "Textron", "2026-03-31", model.SessionFollowOn, ""),
		"2026-03-12": generate(t, "Textron", "2026-03-12", model.SessionFollowOn, "Session 2"),
	}

	created, err := SaveJourney(dir, sessions, true)
	if err != nil {
		t.Fatalf("SaveJourney failed: %v", err)
	}
	want := []string{
		filepath.Join(dir, "tasks_2026-03-12.csv"),
		filepath.Join(dir, "tasks_2026-03-31.csv"),
		filepath.Join(dir, CombinedFile),
	}
	if strings.Join(created, ",") != strings.Join(want, ",") {
		t.Fatalf("created = %v, want %v", created, want)
	}

	f, err := os.Open(want[2])
	if err != nil {
		t.Fatalf("open combined: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read combined: %v", err)
	}
	if len(rows) != 1+28 {
		t.Errorf("Expected 29 combined rows, got %d", len(rows))
	}

	single := map[string][]model.TaskRecord{"2026-03-12": sessions["2026-03-12"]}
	created, err = SaveJourney(t.TempDir(), single, true)
	if err != nil {
		t.Fatalf("SaveJourney single failed: %v", err)
	}
	if len(created) != 1 {
		t.Errorf("Expected no combined file for one session, got %v", created)
	}
}

func TestSessionFile(t *testing.T) {
	if got := SessionFile(model.SessionInitial, "2026-03-15"); got != "tasks.csv" {
		t.Errorf("initial: %s", got)
	}
	if got := SessionFile(model.SessionFollowOn, "2026-03-15"); got != "tasks_2026-03-15.csv" {
		t.Errorf("followon: %s", got)
	}
}

func TestJourneyFile(t *testing.T) {
	if got := JourneyFile("2026-03-15"); got != "tasks_2026-03-15.csv" {
		t.Errorf("JourneyFile: %s", got)
	}
}

func TestSummary(t *testing.T) {
	records := generate(t, "Contoso", "2026-03-15", model.SessionInitial, "")
	out := Summary(records, "Kickoff")

	if !strings.HasPrefix(out, "SESSION: Kickoff\n\nPRE-SESSION TASKS:\n") {
		t.Errorf("Unexpected header:\n%s", out)
	}
	pre, post, found := strings.Cut(out, "POST-SESSION TASKS:")
	if !found {
		t.Fatalf("missing post section:\n%s", out)
	}
	if !strings.Contains(pre, "03/15/2026 - Contoso - Send Satisfaction Survey to customer") {
		t.Errorf("Expected survey in pre-session section:\n%s", pre)
	}
	if n := strings.Count(post, "\n  "); n != 3 {
		t.Errorf("Expected 3 post-session tasks, got %d:\n%s", n, post)
	}
	if strings.HasSuffix(out, "\n") {
		t.Error("Summary should not end with a newline")
	}
}
