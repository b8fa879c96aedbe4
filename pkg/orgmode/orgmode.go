package orgmode

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/harrisonrobin/engage/pkg/businessday"
	"github.com/harrisonrobin/engage/pkg/model"
)

const deadlineLayout = "2006-01-02 Mon"

var (
	headlineRegex = regexp.MustCompile(`^\*+\s+(TODO|DONE)\s+(.*?)\s*$`)
	deadlineRegex = regexp.MustCompile(`DEADLINE:\s+<(\d{4}-\d{2}-\d{2})(?:\s+[A-Za-z]{3})?[^>]*>`)
	propertyRegex = regexp.MustCompile(`^:([A-Z_]+):\s*(.*?)\s*$`)
)

// Item is a parsed headline: the task plus whether it was marked DONE.
type Item struct {
	Record model.TaskRecord
	Done   bool
}

// Write renders records as an Org agenda, one TODO headline per task with
// its deadline and a property drawer carrying the task identity.
func Write(w io.Writer, title string, records []model.TaskRecord) error {
	bw := bufio.NewWriter(w)
	if title != "" {
		fmt.Fprintf(bw, "#+TITLE: %s\n\n", title)
	}
	for _, r := range records {
		fmt.Fprintf(bw, "* TODO %s\n", r.Name)
		fmt.Fprintf(bw, "  DEADLINE: <%s>\n", r.DueDate.Format(deadlineLayout))
		fmt.Fprintln(bw, "  :PROPERTIES:")
		writeProperty(bw, "ID", r.ID)
		writeProperty(bw, "TITLE", r.Title)
		writeProperty(bw, "CUSTOMER", r.Customer)
		writeProperty(bw, "BUCKET", r.Bucket)
		writeProperty(bw, "ASSIGNEE", r.Assignee)
		writeProperty(bw, "SESSION", r.EngagementDate.Format(businessday.DateLayout))
		writeProperty(bw, "OFFSET", strconv.Itoa(r.Offset))
		fmt.Fprintln(bw, "  :END:")
	}
	return bw.Flush()
}

func writeProperty(w io.Writer, key, value string) {
	fmt.Fprintf(w, "  %-11s %s\n", ":"+key+":", value)
}

// Parse reads headlines written by Write. Deadlines may have been edited by
// hand; headlines without an ID or deadline are skipped.
func Parse(r io.Reader) ([]Item, error) {
	scanner := bufio.NewScanner(r)
	var items []Item
	var current *Item
	var hasDeadline bool
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if m := headlineRegex.FindStringSubmatch(line); m != nil {
			current = &Item{
				Done: m[1] == "DONE",
				Record: model.TaskRecord{
					Name:     m[2],
					Progress: model.ProgressNotStarted,
					Priority: model.PriorityMedium,
					Labels:   model.DefaultLabels,
				},
			}
			hasDeadline = false
			continue
		}
		if current == nil {
			continue
		}

		if m := deadlineRegex.FindStringSubmatch(line); m != nil {
			due, err := businessday.ParseDate(m[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			current.Record.DueDate = due
			current.Record.StartDate = due
			hasDeadline = true
			continue
		}

		if line == ":END:" {
			if current.Record.ID != "" && hasDeadline {
				items = append(items, *current)
			}
			current = nil
			continue
		}

		if m := propertyRegex.FindStringSubmatch(line); m != nil {
			if err := setProperty(&current.Record, m[1], m[2]); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func setProperty(r *model.TaskRecord, key, value string) error {
	switch key {
	case "ID":
		r.ID = value
	case "TITLE":
		r.Title = value
	case "CUSTOMER":
		r.Customer = value
	case "BUCKET":
		r.Bucket = value
	case "ASSIGNEE":
		r.Assignee = value
	case "SESSION":
		d, err := businessday.ParseDate(value)
		if err != nil {
			return err
		}
		r.EngagementDate = d
	case "OFFSET":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid OFFSET %q: %w", value, err)
		}
		r.Offset = n
	}
	return nil
}
