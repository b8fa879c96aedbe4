package timeline

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/harrisonrobin/engage/pkg/businessday"
	"github.com/harrisonrobin/engage/pkg/model"
	"github.com/harrisonrobin/engage/pkg/template"
)

// ErrUnknownTemplate is returned when no template exists for a session type.
var ErrUnknownTemplate = errors.New("unknown session template")

// taskNamespace seeds the name-based UUIDs given to generated tasks.
var taskNamespace = uuid.MustParse("6b1f4c2e-3d0a-5e8f-9a7b-2c4d6e8f0a1b")

// Generator turns a session into its dated task list.
type Generator struct {
	templates *template.Set
	assignee  string
}

// NewGenerator creates a Generator assigning every task to assignee.
func NewGenerator(templates *template.Set, assignee string) *Generator {
	return &Generator{templates: templates, assignee: assignee}
}

// Generate builds the task records for one session. Records come back in
// template order, which is not necessarily due-date order.
func (g *Generator) Generate(customer, engagementDate string, sessionType model.SessionType, label string) ([]model.TaskRecord, error) {
	engDate, err := businessday.ParseDate(engagementDate)
	if err != nil {
		return nil, err
	}

	entries, ok := g.templates.Lookup(string(sessionType))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, sessionType)
	}

	day := engDate.Format(businessday.DateLayout)
	bucket := fmt.Sprintf("%s - %s", day, customer)
	if label != "" {
		bucket = fmt.Sprintf("%s - %s - %s", day, customer, label)
	}

	// Follow-on tasks carry a [M/D] tag so several sessions for one
	// customer stay distinguishable in a single plan.
	prefix := customer
	if sessionType == model.SessionFollowOn {
		prefix = fmt.Sprintf("%s [%d/%d]", customer, int(engDate.Month()), engDate.Day())
	}

	records := make([]model.TaskRecord, 0, len(entries))
	for _, e := range entries {
		due := businessday.Offset(engDate, e.Offset)
		name := fmt.Sprintf("%s - %s", prefix, e.Title)
		records = append(records, model.TaskRecord{
			ID:             TaskID(bucket, name),
			Name:           name,
			Assignee:       g.assignee,
			StartDate:      due,
			DueDate:        due,
			Bucket:         bucket,
			Progress:       model.ProgressNotStarted,
			Priority:       model.PriorityMedium,
			Labels:         model.DefaultLabels,
			Customer:       customer,
			Title:          e.Title,
			Offset:         e.Offset,
			EngagementDate: engDate,
		})
	}
	return records, nil
}

// GenerateJourney generates every session of a customer journey, keyed by
// session date. Sessions without a type use the follow-on template.
// No ordering or overlap checks are made between sessions.
func (g *Generator) GenerateJourney(customer string, sessions []model.Session) (map[string][]model.TaskRecord, error) {
	out := make(map[string][]model.TaskRecord, len(sessions))
	for _, s := range sessions {
		sessionType := s.Type
		if sessionType == "" {
			sessionType = model.SessionFollowOn
		}
		records, err := g.Generate(customer, s.Date, sessionType, s.Label)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", s.Date, err)
		}
		out[s.Date] = records
	}
	return out, nil
}

// TaskID derives a stable identifier from a task's bucket and name, so the
// same session regenerated later maps onto the same calendar events,
// Taskwarrior tasks and store rows.
func TaskID(bucket, name string) string {
	return uuid.NewSHA1(taskNamespace, []byte(bucket+"\x00"+name)).String()
}
