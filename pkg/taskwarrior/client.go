package taskwarrior

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/harrisonrobin/engage/pkg/model"
	"go.uber.org/zap"
)

// Tag marks every task engage imports.
const Tag = "engage"

// dueHour is the local time of day given to Taskwarrior due dates.
const dueHour = 17

// runFunc executes the task binary with args and stdin, returning stdout.
type runFunc func(ctx context.Context, stdin []byte, args ...string) ([]byte, error)

type Client struct {
	run    runFunc
	loc    *time.Location
	now    func() time.Time
	logger *zap.SugaredLogger
}

func NewClient(logger *zap.SugaredLogger) *Client {
	return &Client{run: runTask, loc: time.Local, now: time.Now, logger: logger}
}

func runTask(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "task", args...)
	cmd.Stdin = bytes.NewReader(stdin)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("taskwarrior command failed: exit code %d, stderr: %s",
				exitErr.ExitCode(), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("taskwarrior command failed: %w", err)
	}
	return output, nil
}

// ConvertRecord maps a task record onto a pending Taskwarrior task due at
// the end of its due day in loc. The record ID becomes the task UUID, so a
// repeated import modifies the task instead of adding a duplicate.
func ConvertRecord(r model.TaskRecord, loc *time.Location, entry time.Time) Task {
	due := time.Date(r.DueDate.Year(), r.DueDate.Month(), r.DueDate.Day(), dueHour, 0, 0, 0, loc)
	scheduled := time.Date(r.StartDate.Year(), r.StartDate.Month(), r.StartDate.Day(), 9, 0, 0, 0, loc)

	t := Task{
		UUID:        r.ID,
		Description: r.Name,
		Status:      PENDING,
		Entry:       &CustomTime{Time: entry},
		Due:         &CustomTime{Time: due},
		Scheduled:   &CustomTime{Time: scheduled},
		Project:     projectName(r.Customer),
		Priority:    "M",
		Tags:        []string{Tag},
	}
	if r.Bucket != "" {
		t.Annotations = append(t.Annotations, Annotation{
			Entry:       &CustomTime{Time: entry},
			Description: "Bucket: " + r.Bucket,
		})
	}
	return t
}

// projectName turns a customer into a dotted-path friendly project name.
func projectName(customer string) string {
	customer = strings.TrimSpace(customer)
	if customer == "" {
		return ""
	}
	r := strings.NewReplacer(" ", "_", ".", "_")
	return "engage." + r.Replace(customer)
}

// Import sends records to `task import` as pending tasks.
func (c *Client) Import(ctx context.Context, records []model.TaskRecord) error {
	entry := c.now()
	tasks := make([]Task, 0, len(records))
	for _, r := range records {
		tasks = append(tasks, ConvertRecord(r, c.loc, entry))
	}
	return c.importTasks(ctx, tasks)
}

// Complete imports records as completed at the given time. Tasks that do
// not exist yet are created already completed.
func (c *Client) Complete(ctx context.Context, records []model.TaskRecord, at time.Time) error {
	entry := c.now()
	tasks := make([]Task, 0, len(records))
	for _, r := range records {
		t := ConvertRecord(r, c.loc, entry)
		t.Status = COMPLETED
		t.End = &CustomTime{Time: at}
		tasks = append(tasks, t)
	}
	return c.importTasks(ctx, tasks)
}

func (c *Client) importTasks(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}
	payload, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}

	out, err := c.run(ctx, payload, "rc.hooks=0", "rc.confirmation=off", "import", "-")
	if err != nil {
		return err
	}
	c.logger.Debugw("taskwarrior import finished", "tasks", len(tasks), "output", strings.TrimSpace(string(out)))
	return nil
}
