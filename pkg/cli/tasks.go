package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/harrisonrobin/engage/pkg/businessday"
	"github.com/harrisonrobin/engage/pkg/export"
	"github.com/harrisonrobin/engage/pkg/model"
	"github.com/harrisonrobin/engage/pkg/orgmode"
	"github.com/harrisonrobin/engage/pkg/store"
	"github.com/harrisonrobin/engage/pkg/taskwarrior"
	"github.com/spf13/cobra"
)

var (
	dueDays    int
	cancelGcal bool
	cancelCal  string
	importDone bool
	importGcal bool
	importCal  string
	doneTW     bool
	importTW   bool
)

var dueCmd = &cobra.Command{
	Use:   "due",
	Short: "List open tasks due in the next business days",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if dueDays < 0 {
			return fmt.Errorf("--days must not be negative")
		}
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		from := today()
		to := businessday.Offset(from, -dueDays)
		entries, err := s.Due(cmd.Context(), from, to)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Nothing due through %s\n", to.Format(export.PlannerDateLayout))
			return nil
		}
		printEntries(cmd.OutOrStdout(), entries, from)
		return nil
	},
}

var overdueCmd = &cobra.Command{
	Use:   "overdue",
	Short: "List open tasks whose due date has passed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		now := today()
		entries, err := s.Overdue(cmd.Context(), now)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("No overdue tasks"))
			return nil
		}
		printEntries(cmd.OutOrStdout(), entries, now)
		return nil
	},
}

var doneCmd = &cobra.Command{
	Use:   "done <task-id>",
	Short: "Mark a stored task as done (an ID prefix is enough)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		now := time.Now()
		e, err := s.MarkDone(cmd.Context(), args[0], now)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("Done:"), e.Name)
		if doneTW {
			return taskwarrior.NewClient(logger).Complete(cmd.Context(), []model.TaskRecord{e.TaskRecord}, now)
		}
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions [customer]",
	Short: "List recorded sessions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		customer := ""
		if len(args) == 1 {
			customer = args[0]
		}
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		sessions, err := s.Sessions(cmd.Context(), customer)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded")
			return nil
		}
		for _, ss := range sessions {
			progress := fmt.Sprintf("%d/%d done", ss.Done, ss.Tasks)
			if ss.Done == ss.Tasks {
				progress = color.GreenString("%s", progress)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", ss.Bucket, progress)
		}
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <bucket>",
	Short: "Forget a recorded session and optionally remove its calendar events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		ids, err := s.DeleteSession(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d tasks of %q\n", len(ids), args[0])
		if !cancelGcal {
			return nil
		}

		name := cfg.Calendar
		if cancelCal != "" {
			name = cancelCal
		}
		cs, err := openCalendar(ctx, name)
		if err != nil {
			return err
		}
		defer cs.save()
		for _, id := range ids {
			if err := cs.client.DeleteRecord(ctx, id); err != nil {
				return fmt.Errorf("failed to delete event for task %s: %w", id, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted calendar events from %q\n", name)
		return nil
	},
}

var importOrgCmd = &cobra.Command{
	Use:   "import-org <file>",
	Short: "Record tasks from an edited Org file, keeping hand-moved deadlines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		items, err := orgmode.Parse(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", args[0], err)
		}
		if len(items) == 0 {
			return fmt.Errorf("no engage tasks found in %s", args[0])
		}

		records := make([]model.TaskRecord, 0, len(items))
		for _, it := range items {
			records = append(records, it.Record)
		}

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.SaveTimeline(ctx, records); err != nil {
			return err
		}

		var open, done []model.TaskRecord
		now := time.Now()
		for _, it := range items {
			if !importDone || !it.Done {
				open = append(open, it.Record)
				continue
			}
			if _, err := s.MarkDone(ctx, it.Record.ID, now); err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			done = append(done, it.Record)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d tasks (%d done)\n", len(records), len(done))

		if importTW {
			tw := taskwarrior.NewClient(logger)
			if err := tw.Import(ctx, open); err != nil {
				return err
			}
			if err := tw.Complete(ctx, done, now); err != nil {
				return err
			}
		}

		if !importGcal {
			return nil
		}
		name := cfg.Calendar
		if importCal != "" {
			name = importCal
		}
		cs, err := openCalendar(ctx, name)
		if err != nil {
			return err
		}
		defer cs.save()
		res, err := cs.client.SyncRecords(ctx, records)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Google Calendar %q: %d created, %d updated, %d unchanged\n",
			name, res.Created, res.Updated, res.Unchanged)
		return nil
	},
}

func init() {
	dueCmd.Flags().IntVarP(&dueDays, "days", "d", 5, "Number of business days to look ahead")

	doneCmd.Flags().BoolVar(&doneTW, "taskwarrior", false, "Also complete the task in Taskwarrior")

	cancelCmd.Flags().BoolVar(&cancelGcal, "gcal", false, "Also delete the session's Google Calendar events")
	cancelCmd.Flags().StringVar(&cancelCal, "calendar", "", "Google Calendar name (overrides config)")

	importOrgCmd.Flags().BoolVar(&importDone, "done", true, "Mark DONE headlines as done")
	importOrgCmd.Flags().BoolVar(&importGcal, "gcal", false, "Push the imported tasks to Google Calendar")
	importOrgCmd.Flags().StringVar(&importCal, "calendar", "", "Google Calendar name (overrides config)")
	importOrgCmd.Flags().BoolVar(&importTW, "taskwarrior", false, "Also import the tasks into Taskwarrior")
}

// printEntries lists tasks grouped under their due date.
func printEntries(w io.Writer, entries []store.Entry, now time.Time) {
	var last time.Time
	for _, e := range entries {
		if !e.DueDate.Equal(last) {
			heading := e.DueDate.Format("Mon " + export.PlannerDateLayout)
			switch {
			case e.DueDate.Before(now):
				heading = color.RedString("%s (%d business days late)", heading, businessday.Between(e.DueDate, now))
			case e.DueDate.Equal(now):
				heading = color.YellowString("%s (today)", heading)
			}
			fmt.Fprintln(w, heading)
			last = e.DueDate
		}
		fmt.Fprintf(w, "  %s  %s\n", color.New(color.Faint).Sprint(shortID(e.ID)), e.Name)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
