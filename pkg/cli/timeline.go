package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/harrisonrobin/engage/pkg/businessday"
	"github.com/harrisonrobin/engage/pkg/export"
	"github.com/harrisonrobin/engage/pkg/model"
	"github.com/harrisonrobin/engage/pkg/orgmode"
	"github.com/harrisonrobin/engage/pkg/taskwarrior"
	"github.com/harrisonrobin/engage/pkg/template"
	"github.com/harrisonrobin/engage/pkg/timeline"
	"github.com/spf13/cobra"
)

const (
	formatCSV = "csv"
	formatOrg = "org"
)

var (
	tlFollowOn    bool
	tlLabels      []string
	tlAssignee    string
	tlOutput      string
	tlFormat      string
	tlCombined    bool
	tlGcal        bool
	tlCalendar    string
	tlTaskwarrior bool
	tlNoStore     bool
	tlDryRun      bool
)

var timelineCmd = &cobra.Command{
	Use:   "timeline <customer> <date> [date...]",
	Short: "Generate the task timeline for one or more sessions",
	Long: "Generate the task timeline for a customer session dated YYYY-MM-DD.\n" +
		"Sessions use the initial engagement template unless --followon is given.\n" +
		"With several dates every session is planned with the same template and written\n" +
		"to its own tasks_<date> file, plus a combined file.",
	Example: "  engage timeline Contoso 2026-03-15\n" +
		"  engage timeline Textron 2026-03-12 2026-03-31 --labels \"Session 2\",\"Session 3\" --gcal",
	Args: cobra.MinimumNArgs(2),
	RunE: runTimeline,
}

func init() {
	f := timelineCmd.Flags()
	f.BoolVar(&tlFollowOn, "followon", false, "Use the follow-on template for every session")
	f.StringSliceVar(&tlLabels, "labels", nil, "Session labels, one per date")
	f.StringVar(&tlAssignee, "assignee", "", "Assign tasks to this person (overrides config)")
	f.StringVarP(&tlOutput, "output", "o", "", "Output directory (overrides config)")
	f.StringVar(&tlFormat, "format", formatCSV, "Export format: csv or org")
	f.BoolVar(&tlCombined, "combined", true, "Also write a combined file for multi-session journeys")
	f.BoolVar(&tlGcal, "gcal", false, "Push tasks to Google Calendar")
	f.StringVar(&tlCalendar, "calendar", "", "Google Calendar name (overrides config)")
	f.BoolVar(&tlTaskwarrior, "taskwarrior", false, "Import tasks into Taskwarrior")
	f.BoolVar(&tlNoStore, "no-store", false, "Do not record the sessions in the local database")
	f.BoolVar(&tlDryRun, "dry-run", false, "Print the summary without writing anything")
}

func runTimeline(cmd *cobra.Command, args []string) error {
	if tlFormat != formatCSV && tlFormat != formatOrg {
		return fmt.Errorf("unknown format %q (want csv or org)", tlFormat)
	}
	customer := strings.TrimSpace(args[0])
	if customer == "" {
		return fmt.Errorf("customer name is required")
	}
	dates := args[1:]
	if len(tlLabels) > len(dates) {
		return fmt.Errorf("got %d labels for %d dates", len(tlLabels), len(dates))
	}
	for _, d := range dates {
		if _, err := businessday.ParseDate(d); err != nil {
			return err
		}
	}

	templates, err := template.Load(cfg.TemplatesFile)
	if err != nil {
		return err
	}
	assignee := cfg.Assignee
	if tlAssignee != "" {
		assignee = tlAssignee
	}
	gen := timeline.NewGenerator(templates, assignee)

	outDir := cfg.OutputDir
	if tlOutput != "" {
		outDir = tlOutput
	}

	var all []model.TaskRecord
	if len(dates) == 1 {
		all, err = planSession(cmd, gen, customer, dates[0], outDir)
	} else {
		all, err = planJourney(cmd, gen, customer, dates, outDir)
	}
	if err != nil {
		return err
	}
	if tlDryRun {
		return nil
	}

	ctx := cmd.Context()
	if !tlNoStore {
		if err := recordTimeline(ctx, all); err != nil {
			return err
		}
	}
	if tlTaskwarrior {
		if err := taskwarrior.NewClient(logger).Import(ctx, all); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d tasks into Taskwarrior\n", len(all))
	}
	if tlGcal {
		if err := pushCalendar(cmd, all); err != nil {
			return err
		}
	}
	return nil
}

func labelAt(i int) string {
	if i < len(tlLabels) {
		return strings.TrimSpace(tlLabels[i])
	}
	return ""
}

func selectedType() model.SessionType {
	if tlFollowOn {
		return model.SessionFollowOn
	}
	return model.SessionInitial
}

func planSession(cmd *cobra.Command, gen *timeline.Generator, customer, date, outDir string) ([]model.TaskRecord, error) {
	sessionType := selectedType()
	label := labelAt(0)
	records, err := gen.Generate(customer, date, sessionType, label)
	if err != nil {
		return nil, err
	}

	printHeader(cmd, fmt.Sprintf("ENGAGEMENT: %s", customer))
	fmt.Fprintf(cmd.OutOrStdout(), "DATE: %s\nTYPE: %s\n", date, sessionType)
	if label != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "LABEL: %s\n", label)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), export.Summary(records, label))

	if tlDryRun {
		return records, nil
	}
	path := filepath.Join(outDir, export.SessionFile(sessionType, date))
	if err := writeExport(path, fmt.Sprintf("%s %s", customer, date), records); err != nil {
		return nil, err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%s %s (%d tasks)\n", color.GreenString("Created"), exportPath(path), len(records))
	return records, nil
}

func planJourney(cmd *cobra.Command, gen *timeline.Generator, customer string, dates []string, outDir string) ([]model.TaskRecord, error) {
	sessionType := selectedType()
	sessions := make([]model.Session, 0, len(dates))
	for i, d := range dates {
		sessions = append(sessions, model.Session{Date: d, Label: labelAt(i), Type: sessionType})
	}
	byDate, err := gen.GenerateJourney(customer, sessions)
	if err != nil {
		return nil, err
	}

	labels := make(map[string]string, len(sessions))
	for _, s := range sessions {
		labels[s.Date] = s.Label
	}

	printHeader(cmd, fmt.Sprintf("CUSTOMER JOURNEY: %s", customer))
	fmt.Fprintf(cmd.OutOrStdout(), "TYPE: %s\n", sessionType)
	var all []model.TaskRecord
	for _, date := range export.SortedDates(byDate) {
		fmt.Fprintln(cmd.OutOrStdout())
		fmt.Fprintln(cmd.OutOrStdout(), export.Summary(byDate[date], labels[date]))
		all = append(all, byDate[date]...)
	}
	if tlDryRun {
		return all, nil
	}

	fmt.Fprintln(cmd.OutOrStdout())
	if tlFormat == formatCSV {
		created, err := export.SaveJourney(outDir, byDate, tlCombined)
		if err != nil {
			return nil, err
		}
		for _, p := range created {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("Created"), p)
		}
		return all, nil
	}

	for _, date := range export.SortedDates(byDate) {
		path := filepath.Join(outDir, export.JourneyFile(date))
		if err := writeExport(path, fmt.Sprintf("%s %s", customer, date), byDate[date]); err != nil {
			return nil, err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("Created"), exportPath(path))
	}
	if tlCombined {
		path := filepath.Join(outDir, export.CombinedFile)
		if err := writeExport(path, customer+" journey", all); err != nil {
			return nil, err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("Created"), exportPath(path))
	}
	return all, nil
}

// exportPath maps a CSV file name onto the selected export format.
func exportPath(csvPath string) string {
	if tlFormat == formatOrg {
		return strings.TrimSuffix(csvPath, filepath.Ext(csvPath)) + ".org"
	}
	return csvPath
}

func writeExport(csvPath, title string, records []model.TaskRecord) error {
	if tlFormat == formatCSV {
		_, err := export.SaveCSV(csvPath, records)
		return err
	}

	path := exportPath(csvPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	if err := orgmode.Write(f, title, records); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func recordTimeline(ctx context.Context, records []model.TaskRecord) error {
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.SaveTimeline(ctx, records)
}

func pushCalendar(cmd *cobra.Command, records []model.TaskRecord) error {
	name := cfg.Calendar
	if tlCalendar != "" {
		name = tlCalendar
	}
	cs, err := openCalendar(cmd.Context(), name)
	if err != nil {
		return err
	}
	defer cs.save()

	res, err := cs.client.SyncRecords(cmd.Context(), records)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Google Calendar %q: %d created, %d updated, %d unchanged\n",
		name, res.Created, res.Updated, res.Unchanged)
	return nil
}
