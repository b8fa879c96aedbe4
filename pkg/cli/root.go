package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/harrisonrobin/engage/pkg/auth"
	"github.com/harrisonrobin/engage/pkg/businessday"
	"github.com/harrisonrobin/engage/pkg/colors"
	"github.com/harrisonrobin/engage/pkg/config"
	"github.com/harrisonrobin/engage/pkg/google"
	"github.com/harrisonrobin/engage/pkg/index"
	"github.com/harrisonrobin/engage/pkg/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version can be overridden at build time via:
// go build -ldflags "-X github.com/harrisonrobin/engage/pkg/cli.version=1.2.3"
var version = "0.3.0"

var (
	verbose bool

	cfg    *config.Config
	logger *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:   "engage",
	Short: "Plan customer engagement tasks on a business-day timeline",
	Long: "engage generates the preparation and follow-up tasks for a customer engagement,\n" +
		"dating each one a fixed number of business days before or after the session,\n" +
		"and exports them to Planner CSV, Org-mode, Google Calendar or Taskwarrior.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logger = l

		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command and reports any error. An interrupt cancels
// the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(dueCmd)
	rootCmd.AddCommand(overdueCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(importOrgCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(templatesCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "engage %s\n", version)
	},
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	zc.DisableStacktrace = true
	zc.Sampling = nil
	if debug {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	l, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func printHeader(cmd *cobra.Command, title string) {
	rule := "============================================================"
	fmt.Fprintln(cmd.OutOrStdout(), color.CyanString(rule))
	fmt.Fprintln(cmd.OutOrStdout(), color.New(color.Bold).Sprint(title))
	fmt.Fprintln(cmd.OutOrStdout(), color.CyanString(rule))
}

// today is the current local date as a UTC midnight, matching parsed dates.
func today() time.Time {
	d, _ := businessday.ParseDate(time.Now().Format(businessday.DateLayout))
	return d
}

func openStore(ctx context.Context) (*store.Store, error) {
	s, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// calendarSession bundles a calendar client with the local state it writes.
type calendarSession struct {
	client *google.CalendarClient
	index  *index.EventIndex
	colors *colors.Cache
}

func (s *calendarSession) save() {
	if err := s.index.Save(); err != nil {
		logger.Warnw("failed to save event index", "path", s.index.Path(), "error", err)
	} else {
		logger.Debugw("saved event index", "path", s.index.Path())
	}
	if err := s.colors.Save(); err != nil {
		logger.Warnw("failed to save colour cache", "error", err)
	}
}

func openCalendar(ctx context.Context, calendarName string) (*calendarSession, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	a, err := auth.New(dir, logger)
	if err != nil {
		return nil, err
	}
	httpClient, err := a.Client(ctx, auth.CalendarScopes)
	if err != nil {
		return nil, fmt.Errorf("google authentication failed: %w", err)
	}

	idx, err := index.Open(filepath.Join(dir, index.IndexFile))
	if err != nil {
		return nil, fmt.Errorf("failed to load event index: %w", err)
	}
	cache, err := colors.Open(filepath.Join(dir, colors.CacheFile))
	if err != nil {
		return nil, fmt.Errorf("failed to load colour cache: %w", err)
	}

	client, err := google.NewClient(ctx, httpClient, calendarName, idx, cache, logger)
	if err != nil {
		return nil, err
	}
	return &calendarSession{client: client, index: idx, colors: cache}, nil
}
