package cli

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/harrisonrobin/engage/pkg/auth"
	"github.com/harrisonrobin/engage/pkg/config"
	"github.com/harrisonrobin/engage/pkg/template"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate with Google Calendar, replacing any cached token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := auth.New("", logger)
		if err != nil {
			return err
		}
		if err := a.Reset(); err != nil {
			return err
		}
		if _, err := a.Client(cmd.Context(), auth.CalendarScopes); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Token saved to %s\n", color.GreenString("Authentication successful!"), a.TokenPath())
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change saved defaults",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Save a default (assignee, calendar, output_dir, templates_file, db_path)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := config.Update(func(c *config.Config) error {
			return c.Set(args[0], args[1])
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s set to: %s\n", args[0], args[1])
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s (with %s_* overrides)\n", path, config.EnvPrefix)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	},
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the session templates and their offsets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := template.Load(cfg.TemplatesFile)
		if err != nil {
			return err
		}
		for i, name := range set.Names() {
			if i > 0 {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			entries, _ := set.Lookup(name)
			fmt.Fprintln(cmd.OutOrStdout(), color.New(color.Bold).Sprint(name))
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "  %4s  %s\n", template.OffsetLabel(e.Offset), e.Title)
			}
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)
}
