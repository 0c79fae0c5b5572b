package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/soyeahso/voicehook/internal/config"
	"github.com/soyeahso/voicehook/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show voicehook status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "voicehook %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:     %s\n", paths.Config)
			fmt.Fprintf(out, "Data:       %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:       %s\n", paths.Logs)
			fmt.Fprintln(out)

			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:     not found (using defaults)")
			}
			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:     error loading: %v\n", err)
				return nil
			}

			fmt.Fprintf(out, "Server:     %s secret-header=%s max-body=%d\n",
				cfg.Server.Addr(), cfg.Server.SecretHeader, cfg.Server.MaxBodyBytes)
			admin := "open"
			if cfg.Admin.Token != "" {
				admin = "token"
			}
			fmt.Fprintf(out, "Admin:      %s\n", admin)
			fmt.Fprintf(out, "Cache:      pause=%s max-age=%s\n", cfg.Cache.Pause(), cfg.Cache.MaxAge())
			fmt.Fprintf(out, "Dispatcher: workers=%d queue=%d enqueue-timeout=%s\n",
				cfg.Dispatcher.Workers, cfg.Dispatcher.QueueSize, cfg.Dispatcher.EnqueueTimeout())

			if cfg.Reports.Enabled {
				where := cfg.Reports.Store
				if where == "sqlite" {
					where += " " + paths.ReportsDB(cfg.Reports)
				}
				fmt.Fprintf(out, "Reports:    %s\n", where)
			} else {
				fmt.Fprintln(out, "Reports:    disabled")
			}

			if len(cfg.Applications) == 0 {
				fmt.Fprintln(out, "App:        (none configured)")
			}
			for _, app := range cfg.Applications {
				secret := "no"
				if app.Secret != "" {
					secret = "yes"
				}
				fmt.Fprintf(out, "App:        name=%s path=%s secret=%s tools=%s functions=%s manual=%s\n",
					app.Name, app.Path, secret,
					list(app.Tools), list(app.Functions), list(app.ManualTools))
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}

			return nil
		},
	}

	return cmd
}

func list(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ",")
}
