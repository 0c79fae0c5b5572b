package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/soyeahso/voicehook/internal/config"
	"github.com/soyeahso/voicehook/internal/gateway"
	"github.com/soyeahso/voicehook/internal/registry"
	"github.com/spf13/cobra"
)

// adminClient talks to the admin routes of a running server.
type adminClient struct {
	base  string
	token string
	http  *http.Client
}

type adminFlags struct {
	url   string
	token string
}

func (f *adminFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.url, "url", "", "server base URL (default from server.host and server.port)")
	cmd.Flags().StringVar(&f.token, "token", "", "admin token (default admin.token)")
}

func (f *adminFlags) client() (*adminClient, error) {
	base, token := f.url, f.token
	if base == "" || token == "" {
		cfg, err := config.Load(paths.Config)
		if err != nil {
			return nil, err
		}
		if base == "" {
			base = "http://" + cfg.Server.Addr()
		}
		if token == "" {
			token = cfg.Admin.Token
		}
	}
	return &adminClient{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (c *adminClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var shape gateway.ErrorShape
		if json.Unmarshal(body, &shape) == nil && shape.Error != "" {
			return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, shape.Error)
		}
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}

func newCachesCmd() *cobra.Command {
	var flags adminFlags

	cmd := &cobra.Command{
		Use:   "caches",
		Short: "List the session tool caches of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			var resp gateway.CachesResponse
			if err := c.do(cmd.Context(), http.MethodGet, "/caches", &resp); err != nil {
				return err
			}
			printCaches(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	flags.register(cmd)

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every session tool cache of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			var resp gateway.ClearResponse
			if err := c.do(cmd.Context(), http.MethodPost, "/clear-caches", &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d tool and %d function entries\n", resp.Tools, resp.Functions)
			return nil
		},
	}
	flags.register(clearCmd)
	cmd.AddCommand(clearCmd)

	return cmd
}

func printCaches(w io.Writer, resp gateway.CachesResponse) {
	fmt.Fprintf(w, "Uptime:    %s\n", resp.Uptime)
	if d := resp.Dispatcher; d != nil {
		fmt.Fprintf(w, "Callbacks: pending=%d delivered=%d dropped=%d\n", d.Pending, d.Delivered, d.Dropped)
	}
	fmt.Fprintf(w, "Listeners: %d\n\n", resp.Listeners)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REGISTRY\tSESSION\tAGE\tCALLABLES")
	writeEntries(tw, registry.Tools, resp.Tools)
	writeEntries(tw, registry.Functions, resp.Functions)
	tw.Flush()
}

func writeEntries(w io.Writer, name string, entries []registry.EntryInfo) {
	for _, e := range entries {
		names := make([]string, 0, len(e.Callables))
		for _, c := range e.Callables {
			names = append(names, fmt.Sprintf("%s(%d)", c.Name, c.Invocations))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, e.SessionKey, e.Age, list(names))
	}
}
