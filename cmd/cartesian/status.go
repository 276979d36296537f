package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Trygon117/ProjectCartesian/pkg/client"
)

func createStatusCommand(flags *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running panel",
		Long: `Query a running panel over HTTP and print its status label.

Examples:
  cartesian status
  cartesian status --json
  cartesian status --watch --interval=500ms
  cartesian status --api-url=http://remote:8700/api`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), *flags, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&flags.APIUrl, "api-url", client.DefaultBaseURL, "panel API URL")
	cmd.Flags().DurationVar(&flags.APITimeout, "api-timeout", client.DefaultTimeout, "request timeout")
	cmd.Flags().BoolVar(&flags.Insecure, "insecure", false, "skip TLS certificate verification")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "print the full status as JSON")
	cmd.Flags().BoolVar(&flags.Watch, "watch", false, "keep printing the status when it changes")
	cmd.Flags().DurationVar(&flags.Interval, "interval", time.Second, "watch poll interval")
	return cmd
}

func runStatus(ctx context.Context, f StatusFlags, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c := client.New(client.Config{BaseURL: f.APIUrl, Timeout: f.APITimeout, Insecure: f.Insecure})
	if !f.Watch {
		st, err := c.Status(ctx)
		if err != nil {
			return err
		}
		return printStatus(out, st, f.JSON)
	}

	interval := f.Interval
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	last := ""
	for {
		st, err := c.Status(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if st.Label != last {
			if err := printStatus(out, st, f.JSON); err != nil {
				return err
			}
			last = st.Label
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func printStatus(out io.Writer, st client.Status, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	if st.Target != "" {
		_, err := fmt.Fprintf(out, "TARGET: %s\n%s\n", st.Target, st.Label)
		return err
	}
	_, err := fmt.Fprintln(out, st.Label)
	return err
}
