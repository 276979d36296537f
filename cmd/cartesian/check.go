package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Trygon117/ProjectCartesian/internal/status"
)

func createCheckCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check [config.toml]",
		Short: "Validate the config and run the detectors once",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(configPathFrom(globalFlags, args), cmd.OutOrStdout())
		},
	}
}

func runCheck(configPath string, out io.Writer) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "config OK (target %s, topic %s)\n", cfg.Panel.Target, cfg.Panel.Topic)
	if !cfg.Monitor.Enabled {
		_, _ = fmt.Fprintln(out, "monitor disabled")
		return nil
	}
	det, err := cfg.Monitor.BuildDetector()
	if err != nil {
		return err
	}
	pid, err := det.Detect()
	if err != nil {
		return fmt.Errorf("detector %s: %w", det.Describe(), err)
	}
	payload := status.ProcessID(cfg.Panel.Sentinel)
	if pid > 0 {
		payload = status.ProcessID(strconv.Itoa(pid))
	}
	st := status.InterpretWith(payload, status.ProcessID(cfg.Panel.Sentinel))
	_, _ = fmt.Fprintf(out, "detector: %s\n%s\n", det.Describe(), st.Label())
	return nil
}
