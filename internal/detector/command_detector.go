package detector

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CommandDetector runs a command that succeeds and prints the PID on stdout
// when the target is running, e.g. "pgrep -n -i firefox". Only the first
// field of the output is used. A non-zero exit means "not running".
type CommandDetector struct{ Command string }

// buildShellAwareCommand constructs an *exec.Cmd for a detector command.
// Avoids invoking a shell unless obvious shell metacharacters are present (G204 mitigation).
func buildShellAwareCommand(cmdStr string) *exec.Cmd {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		return getTrueCommand()
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		return getShellCommand(cmdStr)
	}
	parts := strings.Fields(cmdStr)
	// #nosec G204
	return exec.Command(parts[0], parts[1:]...)
}

func (d CommandDetector) Detect() (int, error) {
	cmd := buildShellAwareCommand(d.Command)
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			// non-zero exit code means not running
			return 0, nil
		}
		return 0, err
	}
	return parsePIDOutput(string(out))
}

func (d CommandDetector) Describe() string { return "cmd:" + d.Command }

func parsePIDOutput(out string) (int, error) {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return 0, fmt.Errorf("no pid in command output")
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid %q in command output", fields[0])
	}
	return pid, nil
}
