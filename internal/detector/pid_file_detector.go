package detector

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// PIDFileDetector reads the target PID from a PID file.
//
// The first line holds the PID. An optional JSON line {"start_unix": N} on
// the third line (or second, for older writers) guards against PID reuse:
// when the live process started at a different time it is not the target.
type PIDFileDetector struct {
	PIDFile string
}

type pidMeta struct {
	StartUnix int64 `json:"start_unix"`
}

func (d PIDFileDetector) Detect() (int, error) {
	data, err := os.ReadFile(d.PIDFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	pidStr := strings.TrimSpace(lines[0])
	if pidStr == "" {
		return 0, fmt.Errorf("empty pidfile: %s", d.PIDFile)
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, fmt.Errorf("invalid pid in %s: %w", d.PIDFile, err)
	}
	if !pidAlive(pid) {
		return 0, nil
	}
	if start := metaStart(lines); start > 0 {
		if cur := getProcStartUnix(pid); cur > 0 && cur != start {
			return 0, nil // PID reused; not our process
		}
	}
	return pid, nil
}

func (d PIDFileDetector) Describe() string { return "pidfile:" + d.PIDFile }

func metaStart(lines []string) int64 {
	for _, i := range []int{2, 1} {
		if len(lines) <= i {
			continue
		}
		var m pidMeta
		if err := json.Unmarshal([]byte(strings.TrimSpace(lines[i])), &m); err == nil && m.StartUnix > 0 {
			return m.StartUnix
		}
	}
	return 0
}

// PIDDetector watches a fixed PID.
type PIDDetector struct{ PID int }

func (d PIDDetector) Detect() (int, error) {
	if pidAlive(d.PID) {
		return d.PID, nil
	}
	return 0, nil
}

func (d PIDDetector) Describe() string { return fmt.Sprintf("pid:%d", d.PID) }
