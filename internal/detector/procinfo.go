package detector

import (
	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// createTimeUnix asks gopsutil for the process creation time.
func createTimeUnix(pid int) int64 {
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return 0
	}
	ms, err := p.CreateTime()
	if err != nil || ms <= 0 {
		return 0
	}
	return ms / 1000
}

// ProcessName returns the executable name of pid, or "" when unknown.
// It is informational only; detection never depends on it.
func ProcessName(pid int) string {
	if pid <= 0 {
		return ""
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return ""
	}
	name, err := p.Name()
	if err != nil {
		return ""
	}
	return name
}
