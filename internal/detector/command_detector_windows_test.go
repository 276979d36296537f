//go:build windows

package detector

import (
	"strings"
	"testing"
)

func TestBuildShellAwareCommand_Windows(t *testing.T) {
	c := buildShellAwareCommand("")
	if c.Path == "" || !strings.Contains(c.String(), "cmd") {
		t.Fatalf("expected cmd, got %q (%q)", c.Path, c.String())
	}
	c = buildShellAwareCommand("tasklist /fi firefox")
	if len(c.Args) == 0 || c.Args[0] != "tasklist" {
		t.Fatalf("expected direct exec tasklist, got %#v", c.Args)
	}
	c = buildShellAwareCommand("echo 12 | findstr 12")
	if len(c.Args) < 2 || c.Args[0] != "cmd" || c.Args[1] != "/c" {
		t.Fatalf("expected cmd /c, got %#v", c.Args)
	}
}

func TestCommandDetectorDetect_Windows(t *testing.T) {
	d := CommandDetector{Command: "cmd /c echo 321"}
	pid, err := d.Detect()
	if err != nil || pid != 321 {
		t.Fatalf("expected 321,nil got %d %v", pid, err)
	}
	d = CommandDetector{Command: "cmd /c exit 3"}
	pid, err = d.Detect()
	if err != nil || pid != 0 {
		t.Fatalf("non-zero exit expected 0,nil got %d %v", pid, err)
	}
}
