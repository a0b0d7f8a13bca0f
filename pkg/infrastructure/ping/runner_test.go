package ping

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/WangYihang/netcheck/pkg/domain/entity"
	"github.com/WangYihang/netcheck/pkg/domain/service"
)

func lookPath(t *testing.T, name string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX userland")
	}
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return path
}

func TestPingCommand(t *testing.T) {
	tests := []struct {
		goos     string
		expected []string
	}{
		{"linux", []string{"-c", "3", "--", "example.com"}},
		{"darwin", []string{"-c", "3", "--", "example.com"}},
		{"freebsd", []string{"-c", "3", "--", "example.com"}},
		{"windows", []string{"-n", "3", "example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			spec := PingCommand(tt.goos, "")
			if spec.Path != "ping" {
				t.Errorf("Path = %s, want ping", spec.Path)
			}
			if got := spec.Argv("example.com"); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Argv = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRunner_MetacharactersAreInert(t *testing.T) {
	echo := lookPath(t, "echo")
	marker := filepath.Join(t.TempDir(), "pwned")

	payloads := []string{
		`"; touch ` + marker + `; "`,
		`$(touch ` + marker + `)`,
		"`touch " + marker + "`",
		`x && touch ` + marker,
		`x | touch ` + marker,
		`'; touch ` + marker + `; '`,
	}

	runner := NewRunner(Config{Command: CommandSpec{Path: echo}, Deadline: 5 * time.Second})
	for _, payload := range payloads {
		out, err := runner.Run(context.Background(), payload)
		if err != nil {
			t.Fatalf("Run(%q) error: %v", payload, err)
		}
		if strings.TrimRight(out.Output, "\n") != payload {
			t.Errorf("Run(%q) output = %q, want the literal payload", payload, out.Output)
		}
		if _, err := os.Stat(marker); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("payload %q executed a command", payload)
		}
	}
}

func TestRunner_NoOutputMarker(t *testing.T) {
	truePath := lookPath(t, "true")
	runner := NewRunner(Config{Command: CommandSpec{Path: truePath}})

	out, err := runner.Run(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out.Output != service.NoOutput {
		t.Errorf("Output = %q, want %q", out.Output, service.NoOutput)
	}
	if out.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", out.ExitCode)
	}
}

func TestRunner_NonZeroExitKeepsOutput(t *testing.T) {
	falsePath := lookPath(t, "false")
	runner := NewRunner(Config{Command: CommandSpec{Path: falsePath}})

	out, err := runner.Run(context.Background(), "nonexistent.invalid.test")
	if err != nil {
		t.Fatalf("non-zero exit should not be an error, got %v", err)
	}
	if out.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", out.ExitCode)
	}
}

func TestRunner_DeadlineKillsProcess(t *testing.T) {
	sleep := lookPath(t, "sleep")
	runner := NewRunner(Config{Command: CommandSpec{Path: sleep}, Deadline: 200 * time.Millisecond})

	start := time.Now()
	_, err := runner.Run(context.Background(), "30")
	if !errors.Is(err, entity.ErrSubprocessTimeout) {
		t.Errorf("Run error = %v, want ErrSubprocessTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Run took %s, deadline was 200ms", elapsed)
	}
}

func TestRunner_MissingUtility(t *testing.T) {
	dir := t.TempDir()
	runner := NewRunner(Config{Command: CommandSpec{Path: filepath.Join(dir, "no-such-ping")}})

	out, err := runner.Run(context.Background(), "example.com")
	if !errors.Is(err, entity.ErrPingUnavailable) {
		t.Errorf("Run error = %v, want ErrPingUnavailable", err)
	}
	if err != nil && strings.Contains(err.Error(), dir) {
		t.Errorf("error leaks a filesystem path: %v", err)
	}
	if out == nil || out.Output != service.NoOutput {
		t.Errorf("Output = %+v, want %q", out, service.NoOutput)
	}
}

func TestCappedBuffer(t *testing.T) {
	buf := &cappedBuffer{limit: 4}
	buf.Write([]byte("abc"))
	buf.Write([]byte("def"))
	buf.Write([]byte("ghi"))

	if got := buf.String(); got != "abcd\n[output truncated]" {
		t.Errorf("String() = %q", got)
	}
}

func TestShellQuote(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "''"},
		{"example.com", "example.com"},
		{"8.8.8.8", "8.8.8.8"},
		{"2001:db8::1", "2001:db8::1"},
		{"a b", "'a b'"},
		{`"; rm -rf /; "`, `'"; rm -rf /; "'`},
		{"it's", `'it'\''s'`},
		{"$(id)", "'$(id)'"},
	}

	for _, tt := range tests {
		if got := ShellQuote(tt.input); got != tt.expected {
			t.Errorf("ShellQuote(%q) = %s, want %s", tt.input, got, tt.expected)
		}
	}
}

func TestDisplayCommand(t *testing.T) {
	got := DisplayCommand("ping", PingCommand("linux", "").Argv("; reboot"))
	if got != "ping -c 3 -- '; reboot'" {
		t.Errorf("DisplayCommand = %s", got)
	}
}
