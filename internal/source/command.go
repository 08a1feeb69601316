package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/setevik/alarmtrace/internal/format"
)

// Command captures the standard output of a process as one source, e.g. a
// remote "ssh tool-07 cat /var/log/alarm.log".
type Command struct {
	Name    string
	Args    []string
	Timeout time.Duration
}

// Run executes the command and returns its decoded output. A non-zero exit
// is an error even if some output was produced.
func (c Command) Run(ctx context.Context) (string, error) {
	if len(c.Args) == 0 {
		return "", fmt.Errorf("command %q has no arguments", c.Name)
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("starting %s: %w", c.Args[0], err)
	}

	var b strings.Builder
	scanner := bufio.NewScanner(stdout)
	// Device logs can carry very long lines; allow up to 1MB.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		b.WriteString(Decode(scanner.Bytes()))
		b.WriteByte('\n')
	}
	scanErr := scanner.Err()
	if scanErr != nil {
		// Keep the pipe drained so the process can exit.
		_, _ = io.Copy(io.Discard, stdout)
	}

	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("running %s: %w", c.Name, err)
	}
	if scanErr != nil {
		return "", fmt.Errorf("reading %s output: %w", c.Name, scanErr)
	}

	slog.Debug("command source captured", "name", c.Name, "size", format.Bytes(b.Len()))
	return b.String(), nil
}

// RunCommands runs each command and adds its output to sources under the
// command name. A name already taken by another source gets a "cmd:" prefix
// and, if needed, a numeric suffix. Failures are logged and skipped.
func RunCommands(ctx context.Context, cmds []Command, sources map[string]string) {
	for _, c := range cmds {
		out, err := c.Run(ctx)
		if err != nil {
			slog.Warn("command source failed", "name", c.Name, "error", err)
			continue
		}
		id := freeID(c.Name, sources)
		if id != c.Name {
			slog.Warn("command source renamed", "name", c.Name, "id", id)
		}
		sources[id] = out
	}
}

func freeID(name string, sources map[string]string) string {
	if _, taken := sources[name]; !taken {
		return name
	}
	id := "cmd:" + name
	for n := 2; ; n++ {
		if _, taken := sources[id]; !taken {
			return id
		}
		id = fmt.Sprintf("cmd:%s#%d", name, n)
	}
}
