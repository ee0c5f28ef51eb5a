package evfrontend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/jhammond-tacc/lltop/internal/rxbuf"
)

// JobMapper runs a long-lived "job-map" subprocess that emits
// "<client> <job>" lines on stdout whenever a client's job assignment
// changes, and applies each binding to a Registry.
type JobMapper struct {
	reg *Registry
	cmd *exec.Cmd
}

// NewJobMapper wires cmd (not yet started) to apply its output to reg.
func NewJobMapper(reg *Registry, cmd *exec.Cmd) *JobMapper {
	return &JobMapper{reg: reg, cmd: cmd}
}

// Run starts the subprocess and applies bindings from its stdout until
// ctx is cancelled or the process exits. A malformed line is logged and
// skipped, matching the front-end's general "transient I/O: log and skip"
// error handling.
func (m *JobMapper) Run(ctx context.Context) error {
	stdout, err := m.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("evfrontend: cannot create job-map stdout pipe: %w", err)
	}
	if err := m.cmd.Start(); err != nil {
		return fmt.Errorf("evfrontend: cannot exec job-map: %w", err)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = m.cmd.Process.Kill()
		case <-done:
		}
	}()
	defer close(done)

	if err := ApplyLines(m.reg, stdout); err != nil {
		return err
	}
	return m.cmd.Wait()
}

// ApplyLines reads "<client> <job>" lines from r using the rx-buf framing
// discipline and applies each to reg, returning nil at EOF.
func ApplyLines(reg *Registry, r rxbuf.Reader) error {
	b := rxbuf.New(64 * 1024)
	for {
		_, readErr := b.Read(r)

		for {
			line, ok := b.Iter()
			if !ok {
				break
			}
			applyLine(reg, line)
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return readErr
		}
	}
}

// applyLine parses and applies a single "<client> <job>" line, logging
// and dropping it if malformed.
func applyLine(reg *Registry, line string) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		slog.Warn("evfrontend: malformed job-map line", "line", line)
		return
	}
	cliName, jobName := fields[0], fields[1]
	cli := reg.ClientLookup(cliName, true)
	reg.SetClientJob(cli, jobName)
}
