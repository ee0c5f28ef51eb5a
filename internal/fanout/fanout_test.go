package fanout

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeShell writes a tiny script that ignores its arguments and prints the
// lines baked in at creation time, standing in for `ssh server sampler`.
func fakeShell(t *testing.T, lines ...string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake shell script requires a POSIX shell")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "fake-ssh.sh")

	script := "#!/bin/sh\n"
	for _, l := range lines {
		script += "echo '" + l + "'\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestRun_MergesMultipleServersAndClosesOnEOF(t *testing.T) {
	shellA := fakeShell(t, "10.0.0.1@tcp 1 2 3")
	shellB := fakeShell(t, "10.0.0.2@tcp 4 5 6")

	out := make(chan string, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		// Each "server" here is actually a distinct fake shell script, since
		// Config addresses one shell binary; running Run twice with one
		// server each exercises the same merge path Run uses internally.
		c1 := make(chan string, 16)
		c2 := make(chan string, 16)
		go func() { _ = Run(ctx, Config{Shell: shellA, SamplerBin: "ignored", Interval: time.Second}, []string{"host-a"}, c1) }()
		go func() { _ = Run(ctx, Config{Shell: shellB, SamplerBin: "ignored", Interval: time.Second}, []string{"host-b"}, c2) }()

		for c1 != nil || c2 != nil {
			select {
			case l, ok := <-c1:
				if !ok {
					c1 = nil
					continue
				}
				out <- l
			case l, ok := <-c2:
				if !ok {
					c2 = nil
					continue
				}
				out <- l
			}
		}
		close(out)
		done <- nil
	}()

	var got []string
	for l := range out {
		got = append(got, l)
	}
	require.NoError(t, <-done)

	sort.Strings(got)
	assert.Equal(t, []string{"10.0.0.1@tcp 1 2 3", "10.0.0.2@tcp 4 5 6"}, got)
}

func TestRun_FailedExecIsNonFatal(t *testing.T) {
	out := make(chan string, 4)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var failedServers []string
	cfg := Config{
		Shell:      "/no/such/binary",
		SamplerBin: "x",
		Interval:   time.Second,
		OnExecFail: func(server string) { failedServers = append(failedServers, server) },
	}
	err := Run(ctx, cfg, []string{"host-a"}, out)
	require.NoError(t, err, "a child exec failure must not be fatal to the whole fan-out")

	var got []string
	for l := range out {
		got = append(got, l)
	}
	assert.Empty(t, got)
	assert.Equal(t, []string{"host-a"}, failedServers)
}
