package sampler

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStats(t *testing.T, path string, wr, rd, reqs uint64) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	content := "snapshot_time 0\n"
	content += statLine("write_bytes", wr)
	content += statLine("read_bytes", rd)
	if reqs > 0 {
		// Requests count a counter's SAMPLES field, not its SUM.
		content += "open " + itoa(reqs) + " samples [reqs] 0 0 0\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func statLine(name string, sum uint64) string {
	return name + " 1 samples [bytes] 0 0 " + itoa(sum) + "\n"
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

func setupTarget(t *testing.T, root, target, client string) string {
	return filepath.Join(root, target, "exports", client, "stats")
}

func TestRunOneShot_EmitsDeltaAcrossInterval(t *testing.T) {
	root := t.TempDir()
	p := setupTarget(t, root, "lustre-OST0000", "10.0.0.1@tcp")
	writeStats(t, p, 100, 50, 1)

	cfg := OneShotConfig{Interval: 20 * time.Millisecond, Roots: []string{root}}

	done := make(chan error, 1)
	var buf bytes.Buffer
	go func() {
		done <- RunOneShot(context.Background(), cfg, &buf)
	}()

	// Let the first pass run, then grow the counters before the second pass.
	time.Sleep(5 * time.Millisecond)
	writeStats(t, p, 300, 50, 4)

	require.NoError(t, <-done)
	assert.Equal(t, "10.0.0.1@tcp 200 0 3\n", buf.String())
}

func TestRunOneShot_SkipsIdleClient(t *testing.T) {
	root := t.TempDir()
	p := setupTarget(t, root, "lustre-OST0000", "10.0.0.2@tcp")
	writeStats(t, p, 10, 10, 1)

	cfg := OneShotConfig{Interval: time.Millisecond, Roots: []string{root}}

	var buf bytes.Buffer
	require.NoError(t, RunOneShot(context.Background(), cfg, &buf))
	assert.Empty(t, buf.String())
}

func TestRunOneShot_SkipsEvictedClient(t *testing.T) {
	root := t.TempDir()
	p := setupTarget(t, root, "lustre-OST0000", "10.0.0.3@tcp")
	writeStats(t, p, 500, 500, 5)

	cfg := OneShotConfig{Interval: 10 * time.Millisecond, Roots: []string{root}}

	done := make(chan error, 1)
	var buf bytes.Buffer
	go func() {
		done <- RunOneShot(context.Background(), cfg, &buf)
	}()

	time.Sleep(2 * time.Millisecond)
	// Counters "went backwards" -- the export was recreated while asleep.
	writeStats(t, p, 10, 10, 1)

	require.NoError(t, <-done)
	assert.Empty(t, buf.String())
}
