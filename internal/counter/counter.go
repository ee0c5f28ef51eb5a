// Package counter parses Lustre per-client stats pseudo-files into
// write/read byte and request-count counters.
package counter

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Snapshot is an immutable counter triple for one client-export at one instant.
type Snapshot struct {
	WriteBytes uint64
	ReadBytes  uint64
	Requests   uint64
}

// Add returns the element-wise sum of s and o.
func (s Snapshot) Add(o Snapshot) Snapshot {
	return Snapshot{
		WriteBytes: s.WriteBytes + o.WriteBytes,
		ReadBytes:  s.ReadBytes + o.ReadBytes,
		Requests:   s.Requests + o.Requests,
	}
}

// Delta is the signed element-wise difference between two Snapshots, as
// returned by Sub. Its components may legitimately be negative.
type Delta struct {
	WriteBytes int64
	ReadBytes  int64
	Requests   int64
}

// Sub returns the delta s - o.
func (s Snapshot) Sub(o Snapshot) Delta {
	return Delta{
		WriteBytes: int64(s.WriteBytes) - int64(o.WriteBytes),
		ReadBytes:  int64(s.ReadBytes) - int64(o.ReadBytes),
		Requests:   int64(s.Requests) - int64(o.Requests),
	}
}

// Negative reports whether any component of the delta is negative, the
// eviction-artifact heuristic: the export vanished and was re-created
// between two passes.
func (d Delta) Negative() bool {
	return d.WriteBytes < 0 || d.ReadBytes < 0 || d.Requests < 0
}

// Zero reports whether all three components are zero.
func (d Delta) Zero() bool {
	return d.WriteBytes == 0 && d.ReadBytes == 0 && d.Requests == 0
}

// ErrShortLine describes a stats line that fails to parse at least its
// first three tokens. ReadStats does not return it: such lines are logged
// and skipped.
var ErrShortLine = errors.New("counter: line has fewer than three tokens")

// ReadStats parses a Lustre client "stats" pseudo-file at path.
//
// The first line carries an unreliable snapshot_time and is discarded.
// Each subsequent line has the shape "NAME SAMPLES samples [UNITS] MIN MAX SUM"
// with optional trailing fields:
//   - write_bytes sets WriteBytes from SUM
//   - read_bytes sets ReadBytes from SUM
//   - ping is ignored entirely
//   - any other counter adds SAMPLES to Requests
//
// A missing file is a soft error: ReadStats logs and returns a zero Snapshot
// with a nil error, since a vanished export is routine, not exceptional.
func ReadStats(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("counter: stats file missing", "path", path)
			return Snapshot{}, nil
		}
		slog.Warn("counter: cannot open stats file", "path", path, "err", err)
		return Snapshot{}, nil
	}
	defer f.Close()

	return parse(f, path), nil
}

func parse(f *os.File, path string) Snapshot {
	sc := bufio.NewScanner(f)

	// Skip the snapshot_time line.
	if !sc.Scan() {
		return Snapshot{}
	}

	var snap Snapshot
	for sc.Scan() {
		line := sc.Text()
		name, samples, sum, ok := parseLine(line)
		if !ok {
			slog.Warn("counter: invalid stats line", "path", path, "line", line)
			continue
		}

		switch name {
		case "write_bytes":
			snap.WriteBytes = sum
		case "read_bytes":
			snap.ReadBytes = sum
		case "ping":
			// Ignored entirely: neither bytes nor requests.
		default:
			snap.Requests += samples
		}
	}
	if err := sc.Err(); err != nil {
		slog.Warn("counter: error scanning stats file", "path", path, "err", err)
	}
	return snap
}

// parseLine extracts name, sample count, and the trailing sum field (if
// present) from one counter line. At least three tokens are required (name,
// a numeric sample count, and one more); a line with fewer is reported
// unparseable.
func parseLine(line string) (name string, samples, sum uint64, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return "", 0, 0, false
	}

	name = fields[0]
	s, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return "", 0, 0, false
	}
	samples = s

	// Shape: NAME SAMPLES "samples" ["[" UNITS "]"] MIN MAX SUM
	// The sum, when present, is always the last token.
	if len(fields) >= 6 {
		if v, err := strconv.ParseUint(fields[len(fields)-1], 10, 64); err == nil {
			sum = v
		}
	}
	return name, samples, sum, true
}

// Path builds the stats pseudo-file path for a client export directory.
func Path(clientExportDir string) string {
	return fmt.Sprintf("%s/stats", clientExportDir)
}
