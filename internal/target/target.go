// Package target enumerates Lustre targets (MDT/MDS and OST/obdfilter)
// under the kernel's procfs roots, and the per-client export directories
// beneath each target.
package target

import (
	"fmt"
	"os"
	"path/filepath"
)

// Roots are the kernel procfs directories lltop scans for Lustre targets,
// in scan order: MDT, MDS (legacy name), then obdfilter (OST).
var Roots = []string{
	"/proc/fs/lustre/mdt",
	"/proc/fs/lustre/mds",
	"/proc/fs/lustre/obdfilter",
}

// Descriptor names one Lustre target and the directory holding its
// per-client export subdirectories.
type Descriptor struct {
	Name       string
	ExportsDir string
}

// ErrNoRoots is returned when none of Roots exist; the caller should treat
// this as fatal: missing roots are non-fatal individually, but fatal when
// every root is absent.
var ErrNoRoots = fmt.Errorf("target: none of %v exist", Roots)

// Walk enumerates all targets under roots (defaulting to Roots when nil).
// A root that does not exist is skipped silently; Walk only fails when
// every root is absent.
func Walk(roots []string) ([]Descriptor, error) {
	if roots == nil {
		roots = Roots
	}

	var descs []Descriptor
	found := 0
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			// Any other error (permissions, not-a-directory) still counts
			// as "root not usable", but is not itself fatal: it is treated
			// the same as a missing root, and only promoted to fatal by
			// the all-roots-absent check below.
			continue
		}
		found++

		for _, ent := range entries {
			name := ent.Name()
			if !ent.IsDir() || name[0] == '.' {
				continue
			}
			descs = append(descs, Descriptor{
				Name:       name,
				ExportsDir: filepath.Join(root, name, "exports"),
			})
		}
	}

	if found == 0 {
		return nil, ErrNoRoots
	}
	return descs, nil
}

// Clients lists the client export subdirectory names under a target's
// ExportsDir. A vanished exports directory is a soft error: it returns
// no clients and a nil error, since a target can disappear between scans.
func Clients(exportsDir string) ([]string, error) {
	entries, err := os.ReadDir(exportsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, nil
	}

	names := make([]string, 0, len(entries))
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() && name[0] != '.' {
			names = append(names, name)
		}
	}
	return names, nil
}

// ClientDir returns the export directory for one client under a target.
func ClientDir(exportsDir, client string) string {
	return filepath.Join(exportsDir, client)
}
