package target

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkTarget(t *testing.T, root, name string, clients ...string) {
	t.Helper()
	expDir := filepath.Join(root, name, "exports")
	require.NoError(t, os.MkdirAll(expDir, 0o755))
	for _, c := range clients {
		require.NoError(t, os.MkdirAll(filepath.Join(expDir, c), 0o755))
	}
}

func TestWalk_SkipsDotPrefixedAndMissingRoots(t *testing.T) {
	mdt := t.TempDir()
	obd := t.TempDir()
	missing := filepath.Join(t.TempDir(), "gone")

	mkTarget(t, mdt, "lustre-MDT0000")
	mkTarget(t, obd, "lustre-OST0000")
	require.NoError(t, os.MkdirAll(filepath.Join(obd, ".hidden"), 0o755))

	descs, err := Walk([]string{mdt, missing, obd})
	require.NoError(t, err)
	require.Len(t, descs, 2)

	names := map[string]bool{}
	for _, d := range descs {
		names[d.Name] = true
		assert.DirExists(t, d.ExportsDir)
	}
	assert.True(t, names["lustre-MDT0000"])
	assert.True(t, names["lustre-OST0000"])
}

func TestWalk_AllRootsMissingIsFatal(t *testing.T) {
	a := filepath.Join(t.TempDir(), "a")
	b := filepath.Join(t.TempDir(), "b")

	_, err := Walk([]string{a, b})
	assert.ErrorIs(t, err, ErrNoRoots)
}

func TestClients_ListsExportDirsOnly(t *testing.T) {
	root := t.TempDir()
	mkTarget(t, root, "lustre-OST0001", "10.0.0.1@tcp", "10.0.0.2@tcp")

	descs, err := Walk([]string{root})
	require.NoError(t, err)
	require.Len(t, descs, 1)

	// A stray file alongside the export directories should be ignored.
	require.NoError(t, os.WriteFile(filepath.Join(descs[0].ExportsDir, "README"), nil, 0o644))

	clients, err := Clients(descs[0].ExportsDir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"10.0.0.1@tcp", "10.0.0.2@tcp"}, clients)
}

func TestClients_MissingExportsDirIsSoft(t *testing.T) {
	clients, err := Clients(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Nil(t, clients)
}
