package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOrSeedWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server_configs.json")
	store := NewStore(path)

	procs, seeded, err := store.LoadOrSeed()
	require.NoError(t, err)
	require.True(t, seeded)
	require.Len(t, procs, len(Defaults()))

	reloaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, reloaded, len(procs))
	for i := range procs {
		require.True(t, procs[i].Equal(reloaded[i]), "record %d differs after round trip", i)
	}
}

func TestLoadOrSeedKeepsExistingRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server_configs.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"api","command":"sleep 5"}]`), 0o644))

	procs, seeded, err := NewStore(path).LoadOrSeed()
	require.NoError(t, err)
	require.False(t, seeded)
	require.Len(t, procs, 1)
	require.Equal(t, "api", procs[0].Name)
	require.Equal(t, "shell", string(procs[0].Spec().Mode))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewStore(filepath.Join(t.TempDir(), "absent.json")).Load()
	require.Error(t, err)
	require.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server_configs.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"api","command":"x","colour":"red"}]`), 0o644))

	_, err := NewStore(path).Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "colour")
}

func TestLoadRejectsDuplicateNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server_configs.json")
	doc := `[{"name":"api","command":"x"},{"name":"api","command":"y"}]`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	_, err := NewStore(path).Load()
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestLoadRejectsShellArgs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server_configs.json")
	doc := `[{"name":"api","command":"echo","args":["hi"],"mode":"shell"}]`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	_, err := NewStore(path).Load()
	require.Error(t, err)
}

func TestYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processes.yaml")
	store := NewStore(path)

	want := []Process{{
		Name:         "web",
		Command:      "python3",
		Args:         []string{"-m", "http.server", "9000"},
		Mode:         "exec",
		AutoStart:    true,
		ExpectedPort: 9000,
		Env:          map[string]string{"PYTHONUNBUFFERED": "1"},
	}}
	require.NoError(t, store.Save(want))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "expected_port: 9000")

	got, err := store.Load()
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, want[0].Equal(got[0]))
}

func TestSaveRefusesInvalidRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server_configs.json")
	err := NewStore(path).Save([]Process{{Name: "", Command: "x"}})
	require.Error(t, err)

	_, statErr := os.Stat(path)
	require.True(t, errors.Is(statErr, fs.ErrNotExist))
}

func TestChangedIgnoresOwnWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server_configs.json")
	store := NewStore(path)
	require.NoError(t, store.Save(Defaults()))

	changed, err := store.Changed()
	require.NoError(t, err)
	require.False(t, changed)

	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"other","command":"x"}]`), 0o644))
	changed, err = store.Changed()
	require.NoError(t, err)
	require.True(t, changed)
}

func TestDuplicateNameSequence(t *testing.T) {
	taken := map[string]bool{"D": true}
	isTaken := func(name string) bool { return taken[name] }

	first := DuplicateName("D", isTaken)
	require.Equal(t, "D (Copy)", first)
	taken[first] = true

	second := DuplicateName("D", isTaken)
	require.Equal(t, "D (Copy 1)", second)
	taken[second] = true

	require.Equal(t, "D (Copy 2)", DuplicateName("D", isTaken))
}

func TestDecodeEmptyDocument(t *testing.T) {
	procs, err := Decode([]byte("  \n"), FormatJSON)
	require.NoError(t, err)
	require.Empty(t, procs)
}

func TestLoadLocatesSchemaProblemsByRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processes.yaml")
	doc := "- name: api\n  command: node\n- name: web\n  command: npm\n  expected_port: eighty\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	_, err := NewStore(path).Load()
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.NotEmpty(t, schemaErr.Problems)

	problem := schemaErr.Problems[0]
	require.Equal(t, 1, problem.Record)
	require.Equal(t, "web", problem.Name)
	require.Equal(t, "expected_port", problem.Field)
	require.Contains(t, err.Error(), "record 1 (web) expected_port:")
}
