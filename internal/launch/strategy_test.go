package launch

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFixedBuild(t *testing.T) {
	spec, err := Fixed{Command: "redis-server", Args: []string{"--port", "6380"}}.Build()
	require.NoError(t, err)
	require.Equal(t, ModeExec, spec.Mode)
	argv, err := spec.Argv()
	require.NoError(t, err)
	require.Equal(t, []string{"redis-server", "--port", "6380"}, argv)
}

func TestFileLauncherPrefixByExtension(t *testing.T) {
	goApp := FileLauncher{PrefixByExt: map[string][]string{".go": {"go", "run"}}}

	goApp.Path = "cmd/main.go"
	spec, err := goApp.Build()
	require.NoError(t, err)
	require.Equal(t, "go", spec.Command)
	require.Equal(t, []string{"run", "cmd/main.go"}, spec.Args)

	goApp.Path = "./bin/server"
	spec, err = goApp.Build()
	require.NoError(t, err)
	require.Equal(t, "./bin/server", spec.Command)
	require.Empty(t, spec.Args)
}

func TestFileLauncherKeepsSpacesInPath(t *testing.T) {
	spec, err := FileLauncher{Prefix: []string{"node"}, Path: "/tmp/my app/server.js"}.Build()
	require.NoError(t, err)
	require.Equal(t, []string{"/tmp/my app/server.js"}, spec.Args)
	require.Equal(t, `node "/tmp/my app/server.js"`, spec.String())
}

func TestFileLauncherRequiresPath(t *testing.T) {
	_, err := FileLauncher{Prefix: []string{"node"}}.Build()
	require.ErrorIs(t, err, ErrMissingTarget)
}

func TestFolderServerAppendsPort(t *testing.T) {
	spec, err := FolderServer{
		Prefix:      []string{"live-server"},
		Folder:      "web",
		PortArgs:    []string{"--port", PortPlaceholder},
		DefaultPort: 8080,
	}.Build()
	require.NoError(t, err)
	require.Equal(t, "live-server", spec.Command)
	require.Equal(t, []string{"web", "--port", "8080"}, spec.Args)
	require.Equal(t, 8080, spec.Port)
}

func TestFolderServerWorkdirMode(t *testing.T) {
	spec, err := FolderServer{
		Prefix:          []string{"python3", "-m", "http.server"},
		Folder:          "/srv/site",
		FolderAsWorkdir: true,
		PortArgs:        []string{PortPlaceholder},
		Port:            9000,
	}.Build()
	require.NoError(t, err)
	require.Equal(t, "/srv/site", spec.WorkingDir)
	require.Equal(t, []string{"-m", "http.server", "9000"}, spec.Args)
	require.Equal(t, 9000, spec.Port)
}

func TestManualUsesShell(t *testing.T) {
	spec, err := Manual{Command: "  echo hi && echo there "}.Build()
	require.NoError(t, err)
	require.Equal(t, ModeShell, spec.Mode)
	argv, err := spec.Argv()
	require.NoError(t, err)
	require.Equal(t, "echo hi && echo there", argv[len(argv)-1])
	if runtime.GOOS != "windows" {
		require.Equal(t, []string{"/bin/sh", "-c", "echo hi && echo there"}, argv)
	}
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		err  error
	}{
		{name: "empty", spec: Spec{}, err: ErrEmptyCommand},
		{name: "shell with args", spec: Spec{Mode: ModeShell, Command: "ls", Args: []string{"-l"}}, err: ErrShellArgs},
		{name: "implicit exec", spec: Spec{Command: "ls", Args: []string{"-l"}}},
		{name: "implicit shell", spec: Spec{Command: "ls -l"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.err)
		})
	}
	require.Error(t, Spec{Command: "x", Port: 70000}.Validate())
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode(" Exec ")
	require.NoError(t, err)
	require.Equal(t, ModeExec, mode)

	mode, err = ParseMode("")
	require.NoError(t, err)
	require.Equal(t, Mode(""), mode)

	_, err = ParseMode("bash")
	require.Error(t, err)
}

func TestPresetsCatalog(t *testing.T) {
	ids := PresetIDs()
	require.Contains(t, ids, "manual")
	require.Contains(t, ids, "live-server")

	p, ok := LookupPreset("live-server")
	require.True(t, ok)
	require.True(t, p.HTTP)
	spec, err := p.Build("site", 0)
	require.NoError(t, err)
	require.Equal(t, 8080, spec.Port)

	p, _ = LookupPreset("redis")
	spec, err = p.Build("ignored", 0)
	require.NoError(t, err)
	require.Equal(t, "redis-server", spec.Command)

	_, ok = LookupPreset("missing")
	require.False(t, ok)

	p, _ = LookupPreset("node-script")
	_, err = p.Build("", 0)
	require.ErrorIs(t, err, ErrMissingTarget)
}

func TestStrategyKinds(t *testing.T) {
	var strategies = []Strategy{Fixed{}, FileLauncher{}, FolderServer{}, Manual{}}
	kinds := make([]Kind, 0, len(strategies))
	for _, s := range strategies {
		kinds = append(kinds, s.Kind())
	}
	require.Equal(t, []Kind{KindFixed, KindFileLauncher, KindFolderServer, KindManual}, kinds)
}
