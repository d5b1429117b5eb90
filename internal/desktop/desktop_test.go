package desktop

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenBrowserBuildsLocalhostURL(t *testing.T) {
	var opened string
	o := Opener{OpenURL: func(url string) error { opened = url; return nil }}

	url, err := o.OpenBrowser(8000)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000", url)
	require.Equal(t, url, opened)
}

func TestOpenBrowserWithoutPort(t *testing.T) {
	o := Opener{OpenURL: func(string) error { t.Fatal("must not open"); return nil }}

	_, err := o.OpenBrowser(0)
	require.ErrorIs(t, err, ErrNoPort)
}

func TestOpenBrowserWrapsFailure(t *testing.T) {
	boom := errors.New("no browser")
	o := Opener{OpenURL: func(string) error { return boom }}

	_, err := o.OpenBrowser(3000)
	require.ErrorIs(t, err, boom)
}

func TestOpenLogMissingFile(t *testing.T) {
	o := Opener{OpenFile: func(string) error { t.Fatal("must not open"); return nil }}

	err := o.OpenLog(filepath.Join(t.TempDir(), "absent.log"))
	require.ErrorIs(t, err, ErrLogNotFound)
}

func TestOpenLogPassesAbsolutePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.log")
	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))

	var opened string
	o := Opener{OpenFile: func(p string) error { opened = p; return nil }}
	require.NoError(t, o.OpenLog(path))
	require.Equal(t, path, opened)
}
