// Package desktop hands URLs and files to the operator's desktop
// environment.
package desktop

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/browser"

	"github.com/Paintersrp/devdock/internal/probe"
)

// ErrLogNotFound is returned when a log file has not been written yet.
var ErrLogNotFound = errors.New("log file not found")

// ErrNoPort is returned when a process has no expected port to open.
var ErrNoPort = errors.New("no expected port configured")

// Opener launches the platform handler for URLs and files. The function
// fields default to github.com/pkg/browser and can be swapped in tests.
type Opener struct {
	OpenURL  func(url string) error
	OpenFile func(path string) error
}

// Default uses the platform's browser and file handlers.
var Default = Opener{
	OpenURL:  browser.OpenURL,
	OpenFile: browser.OpenFile,
}

// OpenBrowser opens http://localhost:<port>.
func (o Opener) OpenBrowser(port int) (string, error) {
	if port <= 0 {
		return "", ErrNoPort
	}
	url := probe.URL(port)
	if err := o.OpenURL(url); err != nil {
		return url, fmt.Errorf("open %s: %w", url, err)
	}
	return url, nil
}

// OpenLog opens a log file in the desktop viewer.
func (o Opener) OpenLog(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrLogNotFound, abs)
		}
		return fmt.Errorf("stat %s: %w", abs, err)
	}
	if err := o.OpenFile(abs); err != nil {
		return fmt.Errorf("open %s: %w", abs, err)
	}
	return nil
}

// OpenBrowser opens http://localhost:<port> with the default opener.
func OpenBrowser(port int) (string, error) {
	return Default.OpenBrowser(port)
}

// OpenFile opens a log file with the default opener.
func OpenFile(path string) error {
	return Default.OpenLog(path)
}
