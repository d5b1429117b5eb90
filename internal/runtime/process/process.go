package process

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Paintersrp/devdock/internal/launch"
)

// ErrNotFound classifies spawn failures caused by a missing program or shell.
var ErrNotFound = errors.New("executable not found")

// Options carries the per-run launch parameters.
type Options struct {
	Spec launch.Spec
	Env  map[string]string
}

// Child is a started process with its stdout and stderr read ends. The write
// ends are owned by the child only, so the readers reach end-of-stream once
// every holder of the pipe has exited.
type Child struct {
	cmd    *exec.Cmd
	stdout *os.File
	stderr *os.File

	closeOnce sync.Once
	// reaped is set once Wait has returned; the pid may be reused after
	// that, so no further signals are sent.
	reaped atomic.Bool
}

// Spawn starts the process described by opts. Errors caused by a missing
// executable wrap ErrNotFound.
func Spawn(opts Options) (*Child, error) {
	argv, err := opts.Spec.Argv()
	if err != nil {
		return nil, fmt.Errorf("build argv: %w", err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	if opts.Spec.WorkingDir != "" {
		cmd.Dir = opts.Spec.WorkingDir
	}
	if len(opts.Env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), opts.Env)
	}

	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		_ = outR.Close()
		_ = outW.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	configureCmdSysProcAttr(cmd)

	startErr := cmd.Start()
	// The parent's copies of the write ends must be closed in every case,
	// otherwise the readers never observe end-of-stream.
	_ = outW.Close()
	_ = errW.Close()
	if startErr != nil {
		_ = outR.Close()
		_ = errR.Close()
		return nil, classifyStartError(startErr)
	}

	return &Child{cmd: cmd, stdout: outR, stderr: errR}, nil
}

func classifyStartError(err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

func mergeEnv(base []string, overrides map[string]string) []string {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := append([]string(nil), base...)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, overrides[k]))
	}
	return env
}

// PID returns the operating system process identifier.
func (c *Child) PID() int {
	if c == nil || c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Stdout returns the read end of the child's standard output.
func (c *Child) Stdout() *os.File { return c.stdout }

// Stderr returns the read end of the child's standard error.
func (c *Child) Stderr() *os.File { return c.stderr }

// Wait blocks until the child exits and returns its exit error, following
// the semantics of exec.Cmd.Wait. It must be called exactly once.
func (c *Child) Wait() error {
	err := c.cmd.Wait()
	c.reaped.Store(true)
	return err
}

// Exited reports whether Wait has returned.
func (c *Child) Exited() bool {
	return c.reaped.Load()
}

// ProcessState exposes the exit state once Wait has returned.
func (c *Child) ProcessState() *os.ProcessState {
	return c.cmd.ProcessState
}

// CloseOutput closes both read ends, unblocking any reader. It is safe to call
// more than once.
func (c *Child) CloseOutput() {
	c.closeOnce.Do(func() {
		_ = c.stdout.Close()
		_ = c.stderr.Close()
	})
}
