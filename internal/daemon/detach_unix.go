//go:build unix

package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// ExecDetacher re-executes a binary as a session leader with no
// controlling terminal.
type ExecDetacher struct{}

func (ExecDetacher) Detach(spec LaunchSpec) (int, <-chan struct{}, error) {
	if spec.Executable == "" {
		return 0, nil, fmt.Errorf("resolve executable: executable path is empty")
	}

	cmd := exec.Command(spec.Executable, spec.Args...)
	cmd.Dir = spec.WorkDir
	cmd.Env = append(os.Environ(), spec.Env...)
	if spec.Stdout != nil {
		cmd.Stdout = spec.Stdout
	}
	if spec.Stderr != nil {
		cmd.Stderr = spec.Stderr
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, nil, fmt.Errorf("launch daemon: %w", err)
	}

	// Reap the child so an early exit is not mistaken for a live process.
	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()
	return cmd.Process.Pid, exited, nil
}

var _ Detacher = ExecDetacher{}
