//go:build unix

package transform

import (
	"os/exec"
	"syscall"
)

// setProcessGroup makes cancellation kill the engine together with
// everything it spawned.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
