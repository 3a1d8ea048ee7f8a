//go:build unix

package ecosystem

import (
	"os/exec"
	"syscall"
)

// setProcessGroup starts cmd in its own process group and kills the whole group on cancellation
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
