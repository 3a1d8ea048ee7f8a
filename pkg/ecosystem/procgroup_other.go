//go:build !unix

package ecosystem

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}
