//go:build windows

package sandbox

import "os/exec"

func isolateProcessGroup(cmd *exec.Cmd) {}
