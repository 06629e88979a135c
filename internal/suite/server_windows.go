//go:build windows

package suite

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}

// Windows has no SIGTERM delivery for console processes; stopping kills.
func terminate(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func kill(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
