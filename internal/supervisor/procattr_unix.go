//go:build !windows

package supervisor

import (
	"bytes"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"syscall"
)

// configureSysProcAttr places the backend in its own process group so
// terminate/kill reach the whole tree.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate asks the backend's process group to exit gracefully.
func terminate(pid int) error {
	return syscall.Kill(-pid, syscall.SIGTERM)
}

// forceKill kills the backend's process group.
func forceKill(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}

// processAlive probes liveness without blocking. On Linux a quickly-exiting
// child can linger as a zombie until reaped; treat that as not alive.
func processAlive(pid int) bool {
	if runtime.GOOS == "linux" && isZombieLinux(pid) {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

// isZombieLinux returns true if /proc/<pid>/status reports a zombie state (Z).
func isZombieLinux(pid int) bool {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return false
	}
	return bytes.Contains(b, []byte("State:\tZ"))
}
