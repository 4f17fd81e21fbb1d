//go:build windows

package supervisor

import (
	"os"
	"os/exec"
	"syscall"
)

const createNewProcessGroup = 0x00000200

// configureSysProcAttr creates a new process group so termination does not
// propagate to the shell host.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
}

// terminate stops the backend. Windows has no graceful signal usable across
// process groups, so terminate and forceKill behave identically.
func terminate(pid int) error {
	return forceKill(pid)
}

func forceKill(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	return p.Kill()
}

var (
	kernel32        = syscall.NewLazyDLL("kernel32.dll")
	procOpenProcess = kernel32.NewProc("OpenProcess")
	procCloseHandle = kernel32.NewProc("CloseHandle")
)

const processQueryInformation = 0x0400

// processAlive checks whether a process handle can still be opened.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	ret, _, _ := procOpenProcess.Call(uintptr(processQueryInformation), 0, uintptr(uint32(pid)))
	if ret == 0 {
		return false
	}
	_, _, _ = procCloseHandle.Call(ret)
	return true
}
