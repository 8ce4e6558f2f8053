//go:build windows

package process

import (
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	stillActive         = 259
	attachParentProcess = ^uintptr(0)
	wmClose             = 0x0010

	// The console control event is delivered asynchronously; keep our own
	// Ctrl-C handling disabled long enough for it to pass us by.
	ctrlEventSettleTime = 500 * time.Millisecond
)

var (
	kernel32                     = windows.NewLazySystemDLL("kernel32.dll")
	procAttachConsole            = kernel32.NewProc("AttachConsole")
	procFreeConsole              = kernel32.NewProc("FreeConsole")
	procGenerateConsoleCtrlEvent = kernel32.NewProc("GenerateConsoleCtrlEvent")
	procSetConsoleCtrlHandler    = kernel32.NewProc("SetConsoleCtrlHandler")

	user32                       = windows.NewLazySystemDLL("user32.dll")
	procEnumWindows              = user32.NewProc("EnumWindows")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procPostMessageW             = user32.NewProc("PostMessageW")
)

// A process can be attached to one console at a time
var consoleOperationLock sync.Mutex

// IsProcessRunning checks the exit code of pid
func IsProcessRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, errInvalidPID(pid)
	}

	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		if err == windows.ERROR_INVALID_PARAMETER {
			return false, nil
		}
		return false, err
	}
	defer windows.CloseHandle(handle)

	var exitCode uint32
	if err := windows.GetExitCodeProcess(handle, &exitCode); err != nil {
		return false, err
	}
	return exitCode == stillActive, nil
}

// SendInterrupt attaches to the console of pid and raises CTRL_C_EVENT in it
func SendInterrupt(pid int) error {
	if pid <= 0 {
		return errInvalidPID(pid)
	}
	if running, _ := IsProcessRunning(pid); !running {
		return nil
	}

	consoleOperationLock.Lock()
	defer consoleOperationLock.Unlock()

	// Leave our own console, if any, so we can join the target's
	procFreeConsole.Call()
	defer procAttachConsole.Call(attachParentProcess)

	if r, _, err := procAttachConsole.Call(uintptr(pid)); r == 0 {
		return fmt.Errorf("failed to attach to the console of PID %d: %v", pid, err)
	}

	// Ignore Ctrl-C in this process while the event is in flight
	procSetConsoleCtrlHandler.Call(0, 1)
	defer func() {
		time.Sleep(ctrlEventSettleTime)
		procSetConsoleCtrlHandler.Call(0, 0)
	}()

	r, _, err := procGenerateConsoleCtrlEvent.Call(uintptr(windows.CTRL_C_EVENT), 0)
	procFreeConsole.Call()
	if r == 0 {
		return fmt.Errorf("failed to send Ctrl+C to PID %d: %v", pid, err)
	}
	return nil
}

// syscall.NewCallback slots are never released, so a single callback serves every enumeration
var (
	windowEnumLock   sync.Mutex
	windowEnumPID    uint32
	windowEnumClosed int
	windowEnumProc   = syscall.NewCallback(closeWindowOfPID)
)

func closeWindowOfPID(hwnd uintptr, _ uintptr) uintptr {
	var owner uint32
	procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&owner)))
	if owner == windowEnumPID {
		procPostMessageW.Call(hwnd, wmClose, 0, 0)
		windowEnumClosed++
	}
	return 1 // continue enumeration
}

// SendTerminate posts WM_CLOSE to every top-level window owned by pid
func SendTerminate(pid int) error {
	if pid <= 0 {
		return errInvalidPID(pid)
	}

	windowEnumLock.Lock()
	defer windowEnumLock.Unlock()

	windowEnumPID = uint32(pid)
	windowEnumClosed = 0
	procEnumWindows.Call(windowEnumProc, 0)

	if windowEnumClosed == 0 {
		return fmt.Errorf("no window found for PID %d", pid)
	}
	return nil
}

// KillTree terminates pid and every child it spawned
func KillTree(pid int) error {
	if pid <= 0 {
		return errInvalidPID(pid)
	}
	if running, _ := IsProcessRunning(pid); !running {
		return nil
	}

	cmd := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid))
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("taskkill failed for PID %d: %v: %s", pid, err, out)
	}
	return nil
}
