package daemon

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/sevlyar/go-daemon"
)

var ErrAlreadyRunning = errors.New("daemon already running")

// WasReborn reports whether this process is the background child started by
// Daemonize.
func WasReborn() bool {
	return daemon.WasReborn()
}

// UnsetMark clears the marker so commands started by the child are not
// mistaken for daemons themselves.
func UnsetMark() {
	os.Unsetenv(daemon.MARK_NAME)
}

// CheckPidFile removes pidFile if the process it names is gone. It fails
// with ErrAlreadyRunning if that process is still alive.
func CheckPidFile(pidFile string) error {
	if _, err := os.Stat(pidFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	pid, err := daemon.ReadPidFile(pidFile)
	if err != nil {
		return fmt.Errorf("failed to read pid file %s: %w", pidFile, err)
	}
	proc, err := os.FindProcess(pid)
	if err == nil && proc.Signal(syscall.Signal(0)) == nil {
		return fmt.Errorf("%w with PID %d", ErrAlreadyRunning, pid)
	}
	if err := os.Remove(pidFile); err != nil {
		return fmt.Errorf("failed to remove stale PID file %s: %w", pidFile, err)
	}
	return nil
}

// Daemonize re-executes args in the background with output sent to
// logFile. It returns the child process in the parent and nil in the child.
func Daemonize(pidFile, logFile, workDir string, args []string) (*os.Process, error) {
	if logFile == "" {
		logFile = os.DevNull
	}

	cntxt := &daemon.Context{
		PidFileName: pidFile,
		PidFilePerm: 0644,
		LogFileName: logFile,
		LogFilePerm: 0640,
		WorkDir:     workDir,
		Umask:       027,
		Args:        args,
	}
	return cntxt.Reborn()
}
