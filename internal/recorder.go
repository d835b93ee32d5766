package internal

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// Recorder runs a vendor CLI under a pseudo-terminal, mirroring its
// interactive behavior exactly: unchanged argument vector, inherited
// environment, forwarded signals, same exit code. The PTY output stream
// has two consumers, the user's terminal and an activity signal that
// drives the transcript flusher.
type Recorder struct {
	command  string
	args     []string
	cmd      *exec.Cmd
	ptmx     *os.File
	activity chan struct{}
}

// NewRecorder prepares a recorder for the given executable and arguments.
func NewRecorder(command string, args []string) *Recorder {
	return &Recorder{
		command:  command,
		args:     args,
		activity: make(chan struct{}, 1),
	}
}

// Start launches the wrapped executable. A failed launch is a
// *LaunchError; nothing was captured.
func (r *Recorder) Start() error {
	cmd := exec.Command(r.command, r.args...)
	cmd.Env = os.Environ()

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return &LaunchError{Command: r.command, Err: err}
	}

	r.cmd = cmd
	r.ptmx = ptmx
	return nil
}

// Activity signals whenever the child produces output. The channel is
// buffered and lossy; the watcher only needs a nudge, not every chunk.
func (r *Recorder) Activity() <-chan struct{} {
	return r.activity
}

// Wait proxies the interactive session until the child exits and returns
// its exit code unchanged.
func (r *Recorder) Wait() int {
	defer r.ptmx.Close()

	// Window size follows the controlling terminal.
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	go func() {
		for range winch {
			_ = pty.InheritSize(os.Stdin, r.ptmx)
		}
	}()
	winch <- syscall.SIGWINCH
	defer func() {
		signal.Stop(winch)
		close(winch)
	}()

	// Terminating waylog terminates the vendor tool, one-to-one.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for s := range sigs {
			if r.cmd.Process != nil {
				_ = r.cmd.Process.Signal(s)
			}
		}
	}()
	defer func() {
		signal.Stop(sigs)
		close(sigs)
	}()

	// Raw mode so keystrokes reach the child unfiltered. Skipped when
	// stdin is not a terminal (pipes, tests).
	stdinFd := int(os.Stdin.Fd())
	if term.IsTerminal(stdinFd) {
		if oldState, err := term.MakeRaw(stdinFd); err == nil {
			defer func() { _ = term.Restore(stdinFd, oldState) }()
		}
	}

	go func() {
		_, _ = io.Copy(r.ptmx, os.Stdin)
	}()

	buf := make([]byte, 32*1024)
	for {
		n, err := r.ptmx.Read(buf)
		if n > 0 {
			_, _ = os.Stdout.Write(buf[:n])
			select {
			case r.activity <- struct{}{}:
			default:
			}
		}
		if err != nil {
			// EIO is the normal PTY close on child exit.
			break
		}
	}

	if err := r.cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		return 1
	}
	return 0
}
