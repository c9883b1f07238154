// Package sentinel supervises a long-running child process and restarts
// it when the binary on disk changes or the child crashes. It is meant to
// be invoked as a subcommand of the binary it supervises: the sentinel
// re-execs its own executable with the given child arguments, watches the
// executable's directory for atomic replaces, and rolls the child over to
// the new binary once the checksum actually changes.
package sentinel

import (
	"crypto/sha256"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// GracePeriod is how long a child gets after SIGTERM before SIGKILL.
	GracePeriod = 10 * time.Second

	// InitialBackoff is the first delay after an abnormal child exit.
	InitialBackoff = 5 * time.Second

	// MaxBackoff caps the delay between restart attempts.
	MaxBackoff = 10 * time.Minute

	// BackoffFactor multiplies the backoff after each failed run.
	BackoffFactor = 2.0

	// SuccessRunTime is how long a child must stay up before the backoff
	// resets to InitialBackoff.
	SuccessRunTime = 30 * time.Second

	// DebounceInterval delays the checksum check after a filesystem event
	// so that multi-step deploys (write temp, rename) settle first.
	DebounceInterval = 100 * time.Millisecond

	// DrainTimeout is how long the sentinel waits for the child to finish
	// in-flight work after a binary update before forcing it down. The
	// server gives open streams 10 seconds on shutdown, so 30 is plenty.
	DrainTimeout = 30 * time.Second
)

// Sentinel supervises one child process started from its own binary.
type Sentinel struct {
	binaryPath string
	childArgs  []string
	lastHash   [sha256.Size]byte
	backoff    time.Duration
	stopCh     chan struct{} // closed when the sentinel should exit
}

// exitReason says why runChild returned and decides the loop's next move.
type exitReason int

const (
	childExited exitReason = iota
	childCrashed
	binarySwapped
	shutdownRequested
)

// Run starts the supervisor loop. It resolves the current executable,
// starts a child with the given arguments, watches the binary for change,
// and restarts the child on crash with exponential backoff. Blocks until
// SIGINT or SIGTERM arrives.
func Run(childArgs ...string) {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetPrefix("[sentinel] ")

	binaryPath, err := os.Executable()
	if err != nil {
		log.Fatalf("failed to resolve executable path: %v", err)
	}
	// Follow symlinks so the watcher sees the real file location.
	binaryPath, err = filepath.EvalSymlinks(binaryPath)
	if err != nil {
		log.Fatalf("failed to resolve symlinks for binary: %v", err)
	}

	log.Printf("starting sentinel (binary: %s, child args: %v)", binaryPath, childArgs)

	s := &Sentinel{
		binaryPath: binaryPath,
		childArgs:  childArgs,
		backoff:    InitialBackoff,
		stopCh:     make(chan struct{}),
	}

	s.lastHash, err = HashFile(binaryPath)
	if err != nil {
		log.Fatalf("failed to hash binary: %v", err)
	}
	log.Printf("initial binary hash: %x", s.lastHash[:8])

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	updateCh := make(chan struct{}, 1)
	go s.watchBinary(updateCh)

	s.superviseLoop(sigCh, updateCh)
}

// superviseLoop runs children one at a time and reacts to how each run
// ended: restart, back off, swap binaries, or shut down.
func (s *Sentinel) superviseLoop(sigCh <-chan os.Signal, updateCh <-chan struct{}) {
	for {
		select {
		case <-s.stopCh:
			log.Println("sentinel stopping")
			return
		default:
		}

		switch s.runChild(sigCh, updateCh) {
		case childExited:
			// The child normally runs forever, so even a clean exit means
			// restart, just without backoff.
			s.backoff = InitialBackoff
			time.Sleep(time.Second)
		case childCrashed:
			s.sleepBackoff()
			s.increaseBackoff()
		case binarySwapped:
			s.refreshHash()
			s.backoff = InitialBackoff
		case shutdownRequested:
			log.Println("sentinel exiting")
			return
		}
	}
}

// runChild starts one child and blocks until it exits, the binary is
// swapped out underneath it, or an OS signal asks the sentinel to stop.
func (s *Sentinel) runChild(sigCh <-chan os.Signal, updateCh <-chan struct{}) exitReason {
	child, err := s.startChild()
	if err != nil {
		log.Printf("failed to start child: %v", err)
		return childCrashed
	}

	started := time.Now()
	childDone := make(chan error, 1)
	go func() {
		childDone <- child.Wait()
	}()

	select {
	case err := <-childDone:
		uptime := time.Since(started)
		if err == nil {
			log.Printf("child exited cleanly after %v", uptime)
			return childExited
		}
		log.Printf("child exited with error after %v: %v", uptime, err)
		if uptime >= SuccessRunTime {
			s.backoff = InitialBackoff
		}
		return childCrashed

	case <-updateCh:
		// New binary landed on disk. SIGTERM asks the child to drain (the
		// server shuts down gracefully on it); the swap happens once it is
		// gone.
		log.Println("binary update detected, draining child for restart...")
		s.stopChild(child)
		if !s.drainChild(childDone, sigCh) {
			return shutdownRequested
		}
		return binarySwapped

	case sig := <-sigCh:
		log.Printf("received %v, forwarding to child and shutting down...", sig)
		s.stopChild(child)
		<-childDone
		return shutdownRequested
	}
}

// drainChild waits for a stopping child to finish. It reports false when
// an OS signal cut the drain short and the sentinel itself should exit.
func (s *Sentinel) drainChild(childDone <-chan error, sigCh <-chan os.Signal) bool {
	select {
	case <-childDone:
		log.Println("child drained, restarting on new binary")
		return true
	case <-time.After(DrainTimeout):
		log.Println("drain timeout expired, child will be killed")
		<-childDone
		return true
	case sig := <-sigCh:
		log.Printf("received %v during drain, sentinel exiting", sig)
		<-childDone
		return false
	}
}

// startChild launches a new child process from the supervised binary. The
// child inherits stdio and environment.
func (s *Sentinel) startChild() (*exec.Cmd, error) {
	cmd := exec.Command(s.binaryPath, s.childArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("exec %s %v: %w", s.binaryPath, s.childArgs, err)
	}

	log.Printf("started child process (pid: %d)", cmd.Process.Pid)
	return cmd, nil
}

// stopChild sends SIGTERM and schedules a SIGKILL after the grace period.
// It does not Wait; the caller drains childDone. Killing through the
// Process handle cannot hit a recycled pid, and killing an already-exited
// process is a no-op.
func (s *Sentinel) stopChild(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}

	pid := cmd.Process.Pid
	log.Printf("sending SIGTERM to child (pid: %d)", pid)
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		log.Printf("failed to send SIGTERM (process may have already exited): %v", err)
		return
	}

	time.AfterFunc(GracePeriod, func() {
		if err := cmd.Process.Kill(); err == nil {
			log.Printf("grace period expired, killed child (pid: %d)", pid)
		}
	})
}

// watchBinary watches the binary's parent directory and notifies updateCh
// when the file's checksum actually changes. Watching the directory rather
// than the file catches atomic replaces, which swap the inode.
func (s *Sentinel) watchBinary(updateCh chan<- struct{}) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("failed to create fsnotify watcher: %v", err)
		return
	}
	defer watcher.Close()

	watchDir := filepath.Dir(s.binaryPath)
	binaryName := filepath.Base(s.binaryPath)

	if err := watcher.Add(watchDir); err != nil {
		log.Printf("failed to watch directory %s: %v", watchDir, err)
		return
	}
	log.Printf("watching %s for changes to %s", watchDir, binaryName)

	var pending *time.Timer

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != binaryName {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}

			log.Printf("detected filesystem event: %s %s", event.Op, event.Name)

			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(DebounceInterval, func() {
				s.notifyIfChanged(updateCh)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("fsnotify error: %v", err)

		case <-s.stopCh:
			return
		}
	}
}

// notifyIfChanged rehashes the binary and signals updateCh when the
// checksum differs from the running child's. The send is non-blocking;
// one queued update is enough.
func (s *Sentinel) notifyIfChanged(updateCh chan<- struct{}) {
	newHash, err := HashFile(s.binaryPath)
	if err != nil {
		log.Printf("failed to hash binary after event: %v", err)
		return
	}
	if newHash == s.lastHash {
		log.Printf("filesystem event but checksum unchanged, ignoring")
		return
	}
	log.Printf("binary checksum changed (old: %x, new: %x)", s.lastHash[:8], newHash[:8])
	select {
	case updateCh <- struct{}{}:
	default:
	}
}

func (s *Sentinel) refreshHash() {
	if h, err := HashFile(s.binaryPath); err == nil {
		s.lastHash = h
		log.Printf("new binary hash: %x", s.lastHash[:8])
	}
}

// HashFile computes the SHA256 checksum of the file at path.
func HashFile(path string) ([sha256.Size]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [sha256.Size]byte{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return [sha256.Size]byte{}, fmt.Errorf("hash %s: %w", path, err)
	}
	return [sha256.Size]byte(h.Sum(nil)), nil
}

// sleepBackoff waits out the current backoff, interruptible via stopCh.
func (s *Sentinel) sleepBackoff() {
	log.Printf("waiting %v before restart...", s.backoff)
	select {
	case <-time.After(s.backoff):
	case <-s.stopCh:
	}
}

func (s *Sentinel) increaseBackoff() {
	s.backoff = min(time.Duration(float64(s.backoff)*BackoffFactor), MaxBackoff)
}
