package install

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrRestartPending is the terminal outcome of a successful self-replace
// hand-off. The helper process now owns the replacement; the caller must let
// the process exit. Confirmation of success is deferred to the next launch
// reading its own version marker.
var ErrRestartPending = errors.New("restart pending: update helper launched")

// ErrBackup marks a failure in the pre-replace backup step, so callers can
// classify it apart from staging and hand-off failures.
var ErrBackup = errors.New("backup before self-replace")

// State tracks the self-replace sequence. Once backed up there is no way
// back to Idle except an explicit early failure, which leaves the old
// artifact untouched.
type State int

const (
	StateIdle State = iota
	StateBackedUp
	StateStaged
	StateHandoffLaunched
	StateProcessExiting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBackedUp:
		return "backed-up"
	case StateStaged:
		return "staged"
	case StateHandoffLaunched:
		return "handoff-launched"
	case StateProcessExiting:
		return "process-exiting"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// SelfReplacer swaps the running executable for a new build. The executable
// cannot be overwritten while it runs, so the replacement is handed off to a
// short-lived helper script that waits for this process to exit, moves the
// new file over the old path, relaunches, and deletes itself.
type SelfReplacer struct {
	execPath string
	goos     string
	pid      int
	state    State
	launch   func(scriptPath string) error
}

// SelfReplacerOption configures a SelfReplacer.
type SelfReplacerOption func(*SelfReplacer)

// WithLauncher overrides how the helper script is spawned. Tests capture the
// script instead of running it.
func WithLauncher(fn func(scriptPath string) error) SelfReplacerOption {
	return func(r *SelfReplacer) { r.launch = fn }
}

// WithPlatform overrides the target platform for script generation.
func WithPlatform(goos string) SelfReplacerOption {
	return func(r *SelfReplacer) { r.goos = goos }
}

// NewSelfReplacer builds a replacer for the executable at execPath.
func NewSelfReplacer(execPath string, opts ...SelfReplacerOption) *SelfReplacer {
	r := &SelfReplacer{
		execPath: execPath,
		goos:     runtime.GOOS,
		pid:      os.Getpid(),
		state:    StateIdle,
	}
	r.launch = r.spawnDetached
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current position in the replace sequence.
func (r *SelfReplacer) State() State {
	return r.state
}

// Install runs the self-replace sequence: backup, stage the new binary
// beside the old one, write and spawn the helper script, then report
// ErrRestartPending so the caller exits. backup runs first and a failure
// aborts with nothing on disk changed.
func (r *SelfReplacer) Install(newArtifact string, backup func() error) error {
	if r.state != StateIdle {
		return fmt.Errorf("self-replace already in progress (state %s)", r.state)
	}

	if backup != nil {
		if err := backup(); err != nil {
			r.state = StateIdle
			return fmt.Errorf("%w: %w", ErrBackup, err)
		}
	}
	r.state = StateBackedUp

	stagedPath := r.execPath + ".new"
	if err := stageBinary(newArtifact, stagedPath); err != nil {
		r.state = StateIdle
		return fmt.Errorf("stage new executable: %w", err)
	}
	r.state = StateStaged

	scriptPath, err := r.writeHelperScript(stagedPath)
	if err != nil {
		os.Remove(stagedPath)
		r.state = StateIdle
		return fmt.Errorf("write update helper: %w", err)
	}

	if err := r.launch(scriptPath); err != nil {
		os.Remove(stagedPath)
		os.Remove(scriptPath)
		r.state = StateIdle
		return fmt.Errorf("launch update helper: %w", err)
	}
	r.state = StateHandoffLaunched

	log.Printf("[Install] update helper launched, process will exit for replacement")
	r.state = StateProcessExiting
	return ErrRestartPending
}

func stageBinary(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

// writeHelperScript renders the platform script next to the executable. The
// script waits for this process, terminates it if still alive, moves the
// staged binary over the old path, relaunches, and removes itself.
func (r *SelfReplacer) writeHelperScript(stagedPath string) (string, error) {
	var name, body string
	if r.goos == "windows" {
		name = "voiceupdate_helper.bat"
		body = windowsHelperScript(r.pid, stagedPath, r.execPath)
	} else {
		name = "voiceupdate_helper.sh"
		body = unixHelperScript(r.pid, stagedPath, r.execPath)
	}

	scriptPath := filepath.Join(filepath.Dir(r.execPath), name)
	if err := os.WriteFile(scriptPath, []byte(body), 0o755); err != nil {
		return "", err
	}
	return scriptPath, nil
}

func windowsHelperScript(pid int, stagedPath, execPath string) string {
	var b strings.Builder
	b.WriteString("@echo off\r\n")
	b.WriteString("timeout /t 2 /nobreak >nul\r\n")
	fmt.Fprintf(&b, "taskkill /PID %d /F >nul 2>&1\r\n", pid)
	b.WriteString("timeout /t 1 /nobreak >nul\r\n")
	fmt.Fprintf(&b, "move /Y \"%s\" \"%s\"\r\n", stagedPath, execPath)
	fmt.Fprintf(&b, "start \"\" \"%s\"\r\n", execPath)
	b.WriteString("del \"%~f0\"\r\n")
	return b.String()
}

func unixHelperScript(pid int, stagedPath, execPath string) string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("sleep 2\n")
	fmt.Fprintf(&b, "while kill -0 %d 2>/dev/null; do\n", pid)
	fmt.Fprintf(&b, "    kill %d 2>/dev/null\n", pid)
	b.WriteString("    sleep 1\n")
	b.WriteString("done\n")
	fmt.Fprintf(&b, "mv \"%s\" \"%s\"\n", stagedPath, execPath)
	fmt.Fprintf(&b, "chmod +x \"%s\"\n", execPath)
	fmt.Fprintf(&b, "\"%s\" &\n", execPath)
	b.WriteString("rm -- \"$0\"\n")
	return b.String()
}

// spawnDetached starts the helper so it survives this process exiting. The
// hand-off is fire and forget; the helper's outcome is unobservable from
// here.
func (r *SelfReplacer) spawnDetached(scriptPath string) error {
	var cmd *exec.Cmd
	if r.goos == "windows" {
		cmd = exec.Command("cmd", "/C", "start", "", scriptPath)
	} else {
		cmd = exec.Command("/bin/sh", scriptPath)
	}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
