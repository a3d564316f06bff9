package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ============================================================================
// Android platform collaborators
// ============================================================================
// The panel talks to the platform through three narrow interfaces so it can
// run against a real device (getprop/setprop, pm, am) or against fakes in
// tests and on development hosts.
// ============================================================================

// PropertyStore reads and writes system properties.
type PropertyStore interface {
	// Get returns the property value, or def when it is unset or unreadable.
	Get(key, def string) string
	Set(key, value string) error
}

// PackageManager answers installed-package queries.
type PackageManager interface {
	Installed(pkg string) bool
}

// ActivityLauncher starts an activity by component name ("pkg/.Activity").
type ActivityLauncher interface {
	Launch(component string) error
}

// ----------------------------------------------------------------------------
// Command-backed implementations (on-device)
// ----------------------------------------------------------------------------

// commandRunner runs a platform tool with a timeout and returns trimmed stdout.
type commandRunner struct {
	timeout time.Duration
}

func (r commandRunner) run(argv ...string) (string, error) {
	if len(argv) == 0 || argv[0] == "" {
		return "", errors.New("empty command")
	}
	timeout := r.timeout
	if timeout <= 0 {
		timeout = time.Duration(defaultCommandTimeoutMS) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w", argv[0], err)
	}
	return strings.TrimSpace(string(out)), nil
}

// AndroidProperties uses the getprop/setprop tools.
type AndroidProperties struct {
	Getprop string
	Setprop string
	runner  commandRunner
}

func NewAndroidProperties(getprop, setprop string, timeout time.Duration) *AndroidProperties {
	return &AndroidProperties{Getprop: getprop, Setprop: setprop, runner: commandRunner{timeout: timeout}}
}

func (p *AndroidProperties) Get(key, def string) string {
	v, err := p.runner.run(p.Getprop, key)
	if err != nil || v == "" {
		return def
	}
	return v
}

func (p *AndroidProperties) Set(key, value string) error {
	_, err := p.runner.run(p.Setprop, key, value)
	return err
}

// ShellPackageManager asks the package manager for a package path; a failed
// lookup means "not installed".
type ShellPackageManager struct {
	Command []string // e.g. ["pm", "path"]
	runner  commandRunner
}

func NewShellPackageManager(command []string, timeout time.Duration) *ShellPackageManager {
	return &ShellPackageManager{Command: command, runner: commandRunner{timeout: timeout}}
}

func (m *ShellPackageManager) Installed(pkg string) bool {
	return !isAppNotInstalled(m.runner, m.Command, pkg)
}

// isAppNotInstalled converts a package lookup failure into a boolean.
func isAppNotInstalled(r commandRunner, command []string, pkg string) bool {
	argv := append(append([]string{}, command...), pkg)
	out, err := r.run(argv...)
	if err != nil {
		return true
	}
	return !strings.HasPrefix(out, "package:")
}

// ShellLauncher starts activities with `am start -n <component>`.
type ShellLauncher struct {
	Command []string // e.g. ["am", "start", "-n"]
	runner  commandRunner
}

func NewShellLauncher(command []string, timeout time.Duration) *ShellLauncher {
	return &ShellLauncher{Command: command, runner: commandRunner{timeout: timeout}}
}

func (l *ShellLauncher) Launch(component string) error {
	argv := append(append([]string{}, l.Command...), component)
	_, err := l.runner.run(argv...)
	return err
}

// ----------------------------------------------------------------------------
// Directory-backed property store (development hosts)
// ----------------------------------------------------------------------------

// DirProperties keeps one file per property under Dir.
type DirProperties struct {
	Dir string
}

func (p DirProperties) path(key string) string {
	return filepath.Join(p.Dir, filepath.Base(key))
}

func (p DirProperties) Get(key, def string) string {
	v, err := ReadLine(p.path(key))
	if err != nil || v == "" {
		return def
	}
	return v
}

func (p DirProperties) Set(key, value string) error {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return fmt.Errorf("create props dir: %w", err)
	}
	return os.WriteFile(p.path(key), []byte(value), 0o644)
}

// componentPackage returns the package part of "pkg/.Activity".
func componentPackage(component string) string {
	pkg, _, _ := strings.Cut(component, "/")
	return pkg
}
