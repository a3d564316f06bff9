package main

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// fakeProps is an in-memory PropertyStore.
type fakeProps struct {
	mu      sync.Mutex
	values  map[string]string
	sets    []string
	failSet error
}

func newFakeProps(kv ...string) *fakeProps {
	p := &fakeProps{values: make(map[string]string)}
	for i := 0; i+1 < len(kv); i += 2 {
		p.values[kv[i]] = kv[i+1]
	}
	return p
}

func (p *fakeProps) Get(key, def string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.values[key]; ok && v != "" {
		return v
	}
	return def
}

func (p *fakeProps) Set(key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failSet != nil {
		return p.failSet
	}
	p.values[key] = value
	p.sets = append(p.sets, key+"="+value)
	return nil
}

func (p *fakeProps) value(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[key]
	return v, ok
}

// fakePackages reports the listed packages as installed.
type fakePackages map[string]bool

func (f fakePackages) Installed(pkg string) bool { return f[pkg] }

// fakeLauncher records launched components.
type fakeLauncher struct {
	mu       sync.Mutex
	launched []string
	err      error
}

func (l *fakeLauncher) Launch(component string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.launched = append(l.launched, component)
	return nil
}

func (l *fakeLauncher) calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.launched...)
}

var errLaunchFailed = errors.New("launch failed")

// allNodes are the sysfs nodes of the stock binding table.
var allNodes = []string{
	torch1BrightnessPath,
	torch2BrightnessPath,
	headphoneGainPath,
	microphoneGainPath,
	vibratorStrengthPath,
	backlightDimmerPath,
}

// newTestSysfs creates a scratch sysfs tree holding nodes with the given
// contents. Nodes not listed do not exist and are therefore not writable.
func newTestSysfs(t *testing.T, nodes map[string]string) Sysfs {
	t.Helper()
	root := t.TempDir()
	for node, content := range nodes {
		p := filepath.Join(root, node)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", node, err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", node, err)
		}
	}
	return Sysfs{Root: root}
}

// fullDeviceNodes returns contents for every stock node.
func fullDeviceNodes() map[string]string {
	return map[string]string{
		torch1BrightnessPath: "100\n",
		torch2BrightnessPath: "100\n",
		headphoneGainPath:    "5 5\n",
		microphoneGainPath:   "3\n",
		vibratorStrengthPath: "2000\n",
		backlightDimmerPath:  "N\n",
	}
}

func readNode(t *testing.T, fs Sysfs, node string) string {
	t.Helper()
	b, err := os.ReadFile(fs.Path(node))
	if err != nil {
		t.Fatalf("read %s: %v", node, err)
	}
	return string(b)
}

func testBindings() Bindings {
	return NewBindings(DefaultTunables(defaultKCalComponent, false, DefaultGPUBoostEntries(), DefaultCPUBoostEntries()))
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}

func writeNode(t *testing.T, fs Sysfs, node, content string) {
	t.Helper()
	p := fs.Path(node)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", node, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", node, err)
	}
}

func removeNode(fs Sysfs, node string) error {
	return os.Remove(fs.Path(node))
}
