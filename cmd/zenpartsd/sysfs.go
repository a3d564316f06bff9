package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// Sysfs resolves device node paths under a root directory and performs the
// small reads/writes the settings panel needs.
//
// Node paths are given in their on-device absolute form; Root is "/" on a real
// device and a scratch directory in tests.
type Sysfs struct {
	Root string
}

// Path returns the resolved location of node.
func (s Sysfs) Path(node string) string {
	if s.Root == "" || s.Root == "/" {
		return filepath.Clean(node)
	}
	return filepath.Join(s.Root, node)
}

// Writable reports whether node exists and the process may write it.
func (s Sysfs) Writable(node string) bool {
	return FileWritable(s.Path(node))
}

// AllWritable reports whether every node is writable. An empty list is not.
func (s Sysfs) AllWritable(nodes []string) bool {
	if len(nodes) == 0 {
		return false
	}
	for _, n := range nodes {
		if !s.Writable(n) {
			return false
		}
	}
	return true
}

// ReadLine returns the first line of node with surrounding whitespace removed.
func (s Sysfs) ReadLine(node string) (string, error) {
	return ReadLine(s.Path(node))
}

// Write replaces the contents of node with payload.
func (s Sysfs) Write(node, payload string) error {
	return WriteValue(s.Path(node), payload)
}

// FileWritable checks write permission with access(2), the same test the
// kernel applies on open, without opening the node.
func FileWritable(path string) bool {
	return unix.Access(path, unix.W_OK) == nil
}

// ReadLine reads the first line of a file.
func ReadLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if sc.Scan() {
		return strings.TrimSpace(sc.Text()), nil
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return "", nil
}

// WriteValue writes payload to an existing node, truncating it first.
// Nodes are never created: a missing sysfs attribute means the kernel does not
// expose the feature.
func WriteValue(path, payload string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	_, werr := f.WriteString(payload)
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("write %s: %w", path, werr)
	}
	if cerr != nil && !errors.Is(cerr, os.ErrClosed) {
		return fmt.Errorf("close %s: %w", path, cerr)
	}
	return nil
}
