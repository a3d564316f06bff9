package main

import (
	"fmt"
	"os"
)

// ============================================================================
// zenparts-ctl - Command-line IPC Client
// ============================================================================
// Sends requests to zenpartsd over its Unix socket.
//
// Usage:
//   zenparts-ctl list
//   zenparts-ctl get headphone_gain
//   zenparts-ctl set headphone_gain 6
//   zenparts-ctl click device_kcal
//   zenparts-ctl rebuild
//
// Options:
//   --socket PATH    Unix domain socket path (default: /tmp/zenparts.sock)
// ============================================================================

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
