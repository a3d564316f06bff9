package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

const defaultSocketPath = "/tmp/zenparts.sock"

// newRootCmd builds the command tree. out receives command output.
func newRootCmd(out io.Writer) *cobra.Command {
	var (
		socketPath string
		timeout    time.Duration
		asJSON     bool
	)
	client := func() ipcClient { return ipcClient{socketPath: socketPath, timeout: timeout} }

	root := &cobra.Command{
		Use:   "zenparts-ctl",
		Short: "Control the zenparts device settings daemon",
		Long: `Control the zenparts device settings daemon over its Unix socket.

Examples:
  zenparts-ctl list
  zenparts-ctl set torch_brightness 120
  zenparts-ctl set gpuboost 1
  zenparts-ctl set backlight_dimmer on
  zenparts-ctl click device_kcal`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&socketPath, "socket", defaultSocketPath, "daemon Unix socket path")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show every preference on the panel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := client().panel()
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(out, p)
			}
			printPanel(out, p)
			return nil
		},
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "print the raw panel as JSON")

	getCmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Show one preference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := client().panel()
			if err != nil {
				return err
			}
			for _, pref := range p.Preferences {
				if pref.Key == args[0] {
					return printJSON(out, pref)
				}
			}
			return fmt.Errorf("unknown preference: %s", args[0])
		},
	}

	setCmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change a preference value",
		Long: `Change a preference value.

VALUE is sent as an integer when it parses as one, as a boolean for
on/off/true/false, and as a string otherwise.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().change(args[0], parseValue(args[1])); err != nil {
				return err
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	}

	clickCmd := &cobra.Command{
		Use:   "click KEY",
		Short: "Tap an action preference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().click(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	}

	rebuildCmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Re-probe every sink and rebuild the panel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().rebuild(); err != nil {
				return err
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	}

	root.AddCommand(listCmd, getCmd, setCmd, clickCmd, rebuildCmd)
	return root
}

// parseValue turns a command-line VALUE into the widget value sent to the daemon.
func parseValue(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	switch strings.ToLower(s) {
	case "on", "true", "yes":
		return true
	case "off", "false", "no":
		return false
	}
	return s
}

func printPanel(w io.Writer, p panel) {
	fmt.Fprintf(w, "device: %s\n", p.Device)
	if !p.Built {
		fmt.Fprintln(w, "panel not built yet")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tCATEGORY\tKIND\tENABLED\tVALUE\tSUMMARY")
	for _, pref := range p.Preferences {
		value := ""
		if pref.Value != nil {
			value = fmt.Sprint(pref.Value)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%s\t%s\n", pref.Key, pref.Category, pref.Kind, pref.Enabled, value, pref.Summary)
	}
	tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
