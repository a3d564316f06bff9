package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the zenparts daemon.
//
// Defaults and validation live here so the rest of the code can assume a
// well-formed config. The config file is the primary surface; flags are for
// small overrides.
type Config struct {
	// Device access (sysfs root, property backend, package manager, launcher)
	Device DeviceConfig `yaml:"device"`

	// List preference options
	Lists ListsConfig `yaml:"lists"`

	// IPC configuration (zenparts-ctl)
	IPC IPCConfig `yaml:"ipc"`

	// HTTP API, state websocket and metrics
	HTTP HTTPConfig `yaml:"http"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

const (
	propertyBackendAndroid = "android"
	propertyBackendDir     = "dir"
)

type DeviceConfig struct {
	// SysfsRoot prefixes every sysfs node path; "/" on a device.
	SysfsRoot string `yaml:"sysfs_root"`

	// PropertyBackend is "android" (getprop/setprop) or "dir" (one file per key in PropsDir).
	PropertyBackend string `yaml:"property_backend"`
	PropsDir        string `yaml:"props_dir,omitempty"`
	GetpropCommand  string `yaml:"getprop_command"`
	SetpropCommand  string `yaml:"setprop_command"`

	// PackageCommand is the package lookup argv; the package name is appended.
	PackageCommand []string `yaml:"package_command"`
	// LaunchCommand is the activity start argv; the component is appended.
	LaunchCommand []string `yaml:"launch_command"`

	KCalComponent string `yaml:"kcal_component"`

	// KCalRequirePackage disables the KCal entry unless package_command finds
	// the component's package.
	KCalRequirePackage bool `yaml:"kcal_require_package"`

	CommandTimeoutMS int `yaml:"command_timeout_ms"`
}

type ListsConfig struct {
	GPUBoost []ListEntry `yaml:"gpuboost"`
	CPUBoost []ListEntry `yaml:"cpuboost"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	// ListenAddr is host:port; empty disables the HTTP server.
	ListenAddr string `yaml:"listen_addr"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Device: DeviceConfig{
			SysfsRoot:        "/",
			PropertyBackend:  propertyBackendAndroid,
			GetpropCommand:   "getprop",
			SetpropCommand:   "setprop",
			PackageCommand:   []string{"pm", "path"},
			LaunchCommand:    []string{"am", "start", "-n"},
			KCalComponent:    defaultKCalComponent,
			CommandTimeoutMS: defaultCommandTimeoutMS,
		},
		Lists: ListsConfig{
			GPUBoost: DefaultGPUBoostEntries(),
			CPUBoost: DefaultCPUBoostEntries(),
		},
		IPC: IPCConfig{
			SocketPath: defaultIPCSocketPath,
		},
		HTTP: HTTPConfig{
			ListenAddr: defaultHTTPListenAddr,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: logFormatText,
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds values from explicitly set flags. A nil pointer means
// the flag was not given; a non-nil pointer is applied even if it is a zero value.
type FlagOverrides struct {
	SysfsRoot       *string
	PropertyBackend *string
	PropsDir        *string
	KCalComponent   *string

	IPCSocketPath  *string
	HTTPListenAddr *string

	LogLevel *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.SysfsRoot != nil {
		cfg.Device.SysfsRoot = *o.SysfsRoot
	}
	if o.PropertyBackend != nil {
		cfg.Device.PropertyBackend = *o.PropertyBackend
	}
	if o.PropsDir != nil {
		cfg.Device.PropsDir = *o.PropsDir
	}
	if o.KCalComponent != nil {
		cfg.Device.KCalComponent = *o.KCalComponent
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPListenAddr != nil {
		cfg.HTTP.ListenAddr = *o.HTTPListenAddr
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Device
	if c.Device.SysfsRoot == "" {
		return errors.New("device.sysfs_root must not be empty")
	}
	switch c.Device.PropertyBackend {
	case propertyBackendAndroid:
		if c.Device.GetpropCommand == "" || c.Device.SetpropCommand == "" {
			return errors.New("device.getprop_command and device.setprop_command must not be empty")
		}
	case propertyBackendDir:
		if c.Device.PropsDir == "" {
			return errors.New("device.property_backend is \"dir\" but device.props_dir is empty")
		}
	default:
		return fmt.Errorf("device.property_backend must be %q or %q", propertyBackendAndroid, propertyBackendDir)
	}
	if len(c.Device.PackageCommand) == 0 {
		return errors.New("device.package_command must not be empty")
	}
	if len(c.Device.LaunchCommand) == 0 {
		return errors.New("device.launch_command must not be empty")
	}
	if componentPackage(c.Device.KCalComponent) == "" {
		return fmt.Errorf("device.kcal_component %q must be package/class", c.Device.KCalComponent)
	}
	if c.Device.CommandTimeoutMS <= 0 {
		return errors.New("device.command_timeout_ms must be > 0")
	}

	// Lists
	if err := validateEntries("lists.gpuboost", c.Lists.GPUBoost); err != nil {
		return err
	}
	if err := validateEntries("lists.cpuboost", c.Lists.CPUBoost); err != nil {
		return err
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// Logging
	if err := c.Logging.validate(); err != nil {
		return err
	}

	return nil
}

func validateEntries(field string, entries []ListEntry) error {
	if len(entries) == 0 {
		return fmt.Errorf("%s must not be empty", field)
	}
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if e.Value == "" {
			return fmt.Errorf("%s[%d].value is empty", field, i)
		}
		if _, dup := seen[e.Value]; dup {
			return fmt.Errorf("%s: duplicate value %q", field, e.Value)
		}
		seen[e.Value] = struct{}{}
	}
	return nil
}

// CommandTimeout is the bound on one getprop/setprop/pm/am invocation.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Device.CommandTimeoutMS) * time.Millisecond
}

// PanelEnv wires the configured platform access.
func (c *Config) PanelEnv() *PanelEnv {
	timeout := c.CommandTimeout()

	var props PropertyStore
	switch c.Device.PropertyBackend {
	case propertyBackendDir:
		props = DirProperties{Dir: ExpandPath(c.Device.PropsDir)}
	default:
		props = NewAndroidProperties(c.Device.GetpropCommand, c.Device.SetpropCommand, timeout)
	}

	return &PanelEnv{
		Sysfs:    Sysfs{Root: ExpandPath(c.Device.SysfsRoot)},
		Props:    props,
		Packages: NewShellPackageManager(c.Device.PackageCommand, timeout),
		Launcher: NewShellLauncher(c.Device.LaunchCommand, timeout),
	}
}

// Bindings builds the binding table from the configured lists.
func (c *Config) Bindings() Bindings {
	return NewBindings(DefaultTunables(c.Device.KCalComponent, c.Device.KCalRequirePackage, c.Lists.GPUBoost, c.Lists.CPUBoost))
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
