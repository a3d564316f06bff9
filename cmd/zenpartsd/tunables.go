package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ============================================================================
// Tunables - the binding table
// ============================================================================
// Each Tunable binds one preference key to its sink (sysfs nodes or a system
// property), a capability check evaluated when the panel is built, and a write
// strategy used when the widget value changes.
//
// Write strategies are pure: they turn a raw widget value into the value and
// summary to show plus the Commands that persist it. The daemon loop executes
// those Commands.
// ============================================================================

// WidgetKind is the UI control type of a preference.
type WidgetKind string

const (
	KindSeekBar WidgetKind = "seekbar"
	KindSwitch  WidgetKind = "switch"
	KindList    WidgetKind = "list"
	KindAction  WidgetKind = "action"
)

// Capability selects how a tunable's enablement is decided at build time.
type Capability int

const (
	// CapNodesWritable enables the widget only if every sysfs node is writable.
	CapNodesWritable Capability = iota
	// CapAlways enables the widget unconditionally (property sinks).
	CapAlways
	// CapPackageInstalled enables the widget if the component's package is installed.
	CapPackageInstalled
)

// ListEntry is one option of a list preference.
type ListEntry struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// Bounds is the inclusive range of a seek bar.
type Bounds struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (b *Bounds) check(v int) error {
	if b == nil || (v >= b.Min && v <= b.Max) {
		return nil
	}
	return fmt.Errorf("%w: %d outside [%d, %d]", ErrInvalidValue, v, b.Min, b.Max)
}

// Tunable is a hardware-backed setting and the widget that mirrors it.
type Tunable struct {
	Key      string
	Category string
	Kind     WidgetKind

	// Sinks: sysfs nodes in device form, or a system property.
	Nodes           []string
	Property        string
	PropertyDefault string

	// Bounds limits seek bar values. Nil means any integer.
	Bounds *Bounds

	// Entries are the options of a list preference.
	Entries []ListEntry

	// Component is the activity launched by an action preference.
	Component string

	Capability Capability

	// RemoveWhenAbsent removes the widget from the screen (rather than
	// disabling it) when its sink is not writable.
	RemoveWhenAbsent bool

	// Strategy is nil for action preferences.
	Strategy WriteStrategy
}

// EntryLabel returns the label for value, or "" when value is not an option.
func (t Tunable) EntryLabel(value string) string {
	for _, e := range t.Entries {
		if e.Value == value {
			return e.Label
		}
	}
	return ""
}

// Applied is the outcome of a successful write strategy.
type Applied struct {
	Value    any
	Summary  string
	Commands []Command
}

// WriteStrategy maps a widget value onto sink writes.
type WriteStrategy interface {
	// Apply validates raw and returns the new widget value, its summary and the
	// commands persisting it. It must not perform I/O.
	Apply(t Tunable, raw any) (Applied, error)

	// Read loads the current value from the sink for the initial widget state.
	Read(t Tunable, env *PanelEnv) (value any, summary string)
}

// Errors returned to clients for rejected changes.
var (
	ErrUnknownPreference  = errors.New("unknown preference")
	ErrPreferenceDisabled = errors.New("preference disabled")
	ErrInvalidValue       = errors.New("invalid value")
	ErrNotClickable       = errors.New("preference is not clickable")
	ErrPanelNotBuilt      = errors.New("panel not built")
)

// ----------------------------------------------------------------------------
// Strategies
// ----------------------------------------------------------------------------

// IntToNodes writes the integer value to every node (torch brightness mirrors
// to both LED nodes; microphone gain and vibrator strength have one).
type IntToNodes struct{}

func (IntToNodes) Apply(t Tunable, raw any) (Applied, error) {
	v, err := coerceInt(raw)
	if err != nil {
		return Applied{}, err
	}
	if err := t.Bounds.check(v); err != nil {
		return Applied{}, err
	}
	payload := strconv.Itoa(v)
	cmds := make([]Command, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		cmds = append(cmds, CmdWriteFile{Node: n, Payload: payload})
	}
	return Applied{Value: v, Summary: payload, Commands: cmds}, nil
}

func (IntToNodes) Read(t Tunable, env *PanelEnv) (any, string) {
	return readIntNode(t, env)
}

// DoubledIntToNode writes "V V" (left and right channel) to a single node.
type DoubledIntToNode struct{}

func (DoubledIntToNode) Apply(t Tunable, raw any) (Applied, error) {
	v, err := coerceInt(raw)
	if err != nil {
		return Applied{}, err
	}
	if err := t.Bounds.check(v); err != nil {
		return Applied{}, err
	}
	if len(t.Nodes) == 0 {
		return Applied{}, fmt.Errorf("%s: no sink node", t.Key)
	}
	return Applied{
		Value:    v,
		Summary:  strconv.Itoa(v),
		Commands: []Command{CmdWriteFile{Node: t.Nodes[0], Payload: fmt.Sprintf("%d %d", v, v)}},
	}, nil
}

func (DoubledIntToNode) Read(t Tunable, env *PanelEnv) (any, string) {
	return readIntNode(t, env)
}

// SwitchToNode writes Y or N to a single node.
type SwitchToNode struct{}

func (SwitchToNode) Apply(t Tunable, raw any) (Applied, error) {
	on, err := coerceBool(raw)
	if err != nil {
		return Applied{}, err
	}
	if len(t.Nodes) == 0 {
		return Applied{}, fmt.Errorf("%s: no sink node", t.Key)
	}
	payload := "N"
	if on {
		payload = "Y"
	}
	return Applied{
		Value:    on,
		Commands: []Command{CmdWriteFile{Node: t.Nodes[0], Payload: payload}},
	}, nil
}

func (SwitchToNode) Read(t Tunable, env *PanelEnv) (any, string) {
	if env == nil || len(t.Nodes) == 0 {
		return false, ""
	}
	line, err := env.Sysfs.ReadLine(t.Nodes[0])
	if err != nil {
		return false, ""
	}
	switch strings.ToUpper(line) {
	case "Y", "1":
		return true, ""
	default:
		return false, ""
	}
}

// ListToProperty stores the chosen option in a system property; the summary
// shows the option label.
type ListToProperty struct{}

func (ListToProperty) Apply(t Tunable, raw any) (Applied, error) {
	v, err := coerceString(raw)
	if err != nil {
		return Applied{}, err
	}
	label := t.EntryLabel(v)
	if label == "" {
		return Applied{}, fmt.Errorf("%w: %q is not an option of %s", ErrInvalidValue, v, t.Key)
	}
	return Applied{
		Value:    v,
		Summary:  label,
		Commands: []Command{CmdSetProperty{Key: t.Property, Value: v}},
	}, nil
}

func (ListToProperty) Read(t Tunable, env *PanelEnv) (any, string) {
	v := t.PropertyDefault
	if env != nil && env.Props != nil {
		v = env.Props.Get(t.Property, t.PropertyDefault)
	}
	return v, t.EntryLabel(v)
}

func readIntNode(t Tunable, env *PanelEnv) (any, string) {
	if env == nil || len(t.Nodes) == 0 {
		return nil, ""
	}
	line, err := env.Sysfs.ReadLine(t.Nodes[0])
	if err != nil {
		return nil, ""
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, ""
	}
	v, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, ""
	}
	return v, strconv.Itoa(v)
}

// ----------------------------------------------------------------------------
// Value coercion (widget values arrive as decoded JSON)
// ----------------------------------------------------------------------------

func coerceInt(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		if int64(int(v)) != v {
			return 0, fmt.Errorf("%w: %d out of range", ErrInvalidValue, v)
		}
		return int(v), nil
	case float64:
		if !integral(v) {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidValue, v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil || int64(int(n)) != n {
			return 0, fmt.Errorf("%w: %s is not an integer", ErrInvalidValue, v)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: expected integer, got %T", ErrInvalidValue, raw)
	}
}

func coerceBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case float64:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	case int:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	case json.Number:
		switch v.String() {
		case "0", "1":
			return v.String() == "1", nil
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "on", "y", "yes", "1":
			return true, nil
		case "false", "off", "n", "no", "0":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: expected boolean, got %v", ErrInvalidValue, raw)
}

func coerceString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case float64:
		if integral(v) {
			return strconv.FormatInt(int64(v), 10), nil
		}
	case int:
		return strconv.Itoa(v), nil
	}
	return "", fmt.Errorf("%w: expected string, got %v", ErrInvalidValue, raw)
}

// integral reports whether f is a whole number that fits in an int.
// float64(math.MaxInt64) rounds up to 2^63, hence the strict upper bound.
func integral(f float64) bool {
	return f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 &&
		float64(int(f)) == f
}

// ----------------------------------------------------------------------------
// Default table
// ----------------------------------------------------------------------------

// DefaultGPUBoostEntries and DefaultCPUBoostEntries are the stock profile lists.
func DefaultGPUBoostEntries() []ListEntry {
	return []ListEntry{
		{Value: "0", Label: "Default"},
		{Value: "1", Label: "Performance"},
		{Value: "2", Label: "Battery saving"},
	}
}

func DefaultCPUBoostEntries() []ListEntry {
	return []ListEntry{
		{Value: "0", Label: "Default"},
		{Value: "1", Label: "Performance"},
		{Value: "2", Label: "Battery saving"},
	}
}

// DefaultTunables returns the device's binding table in screen order.
//
// The KCal entry is always enabled unless kcalNeedsPackage is set, in which case
// it is enabled only when the component's package is installed.
func DefaultTunables(kcalComponent string, kcalNeedsPackage bool, gpuEntries, cpuEntries []ListEntry) []Tunable {
	torch, audioIn, audioOut, vib := torchBrightnessBounds, audioGainBounds, audioGainBounds, vibStrengthBounds
	kcalCap := CapAlways
	if kcalNeedsPackage {
		kcalCap = CapPackageInstalled
	}
	return []Tunable{
		{
			Key:        PrefTorchBrightness,
			Category:   CategoryTorch,
			Kind:       KindSeekBar,
			Nodes:      []string{torch1BrightnessPath, torch2BrightnessPath},
			Bounds:     &torch,
			Capability: CapNodesWritable,
			Strategy:   IntToNodes{},
		},
		{
			Key:        PrefHeadphoneGain,
			Category:   CategoryAudio,
			Kind:       KindSeekBar,
			Nodes:      []string{headphoneGainPath},
			Bounds:     &audioOut,
			Capability: CapNodesWritable,
			Strategy:   DoubledIntToNode{},
		},
		{
			Key:        PrefMicrophoneGain,
			Category:   CategoryAudio,
			Kind:       KindSeekBar,
			Nodes:      []string{microphoneGainPath},
			Bounds:     &audioIn,
			Capability: CapNodesWritable,
			Strategy:   IntToNodes{},
		},
		{
			Key:             PrefGPUBoost,
			Category:        CategoryBoost,
			Kind:            KindList,
			Property:        gpuBoostProperty,
			PropertyDefault: defaultBoostProfile,
			Entries:         gpuEntries,
			Capability:      CapAlways,
			Strategy:        ListToProperty{},
		},
		{
			Key:             PrefCPUBoost,
			Category:        CategoryBoost,
			Kind:            KindList,
			Property:        cpuBoostProperty,
			PropertyDefault: defaultBoostProfile,
			Entries:         cpuEntries,
			Capability:      CapAlways,
			Strategy:        ListToProperty{},
		},
		{
			Key:        PrefVibStrength,
			Category:   CategoryVibrator,
			Kind:       KindSeekBar,
			Nodes:      []string{vibratorStrengthPath},
			Bounds:     &vib,
			Capability: CapNodesWritable,
			Strategy:   IntToNodes{},
		},
		{
			Key:              PrefBacklightDimmer,
			Category:         CategoryDisplay,
			Kind:             KindSwitch,
			Nodes:            []string{backlightDimmerPath},
			Capability:       CapNodesWritable,
			RemoveWhenAbsent: true,
			Strategy:         SwitchToNode{},
		},
		{
			Key:        PrefDeviceKCal,
			Category:   CategoryDisplay,
			Kind:       KindAction,
			Component:  kcalComponent,
			Capability: kcalCap,
		},
	}
}

// Bindings is the key-indexed binding table.
type Bindings struct {
	order []Tunable
	byKey map[string]Tunable
}

// NewBindings indexes ts by key. Later duplicates replace earlier ones.
func NewBindings(ts []Tunable) Bindings {
	b := Bindings{byKey: make(map[string]Tunable, len(ts))}
	for _, t := range ts {
		if _, dup := b.byKey[t.Key]; !dup {
			b.order = append(b.order, t)
		} else {
			for i := range b.order {
				if b.order[i].Key == t.Key {
					b.order[i] = t
				}
			}
		}
		b.byKey[t.Key] = t
	}
	return b
}

func (b Bindings) Lookup(key string) (Tunable, bool) {
	t, ok := b.byKey[key]
	return t, ok
}

// All returns the tunables in screen order.
func (b Bindings) All() []Tunable {
	return b.order
}
