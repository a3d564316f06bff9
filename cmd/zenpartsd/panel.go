package main

import (
	"log/slog"
	"time"
)

// PanelEnv is the platform access the settings panel needs.
type PanelEnv struct {
	Sysfs    Sysfs
	Props    PropertyStore
	Packages PackageManager
	Launcher ActivityLauncher
}

// PreferenceState is the UI-side mirror of a tunable. It owns no hardware
// state: the sink is the source of truth and this is what the screen shows.
type PreferenceState struct {
	Key      string      `json:"key"`
	Category string      `json:"category"`
	Kind     WidgetKind  `json:"kind"`
	Enabled  bool        `json:"enabled"`
	Removed  bool        `json:"removed,omitempty"`
	Value    any         `json:"value,omitempty"`
	Summary  string      `json:"summary,omitempty"`
	Bounds   *Bounds     `json:"bounds,omitempty"`
	Entries  []ListEntry `json:"entries,omitempty"`
}

// PanelState is the built preference screen.
type PanelState struct {
	Device string
	Prefs  map[string]PreferenceState
	Order  []string
}

// BuildPanel creates the preference screen: every widget is bound to its
// tunable, enabled according to the tunable's capability, and loaded with the
// sink's current value. Widgets flagged RemoveWhenAbsent whose sink is not
// writable are removed from the screen.
func BuildPanel(b Bindings, env *PanelEnv, logger *slog.Logger) PanelState {
	if logger == nil {
		logger = slog.Default()
	}
	panel := PanelState{
		Device: unknownDevice,
		Prefs:  make(map[string]PreferenceState, len(b.All())),
	}
	if env != nil && env.Props != nil {
		panel.Device = env.Props.Get(buildProductProperty, unknownDevice)
	}

	for _, t := range b.All() {
		p := PreferenceState{
			Key:      t.Key,
			Category: t.Category,
			Kind:     t.Kind,
			Bounds:   t.Bounds,
			Entries:  t.Entries,
		}

		supported := capabilitySupported(t, env)
		if !supported && t.RemoveWhenAbsent {
			p.Removed = true
			logger.Debug("preference removed", "key", t.Key, "nodes", t.Nodes)
		} else {
			p.Enabled = supported
			if t.Strategy != nil {
				p.Value, p.Summary = t.Strategy.Read(t, env)
			}
			if !supported {
				logger.Debug("preference disabled", "key", t.Key, "nodes", t.Nodes)
			}
		}

		panel.Prefs[t.Key] = p
		panel.Order = append(panel.Order, t.Key)
	}

	recordPanelWidgets(panel)
	return panel
}

func capabilitySupported(t Tunable, env *PanelEnv) bool {
	switch t.Capability {
	case CapAlways:
		return true
	case CapNodesWritable:
		if env == nil {
			return false
		}
		return env.Sysfs.AllWritable(t.Nodes)
	case CapPackageInstalled:
		if env == nil || env.Packages == nil {
			return false
		}
		return env.Packages.Installed(componentPackage(t.Component))
	default:
		return false
	}
}

// StateSnapshot is a point-in-time copy of the screen for clients. Removed
// widgets are not part of the screen and are omitted.
type StateSnapshot struct {
	Device           string            `json:"device"`
	Built            bool              `json:"built"`
	BuiltAt          time.Time         `json:"built_at,omitempty"`
	WriteFailures    int               `json:"write_failures,omitempty"`
	LastWriteFailure *WriteFailure     `json:"last_write_failure,omitempty"`
	Preferences      []PreferenceState `json:"preferences"`
}

// Visible reports the preference with key if it is on screen.
func (s StateSnapshot) Visible(key string) (PreferenceState, bool) {
	for _, p := range s.Preferences {
		if p.Key == key {
			return p, true
		}
	}
	return PreferenceState{}, false
}
