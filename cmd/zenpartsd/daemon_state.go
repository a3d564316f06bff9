package main

import "time"

// DaemonState is the top-level, daemon-owned state container.
//
// It is owned by the daemon goroutine; the reducer is the only code that
// changes it. Other goroutines see it only through StateSnapshot copies.
type DaemonState struct {
	Panel   PanelState
	Built   bool
	BuiltAt time.Time

	WriteFailures    int
	LastWriteFailure *WriteFailure
}

// WriteFailure describes the most recent sink write that failed.
type WriteFailure struct {
	Command string    `json:"command"`
	Error   string    `json:"error"`
	At      time.Time `json:"at"`
}

// RecordWriteFailure counts a failed sink write. Widget values are untouched.
func (s *DaemonState) RecordWriteFailure(ev SinkWriteFailed) {
	f := &WriteFailure{At: ev.At}
	if ev.Command != nil {
		f.Command = ev.Command.String()
	}
	if ev.Err != nil {
		f.Error = ev.Err.Error()
	}
	s.WriteFailures++
	s.LastWriteFailure = f
}

// SetPanel replaces the screen with a freshly built one.
func (s *DaemonState) SetPanel(p PanelState, now time.Time) {
	s.Panel = p
	s.Built = true
	s.BuiltAt = now
}

// Preference returns the on-screen state of key.
func (s *DaemonState) Preference(key string) (PreferenceState, bool) {
	if s.Panel.Prefs == nil {
		return PreferenceState{}, false
	}
	p, ok := s.Panel.Prefs[key]
	return p, ok
}

// SetPreference stores the widget state of p.Key.
func (s *DaemonState) SetPreference(p PreferenceState) {
	if s.Panel.Prefs == nil {
		s.Panel.Prefs = make(map[string]PreferenceState)
	}
	if _, ok := s.Panel.Prefs[p.Key]; !ok {
		s.Panel.Order = append(s.Panel.Order, p.Key)
	}
	s.Panel.Prefs[p.Key] = p
}

// Snapshot copies the visible screen in screen order.
func (s *DaemonState) Snapshot() StateSnapshot {
	snap := StateSnapshot{
		Device:        s.Panel.Device,
		Built:         s.Built,
		BuiltAt:       s.BuiltAt,
		WriteFailures: s.WriteFailures,
		Preferences:   make([]PreferenceState, 0, len(s.Panel.Order)),
	}
	if s.LastWriteFailure != nil {
		f := *s.LastWriteFailure
		snap.LastWriteFailure = &f
	}
	for _, key := range s.Panel.Order {
		p, ok := s.Panel.Prefs[key]
		if !ok || p.Removed {
			continue
		}
		if p.Entries != nil {
			p.Entries = append([]ListEntry(nil), p.Entries...)
		}
		snap.Preferences = append(snap.Preferences, p)
	}
	return snap
}
