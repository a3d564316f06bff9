package main

import (
	"fmt"
	"time"
)

// This file implements the reducer-style architecture building blocks:
//
//   - Events: inputs to the reducer (client actions, sink observations, command failures)
//   - Commands: side effects requested by the reducer (see commands.go)
//   - Broadcasts: state changes pushed to websocket clients
//   - Reduce(): computes next state + commands, without performing I/O
//
// The daemon loop is responsible for executing Commands and feeding observations back as Events.

// ==============================
// Events
// ==============================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// TimedEvent stamps a payload event with the time the daemon received it.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// PanelBuilt is emitted after CmdBuildPanel probed the sinks.
type PanelBuilt struct {
	Panel PanelState
	Reply chan<- error
	At    time.Time
}

func (PanelBuilt) eventMarker() {}

// SinkWriteFailed is emitted when a write command fails. Writes are
// best-effort: the widget keeps the new value and the failure is only
// counted in DaemonState.
type SinkWriteFailed struct {
	Command Command
	Err     error
	At      time.Time
}

func (SinkWriteFailed) eventMarker() {}

// ==============================
// Broadcasts
// ==============================

// StateBroadcast is an externally visible state change.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastPreferenceChanged is emitted when a widget accepted a new value.
type BroadcastPreferenceChanged struct {
	Preference PreferenceState
	At         time.Time
}

func (BroadcastPreferenceChanged) broadcastMarker() {}

// BroadcastPanelRebuilt is emitted when the screen was (re)built.
type BroadcastPanelRebuilt struct {
	Snapshot StateSnapshot
	At       time.Time
}

func (BroadcastPanelRebuilt) broadcastMarker() {}

// ==============================
// Reducer input/output
// ==============================

// ReduceResult is the output of Reduce(): next state plus Commands to execute
// in order and Broadcasts to publish.
type ReduceResult struct {
	State      *DaemonState
	Commands   []Command
	Broadcasts []StateBroadcast
}

// Reduce is the pure reducer:
//
// Rules:
// - Must not perform I/O
// - Must not block
// - Must not mutate anything outside the returned state
func Reduce(s *DaemonState, e Event, b Bindings) ReduceResult {
	if s == nil {
		s = &DaemonState{}
	}

	at := time.Now()
	if te, ok := e.(TimedEvent); ok {
		e = te.Event
		if !te.At.IsZero() {
			at = te.At
		}
	}

	var rr ReduceResult
	rr.State = s

	switch ev := e.(type) {
	case PreferenceChange:
		reduceChange(&rr, ev, b, at)

	case PreferenceClick:
		reduceClick(&rr, ev, b)

	case RebuildPanel:
		// The reply travels with the build and is sent once PanelBuilt is reduced.
		rr.Commands = append(rr.Commands, CmdBuildPanel{Reply: ev.Reply})

	case RequestStateSnapshot:
		if ev.Reply != nil {
			rr.Commands = append(rr.Commands, CmdPublishStateSnapshot{Reply: ev.Reply, Snapshot: s.Snapshot()})
		}

	case PanelBuilt:
		s.SetPanel(ev.Panel, ev.At)
		if ev.Reply != nil {
			rr.Commands = append(rr.Commands, CmdReply{Reply: ev.Reply})
		}
		rr.Broadcasts = append(rr.Broadcasts, BroadcastPanelRebuilt{Snapshot: s.Snapshot(), At: ev.At})

	case SinkWriteFailed:
		// The widget keeps its value; no retry, no rollback.
		if ev.At.IsZero() {
			ev.At = at
		}
		s.RecordWriteFailure(ev)

	default:
		// Unknown event type: no-op.
	}

	return rr
}

func reduceChange(rr *ReduceResult, ev PreferenceChange, b Bindings, at time.Time) {
	s := rr.State
	reply := func(err error) {
		if ev.Reply != nil {
			rr.Commands = append(rr.Commands, CmdReply{Reply: ev.Reply, Err: err})
		}
	}

	if !s.Built {
		reply(ErrPanelNotBuilt)
		return
	}
	t, ok := b.Lookup(ev.Key)
	p, onScreen := s.Preference(ev.Key)
	if !ok || !onScreen || p.Removed {
		reply(fmt.Errorf("%w: %s", ErrUnknownPreference, ev.Key))
		return
	}
	if !p.Enabled {
		reply(fmt.Errorf("%w: %s", ErrPreferenceDisabled, ev.Key))
		return
	}
	if t.Strategy == nil {
		reply(fmt.Errorf("%w: %s has no value", ErrInvalidValue, ev.Key))
		return
	}

	applied, err := t.Strategy.Apply(t, ev.Value)
	if err != nil {
		reply(fmt.Errorf("%s: %w", ev.Key, err))
		return
	}

	// Widget state first (value + summary), then the sink writes.
	p.Value = applied.Value
	p.Summary = applied.Summary
	s.SetPreference(p)

	rr.Commands = append(rr.Commands, applied.Commands...)
	reply(nil)
	rr.Broadcasts = append(rr.Broadcasts, BroadcastPreferenceChanged{Preference: p, At: at})
}

func reduceClick(rr *ReduceResult, ev PreferenceClick, b Bindings) {
	s := rr.State
	reply := func(err error) {
		if ev.Reply != nil {
			rr.Commands = append(rr.Commands, CmdReply{Reply: ev.Reply, Err: err})
		}
	}

	if !s.Built {
		reply(ErrPanelNotBuilt)
		return
	}
	t, ok := b.Lookup(ev.Key)
	p, onScreen := s.Preference(ev.Key)
	if !ok || !onScreen || p.Removed {
		reply(fmt.Errorf("%w: %s", ErrUnknownPreference, ev.Key))
		return
	}
	if t.Kind != KindAction {
		reply(fmt.Errorf("%w: %s", ErrNotClickable, ev.Key))
		return
	}
	if !p.Enabled {
		reply(fmt.Errorf("%w: %s", ErrPreferenceDisabled, ev.Key))
		return
	}

	rr.Commands = append(rr.Commands, CmdLaunchActivity{Component: t.Component})
	reply(nil)
}
