package main

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// builtState returns daemon state holding a panel built against the full device.
func builtState(t *testing.T) *DaemonState {
	t.Helper()
	fs := newTestSysfs(t, fullDeviceNodes())
	env := testEnv(fs, newFakeProps(), fakePackages{"com.asus.zenparts": true}, nil)
	s := &DaemonState{}
	s.SetPanel(BuildPanel(testBindings(), env, testLogger()), testNow)
	return s
}

// replyErr returns the error carried by the last CmdReply in cmds.
func replyErr(t *testing.T, cmds []Command) error {
	t.Helper()
	for i := len(cmds) - 1; i >= 0; i-- {
		if r, ok := cmds[i].(CmdReply); ok {
			return r.Err
		}
	}
	t.Fatalf("no CmdReply in %v", cmds)
	return nil
}

func writes(cmds []Command) []CmdWriteFile {
	var out []CmdWriteFile
	for _, c := range cmds {
		if w, ok := c.(CmdWriteFile); ok {
			out = append(out, w)
		}
	}
	return out
}

func TestReduce_TorchWritesBothNodes(t *testing.T) {
	s := builtState(t)
	reply := make(chan error, 1)

	rr := Reduce(s, PreferenceChange{Key: PrefTorchBrightness, Value: json.Number("42"), Reply: reply}, testBindings())

	got := writes(rr.Commands)
	if len(got) != 2 {
		t.Fatalf("got %d writes, want 2: %v", len(got), rr.Commands)
	}
	if got[0] != (CmdWriteFile{Node: torch1BrightnessPath, Payload: "42"}) ||
		got[1] != (CmdWriteFile{Node: torch2BrightnessPath, Payload: "42"}) {
		t.Fatalf("unexpected writes: %v", got)
	}
	if err := replyErr(t, rr.Commands); err != nil {
		t.Fatalf("reply error: %v", err)
	}
	p, _ := rr.State.Preference(PrefTorchBrightness)
	if p.Value != 42 || p.Summary != "42" {
		t.Fatalf("widget value=%v summary=%q, want 42", p.Value, p.Summary)
	}
	if len(rr.Broadcasts) != 1 {
		t.Fatalf("got %d broadcasts, want 1", len(rr.Broadcasts))
	}
}

func TestReduce_ReplyFollowsWrites(t *testing.T) {
	s := builtState(t)
	reply := make(chan error, 1)

	rr := Reduce(s, PreferenceChange{Key: PrefMicrophoneGain, Value: 7, Reply: reply}, testBindings())

	if len(rr.Commands) != 2 {
		t.Fatalf("got %d commands, want write + reply: %v", len(rr.Commands), rr.Commands)
	}
	if _, ok := rr.Commands[0].(CmdWriteFile); !ok {
		t.Fatalf("first command = %v, want the sysfs write", rr.Commands[0])
	}
	if _, ok := rr.Commands[1].(CmdReply); !ok {
		t.Fatalf("last command = %v, want the reply", rr.Commands[1])
	}
}

func TestReduce_HeadphoneGainDoubled(t *testing.T) {
	s := builtState(t)

	rr := Reduce(s, PreferenceChange{Key: PrefHeadphoneGain, Value: 12.0}, testBindings())

	got := writes(rr.Commands)
	if len(got) != 1 || got[0].Node != headphoneGainPath || got[0].Payload != "12 12" {
		t.Fatalf("unexpected writes: %v", got)
	}
}

func TestReduce_BoostSetsPropertyAndSummary(t *testing.T) {
	s := builtState(t)
	reply := make(chan error, 1)

	rr := Reduce(s, PreferenceChange{Key: PrefCPUBoost, Value: "2", Reply: reply}, testBindings())

	if err := replyErr(t, rr.Commands); err != nil {
		t.Fatalf("reply error: %v", err)
	}
	var set *CmdSetProperty
	for _, c := range rr.Commands {
		if sp, ok := c.(CmdSetProperty); ok {
			set = &sp
		}
	}
	if set == nil || set.Key != cpuBoostProperty || set.Value != "2" {
		t.Fatalf("property command = %v, want %s=2", set, cpuBoostProperty)
	}
	p, _ := rr.State.Preference(PrefCPUBoost)
	if p.Value != "2" || p.Summary != "Battery saving" {
		t.Fatalf("widget value=%v summary=%q, want 2/Battery saving", p.Value, p.Summary)
	}
}

func TestReduce_BoostRejectsUnknownOption(t *testing.T) {
	s := builtState(t)
	before, _ := s.Preference(PrefGPUBoost)

	rr := Reduce(s, PreferenceChange{Key: PrefGPUBoost, Value: "9", Reply: make(chan error, 1)}, testBindings())

	if err := replyErr(t, rr.Commands); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("reply error = %v, want ErrInvalidValue", err)
	}
	if len(rr.Commands) != 1 {
		t.Fatalf("rejected change produced side effects: %v", rr.Commands)
	}
	after, _ := rr.State.Preference(PrefGPUBoost)
	if after.Value != before.Value || after.Summary != before.Summary {
		t.Fatalf("rejected change altered widget: %+v", after)
	}
	if len(rr.Broadcasts) != 0 {
		t.Fatalf("rejected change broadcast: %v", rr.Broadcasts)
	}
}

func TestReduce_BacklightSwitch(t *testing.T) {
	s := builtState(t)

	rr := Reduce(s, PreferenceChange{Key: PrefBacklightDimmer, Value: true}, testBindings())

	got := writes(rr.Commands)
	if len(got) != 1 || got[0].Payload != "Y" {
		t.Fatalf("unexpected writes: %v", got)
	}
}

func TestReduce_ChangeErrors(t *testing.T) {
	nodes := fullDeviceNodes()
	delete(nodes, vibratorStrengthPath)
	delete(nodes, backlightDimmerPath)
	fs := newTestSysfs(t, nodes)
	s := &DaemonState{}
	s.SetPanel(BuildPanel(testBindings(), testEnv(fs, newFakeProps(), nil, nil), testLogger()), testNow)
	full := builtState(t)

	tests := []struct {
		name  string
		state *DaemonState
		ev    PreferenceChange
		want  error
	}{
		{"not built", &DaemonState{}, PreferenceChange{Key: PrefTorchBrightness, Value: 1}, ErrPanelNotBuilt},
		{"unknown key", s, PreferenceChange{Key: "nope", Value: 1}, ErrUnknownPreference},
		{"removed widget", s, PreferenceChange{Key: PrefBacklightDimmer, Value: true}, ErrUnknownPreference},
		{"disabled", s, PreferenceChange{Key: PrefVibStrength, Value: 200}, ErrPreferenceDisabled},
		{"not an integer", s, PreferenceChange{Key: PrefTorchBrightness, Value: "bright"}, ErrInvalidValue},
		{"fractional", s, PreferenceChange{Key: PrefTorchBrightness, Value: 1.5}, ErrInvalidValue},
		{"float beyond int64", s, PreferenceChange{Key: PrefHeadphoneGain, Value: 1e20}, ErrInvalidValue},
		{"number beyond int64", s, PreferenceChange{Key: PrefHeadphoneGain, Value: json.Number("99999999999999999999")}, ErrInvalidValue},
		{"list option beyond int64", s, PreferenceChange{Key: PrefGPUBoost, Value: 1e20}, ErrInvalidValue},
		{"below seek bar range", s, PreferenceChange{Key: PrefTorchBrightness, Value: -50}, ErrInvalidValue},
		{"above seek bar range", s, PreferenceChange{Key: PrefMicrophoneGain, Value: 21}, ErrInvalidValue},
		{"headphone below range", s, PreferenceChange{Key: PrefHeadphoneGain, Value: json.Number("-11")}, ErrInvalidValue},
		{"vibrator below range", full, PreferenceChange{Key: PrefVibStrength, Value: 115}, ErrInvalidValue},
		{"not a boolean", full, PreferenceChange{Key: PrefBacklightDimmer, Value: "maybe"}, ErrInvalidValue},
		{"action has no value", s, PreferenceChange{Key: PrefDeviceKCal, Value: 1}, ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := tt.ev
			ev.Reply = make(chan error, 1)
			rr := Reduce(tt.state, ev, testBindings())
			if err := replyErr(t, rr.Commands); !errors.Is(err, tt.want) {
				t.Fatalf("reply error = %v, want %v", err, tt.want)
			}
			if len(writes(rr.Commands)) != 0 || len(rr.Broadcasts) != 0 {
				t.Fatalf("rejected change produced output: %v %v", rr.Commands, rr.Broadcasts)
			}
		})
	}
}

func TestReduce_SeekBarRangeInclusive(t *testing.T) {
	s := builtState(t)
	for _, tc := range []struct {
		key  string
		v    int
		want string
	}{
		{PrefTorchBrightness, 0, "0"},
		{PrefTorchBrightness, 500, "500"},
		{PrefHeadphoneGain, -10, "-10 -10"},
		{PrefMicrophoneGain, 20, "20"},
		{PrefVibStrength, 3596, "3596"},
	} {
		rr := Reduce(s, PreferenceChange{Key: tc.key, Value: tc.v, Reply: make(chan error, 1)}, testBindings())
		if err := replyErr(t, rr.Commands); err != nil {
			t.Fatalf("%s=%d rejected: %v", tc.key, tc.v, err)
		}
		if w := writes(rr.Commands); len(w) == 0 || w[0].Payload != tc.want {
			t.Fatalf("%s=%d wrote %v, want %q", tc.key, tc.v, w, tc.want)
		}
	}
}

func TestReduce_ClickRemovedOrDisabled(t *testing.T) {
	var s DaemonState
	s.SetPanel(PanelState{
		Prefs: map[string]PreferenceState{
			PrefDeviceKCal: {Key: PrefDeviceKCal, Kind: KindAction, Removed: true},
		},
		Order: []string{PrefDeviceKCal},
	}, testNow)

	rr := Reduce(&s, PreferenceClick{Key: PrefDeviceKCal, Reply: make(chan error, 1)}, testBindings())
	if err := replyErr(t, rr.Commands); !errors.Is(err, ErrUnknownPreference) {
		t.Fatalf("click on removed widget = %v, want ErrUnknownPreference", err)
	}

	s.SetPreference(PreferenceState{Key: PrefDeviceKCal, Kind: KindAction})
	rr = Reduce(&s, PreferenceClick{Key: PrefDeviceKCal, Reply: make(chan error, 1)}, testBindings())
	if err := replyErr(t, rr.Commands); !errors.Is(err, ErrPreferenceDisabled) {
		t.Fatalf("click on disabled widget = %v, want ErrPreferenceDisabled", err)
	}
	for _, c := range rr.Commands {
		if _, ok := c.(CmdLaunchActivity); ok {
			t.Fatalf("rejected click launched an activity")
		}
	}
}

func TestReduce_Click(t *testing.T) {
	s := builtState(t)

	rr := Reduce(s, PreferenceClick{Key: PrefDeviceKCal, Reply: make(chan error, 1)}, testBindings())
	if err := replyErr(t, rr.Commands); err != nil {
		t.Fatalf("reply error: %v", err)
	}
	launch, ok := rr.Commands[0].(CmdLaunchActivity)
	if !ok || launch.Component != defaultKCalComponent {
		t.Fatalf("first command = %v, want launch of %s", rr.Commands[0], defaultKCalComponent)
	}

	rr = Reduce(s, PreferenceClick{Key: PrefTorchBrightness, Reply: make(chan error, 1)}, testBindings())
	if err := replyErr(t, rr.Commands); !errors.Is(err, ErrNotClickable) {
		t.Fatalf("reply error = %v, want ErrNotClickable", err)
	}
}

func TestReduce_RebuildRepliesAfterPanelBuilt(t *testing.T) {
	s := &DaemonState{}
	reply := make(chan error, 1)

	rr := Reduce(s, RebuildPanel{Reply: reply}, testBindings())
	if len(rr.Commands) != 1 {
		t.Fatalf("got %v, want a single CmdBuildPanel", rr.Commands)
	}
	build, ok := rr.Commands[0].(CmdBuildPanel)
	if !ok {
		t.Fatalf("command = %v, want CmdBuildPanel", rr.Commands[0])
	}

	panel := BuildPanel(testBindings(), nil, testLogger())
	rr = Reduce(s, PanelBuilt{Panel: panel, Reply: build.Reply, At: testNow}, testBindings())
	if !rr.State.Built || !rr.State.BuiltAt.Equal(testNow) {
		t.Fatalf("state not marked built: %+v", rr.State)
	}
	if err := replyErr(t, rr.Commands); err != nil {
		t.Fatalf("reply error: %v", err)
	}
	if len(rr.Broadcasts) != 1 {
		t.Fatalf("got %d broadcasts, want panel_rebuilt", len(rr.Broadcasts))
	}
	if _, ok := rr.Broadcasts[0].(BroadcastPanelRebuilt); !ok {
		t.Fatalf("broadcast = %T, want BroadcastPanelRebuilt", rr.Broadcasts[0])
	}
}

func TestReduce_SinkWriteFailedKeepsState(t *testing.T) {
	s := builtState(t)
	rr := Reduce(s, PreferenceChange{Key: PrefTorchBrightness, Value: 10}, testBindings())
	s = rr.State

	failedAt := testNow.Add(time.Second)
	cmd := CmdWriteFile{Node: torch1BrightnessPath, Payload: "10"}
	rr = Reduce(s, SinkWriteFailed{Command: cmd, Err: errors.New("EIO"), At: failedAt}, testBindings())

	if len(rr.Commands) != 0 || len(rr.Broadcasts) != 0 {
		t.Fatalf("write failure produced output: %v %v", rr.Commands, rr.Broadcasts)
	}
	if p, _ := rr.State.Preference(PrefTorchBrightness); p.Value != 10 {
		t.Fatalf("widget value = %v, want 10 kept after failed write", p.Value)
	}

	snap := rr.State.Snapshot()
	if snap.WriteFailures != 1 || snap.LastWriteFailure == nil {
		t.Fatalf("snapshot failures = %d %+v, want 1 recorded", snap.WriteFailures, snap.LastWriteFailure)
	}
	if f := snap.LastWriteFailure; f.Command != cmd.String() || f.Error != "EIO" || !f.At.Equal(failedAt) {
		t.Fatalf("last failure = %+v", f)
	}

	rr = Reduce(rr.State, SinkWriteFailed{Command: CmdSetProperty{Key: gpuBoostProperty, Value: "1"}, Err: errors.New("denied")}, testBindings())
	if rr.State.WriteFailures != 2 || rr.State.LastWriteFailure.Error != "denied" {
		t.Fatalf("second failure not recorded: %+v", rr.State.LastWriteFailure)
	}
}

func TestReduce_TimedEventStampsBroadcast(t *testing.T) {
	s := builtState(t)
	at := testNow.Add(time.Minute)

	rr := Reduce(s, TimedEvent{Event: PreferenceChange{Key: PrefVibStrength, Value: 1500}, At: at}, testBindings())

	if len(rr.Broadcasts) != 1 {
		t.Fatalf("got %d broadcasts, want 1", len(rr.Broadcasts))
	}
	b, ok := rr.Broadcasts[0].(BroadcastPreferenceChanged)
	if !ok || !b.At.Equal(at) {
		t.Fatalf("broadcast = %+v, want preference change at %v", rr.Broadcasts[0], at)
	}
	if b.Preference.Value != 1500 {
		t.Fatalf("broadcast value = %v, want 1500", b.Preference.Value)
	}
}
