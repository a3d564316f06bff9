package main

import (
	"testing"
)

func testEnv(fs Sysfs, props *fakeProps, pkgs fakePackages, l *fakeLauncher) *PanelEnv {
	env := &PanelEnv{Sysfs: fs, Packages: pkgs}
	if props != nil {
		env.Props = props
	}
	if l != nil {
		env.Launcher = l
	}
	return env
}

func TestBuildPanel_AllSinksWritable(t *testing.T) {
	fs := newTestSysfs(t, fullDeviceNodes())
	props := newFakeProps(buildProductProperty, "X00TD", gpuBoostProperty, "1")
	env := testEnv(fs, props, fakePackages{"com.asus.zenparts": true}, nil)

	panel := BuildPanel(testBindings(), env, testLogger())

	if panel.Device != "X00TD" {
		t.Fatalf("device = %q, want X00TD", panel.Device)
	}
	if len(panel.Order) != 8 {
		t.Fatalf("order has %d widgets, want 8: %v", len(panel.Order), panel.Order)
	}
	for _, key := range panel.Order {
		p := panel.Prefs[key]
		if !p.Enabled || p.Removed {
			t.Errorf("%s: enabled=%v removed=%v, want enabled", key, p.Enabled, p.Removed)
		}
	}

	torch := panel.Prefs[PrefTorchBrightness]
	if torch.Value != 100 || torch.Summary != "100" {
		t.Errorf("torch value=%v summary=%q, want 100", torch.Value, torch.Summary)
	}
	hp := panel.Prefs[PrefHeadphoneGain]
	if hp.Value != 5 {
		t.Errorf("headphone value=%v, want 5 (first channel)", hp.Value)
	}
	gpu := panel.Prefs[PrefGPUBoost]
	if gpu.Value != "1" || gpu.Summary != "Performance" {
		t.Errorf("gpuboost value=%v summary=%q, want 1/Performance", gpu.Value, gpu.Summary)
	}
	cpu := panel.Prefs[PrefCPUBoost]
	if cpu.Value != defaultBoostProfile || cpu.Summary != "Default" {
		t.Errorf("cpuboost value=%v summary=%q, want default profile", cpu.Value, cpu.Summary)
	}
	if dim := panel.Prefs[PrefBacklightDimmer]; dim.Value != false {
		t.Errorf("backlight dimmer value=%v, want false", dim.Value)
	}
}

func TestBuildPanel_UnwritableSinkDisablesWidget(t *testing.T) {
	tests := []struct {
		key     string
		missing []string
	}{
		{PrefTorchBrightness, []string{torch2BrightnessPath}},
		{PrefHeadphoneGain, []string{headphoneGainPath}},
		{PrefMicrophoneGain, []string{microphoneGainPath}},
		{PrefVibStrength, []string{vibratorStrengthPath}},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			nodes := fullDeviceNodes()
			for _, n := range tt.missing {
				delete(nodes, n)
			}
			fs := newTestSysfs(t, nodes)

			panel := BuildPanel(testBindings(), testEnv(fs, newFakeProps(), nil, nil), testLogger())

			p := panel.Prefs[tt.key]
			if p.Enabled || p.Removed {
				t.Fatalf("%s: enabled=%v removed=%v, want disabled", tt.key, p.Enabled, p.Removed)
			}
			for _, other := range panel.Order {
				if other != tt.key && !panel.Prefs[other].Enabled {
					t.Errorf("%s disabled by a missing %s node", other, tt.key)
				}
			}
		})
	}
}

func TestBuildPanel_BacklightRemovedWhenAbsent(t *testing.T) {
	nodes := fullDeviceNodes()
	delete(nodes, backlightDimmerPath)
	fs := newTestSysfs(t, nodes)

	var s DaemonState
	s.SetPanel(BuildPanel(testBindings(), testEnv(fs, newFakeProps(), nil, nil), testLogger()), testNow)

	if p := s.Panel.Prefs[PrefBacklightDimmer]; !p.Removed || p.Enabled {
		t.Fatalf("backlight dimmer = %+v, want removed", p)
	}
	snap := s.Snapshot()
	if _, ok := snap.Visible(PrefBacklightDimmer); ok {
		t.Fatalf("removed widget present in snapshot")
	}
	if len(snap.Preferences) != 7 {
		t.Fatalf("snapshot has %d preferences, want 7", len(snap.Preferences))
	}
}

func TestBuildPanel_KCalEnabledWithoutPackageCheck(t *testing.T) {
	fs := newTestSysfs(t, fullDeviceNodes())

	panel := BuildPanel(testBindings(), testEnv(fs, newFakeProps(), fakePackages{}, nil), testLogger())
	if !panel.Prefs[PrefDeviceKCal].Enabled {
		t.Fatalf("kcal disabled by default")
	}
}

func TestBuildPanel_KCalRequiresPackageWhenConfigured(t *testing.T) {
	fs := newTestSysfs(t, fullDeviceNodes())
	b := NewBindings(DefaultTunables(defaultKCalComponent, true, DefaultGPUBoostEntries(), DefaultCPUBoostEntries()))

	panel := BuildPanel(b, testEnv(fs, newFakeProps(), fakePackages{}, nil), testLogger())
	if panel.Prefs[PrefDeviceKCal].Enabled {
		t.Fatalf("kcal enabled without its package installed")
	}

	panel = BuildPanel(b, testEnv(fs, newFakeProps(), fakePackages{"com.asus.zenparts": true}, nil), testLogger())
	if !panel.Prefs[PrefDeviceKCal].Enabled {
		t.Fatalf("kcal disabled with its package installed")
	}
}

func TestBuildPanel_SeekBarsCarryBounds(t *testing.T) {
	panel := BuildPanel(testBindings(), nil, nil)
	want := map[string]Bounds{
		PrefTorchBrightness: torchBrightnessBounds,
		PrefHeadphoneGain:   audioGainBounds,
		PrefMicrophoneGain:  audioGainBounds,
		PrefVibStrength:     vibStrengthBounds,
	}
	for _, key := range panel.Order {
		p := panel.Prefs[key]
		b, seek := want[key]
		switch {
		case seek && (p.Bounds == nil || *p.Bounds != b):
			t.Errorf("%s bounds = %v, want %v", key, p.Bounds, b)
		case !seek && p.Bounds != nil:
			t.Errorf("%s has bounds %v", key, *p.Bounds)
		}
	}
}

func TestBuildPanel_UnknownDeviceWithoutProperty(t *testing.T) {
	panel := BuildPanel(testBindings(), testEnv(newTestSysfs(t, nil), newFakeProps(), nil, nil), testLogger())
	if panel.Device != unknownDevice {
		t.Fatalf("device = %q, want %q", panel.Device, unknownDevice)
	}
	if panel.Prefs[PrefTorchBrightness].Value != nil {
		t.Fatalf("missing node produced a value: %v", panel.Prefs[PrefTorchBrightness].Value)
	}
}

func TestBuildPanel_NilEnv(t *testing.T) {
	panel := BuildPanel(testBindings(), nil, nil)
	if !panel.Prefs[PrefGPUBoost].Enabled {
		t.Fatalf("property-backed list must be enabled without platform access")
	}
	if panel.Prefs[PrefTorchBrightness].Enabled {
		t.Fatalf("node-backed widget enabled without platform access")
	}
	if got := panel.Prefs[PrefGPUBoost].Value; got != defaultBoostProfile {
		t.Fatalf("gpuboost value = %v, want %q", got, defaultBoostProfile)
	}
}
