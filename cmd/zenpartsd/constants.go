package main

import "time"

// Preference keys, as used by the settings screen and every client surface.
const (
	PrefTorchBrightness = "torch_brightness"
	PrefHeadphoneGain   = "headphone_gain"
	PrefMicrophoneGain  = "microphone_gain"
	PrefVibStrength     = "vib_strength"
	PrefBacklightDimmer = "backlight_dimmer"
	PrefGPUBoost        = "gpuboost"
	PrefCPUBoost        = "cpuboost"
	PrefDeviceKCal      = "device_kcal"
)

// Preference categories (screen sections).
const (
	CategoryTorch    = "torch"
	CategoryAudio    = "audio"
	CategoryDisplay  = "display"
	CategoryVibrator = "vibrator"
	CategoryBoost    = "boost"
)

// Sysfs nodes. They are absolute on the device and joined under the configured
// sysfs root, so a fake tree can stand in for /sys.
const (
	torch1BrightnessPath = "/sys/devices/soc/800f000.qcom," +
		"spmi/spmi-0/spmi0-03/800f000.qcom,spmi:qcom,pm660l@3:qcom,leds@d300/leds/led:torch_0/max_brightness"
	torch2BrightnessPath = "/sys/devices/soc/800f000.qcom," +
		"spmi/spmi-0/spmi0-03/800f000.qcom,spmi:qcom,pm660l@3:qcom,leds@d300/leds/led:torch_1/max_brightness"

	headphoneGainPath    = "/sys/kernel/sound_control/headphone_gain"
	microphoneGainPath   = "/sys/kernel/sound_control/mic_gain"
	backlightDimmerPath  = "/sys/module/mdss_fb/parameters/backlight_dimmer"
	vibratorStrengthPath = "/sys/devices/virtual/timed_output/vibrator/vtg_level"
)

// Seek bar ranges of the stock preference screen.
var (
	torchBrightnessBounds = Bounds{Min: 0, Max: 500}
	audioGainBounds       = Bounds{Min: -10, Max: 20}
	vibStrengthBounds     = Bounds{Min: 116, Max: 3596}
)

// System properties.
const (
	gpuBoostProperty     = "persist.zenparts.gpu_profile"
	cpuBoostProperty     = "persist.zenparts.cpu_profile"
	buildProductProperty = "ro.build.product"

	defaultBoostProfile = "0"
	unknownDevice       = "unknown"
)

// KCal colour calibration screen.
const (
	defaultKCalComponent = "com.asus.zenparts/.kcal.KCalSettingsActivity"
)

const (
	defaultIPCSocketPath    = "/tmp/zenparts.sock"
	defaultHTTPListenAddr   = "127.0.0.1:8765"
	defaultCommandTimeoutMS = 2000

	// requestTimeout bounds how long a transport waits for the daemon loop to answer.
	requestTimeout = 3 * time.Second

	// eventQueueSize is the buffer of the central event channel.
	eventQueueSize = 64
)
