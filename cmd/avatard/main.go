// Command avatard keeps an avatar skeleton in sync with the IMU sensors
// driving its bones.
//
// Sensor drivers are reached over MQTT (see package mqttdriver). Their readings
// are published on the avatar.sensor-updated aspect and tracked from the
// interest of the same name, bone changes are broadcast on the
// avatar.bone-changed aspect, and binding requests are served from the
// avatar.set-sensor interest. The rest of the configuration is read from the
// environment (AVATAR_*).
package main

import (
	"github.com/danielorbach/go-component/loader"
)

func main() {
	loader.ParseFlags(&Component)
}
