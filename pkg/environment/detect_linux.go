//    Copyright 2026 The Necromancy Authors
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

//go:build linux

package environment

import (
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/necromancy/node/model"
)

var (
	// Device nodes that indicate accessible GPIO hardware
	gpioDevices = []string{
		"/dev/gpiomem",
		"/dev/gpiochip0",
	}
	sysfsGPIO = "/sys/class/gpio/export"
)

// AutoDetectDriver detects the default pin driver based on the environment.
func AutoDetectDriver(log zerolog.Logger) model.DriverType {
	var name unix.Utsname
	release := ""
	if err := unix.Uname(&name); err == nil {
		release = strings.TrimRight(string(name.Release[:]), "\x00")
	}
	for _, dev := range gpioDevices {
		if unix.Access(dev, unix.R_OK|unix.W_OK) == nil {
			log.Debug().
				Str("device", dev).
				Str("release", release).
				Msg("Detected GPIO device")
			return model.DriverPeriph
		}
	}
	if unix.Access(sysfsGPIO, unix.W_OK) == nil {
		log.Debug().
			Str("release", release).
			Msg("Detected sysfs GPIO interface")
		return model.DriverSysfs
	}
	log.Debug().
		Str("release", release).
		Msg("No GPIO hardware detected")
	return model.DriverSimulated
}
