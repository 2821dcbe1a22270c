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

package bridge

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/necromancy/node/model"
	"github.com/necromancy/node/pkg/environment"
)

// Open selects the bridge for the given GPIO configuration.
// When the selected hardware driver cannot be initialized, a warning is
// logged and a virtual bridge is returned instead.
func Open(cfg model.GPIOConfig, log zerolog.Logger) (API, error) {
	driver := cfg.Driver
	if !cfg.IsEnabled() {
		log.Info().Msg("GPIO disabled, using simulated pins")
		driver = model.DriverSimulated
	}
	if driver == "" || driver == model.DriverAuto {
		driver = environment.AutoDetectDriver(log)
		log.Info().Str("driver", string(driver)).Msg("Auto detected pin driver")
	}

	var api API
	var err error
	switch driver {
	case model.DriverSimulated:
		api = NewVirtualBridge()
	case model.DriverSysfs:
		api, err = NewSysfsBridge(log)
	case model.DriverPeriph:
		api, err = NewPeriphBridge(log)
	default:
		return nil, errors.Wrapf(model.ConfigError, "unknown pin driver '%s'", driver)
	}
	if err != nil {
		return Fallback(string(driver), err, log), nil
	}
	openTotal.WithLabelValues(api.Name()).Inc()
	return api, nil
}

// Fallback logs the failure of a hardware driver and returns a
// virtual bridge to use instead.
func Fallback(driver string, cause error, log zerolog.Logger) *VirtualBridge {
	log.Warn().Err(cause).
		Str("driver", driver).
		Msg("Pin driver failed, falling back to simulation")
	fallbackTotal.Inc()
	api := NewVirtualBridge()
	openTotal.WithLabelValues(api.Name()).Inc()
	return api
}
