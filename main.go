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

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/necromancy/node/model"
	"github.com/necromancy/node/pkg/bus"
	"github.com/necromancy/node/pkg/config"
	"github.com/necromancy/node/pkg/logging"
	"github.com/necromancy/node/pkg/server"
	"github.com/necromancy/node/pkg/service"
	"github.com/necromancy/node/pkg/service/bridge"
	"github.com/necromancy/node/pkg/service/trigger"
)

const (
	projectName = "Necromancy Node"
)

var (
	projectVersion = "dev"
	projectBuild   = "dev"
	maskAny        = errors.WithStack
)

func main() {
	var configPath string
	var levelFlag string
	var driverFlag string
	var busFlag string
	var simulate bool
	var showVersion bool

	pflag.StringVarP(&configPath, "config", "c", "config.json", "Path of the configuration file (JSON or YAML)")
	pflag.StringVarP(&levelFlag, "level", "l", "", "Set log level (overrides logging.level)")
	pflag.StringVar(&driverFlag, "driver", "", "Pin driver to use (auto|sysfs|periph|simulated)")
	pflag.StringVar(&busFlag, "bus", "", "Message bus to use (nats|mqtt|loopback)")
	pflag.BoolVar(&simulate, "simulate", false, "Do not access GPIO hardware")
	pflag.BoolVar(&showVersion, "version", false, "Show version and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("%s (version %s build %s)\n", projectName, projectVersion, projectBuild)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		Exitf("Failed to load configuration: %v\n", err)
	}
	if driverFlag != "" {
		cfg.GPIO.Driver = model.DriverType(driverFlag)
	}
	if simulate {
		cfg.GPIO.Driver = model.DriverSimulated
	}
	if busFlag != "" {
		cfg.Bus.Type = model.BusType(busFlag)
	}
	if levelFlag != "" {
		cfg.Logging.Level = levelFlag
	}
	if err := cfg.Validate(); err != nil {
		Exitf("Invalid configuration: %v\n", err)
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		Exitf("Invalid log level: %v\n", err)
	}

	// Prepare to shutdown in a controlled manor
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var busWriter logging.BusWriter
	var logger zerolog.Logger
	if cfg.Logging.Subject != "" {
		busWriter = logging.NewBusWriter(ctx)
		logger = logging.NewLogger(os.Stderr, cfg.Logging.Format, level, busWriter)
	} else {
		logger = logging.NewLogger(os.Stderr, cfg.Logging.Format, level)
	}

	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	if err := run(ctx, cfg, logger, busWriter); err != nil {
		logger.Error().Err(err).Msg("Node failed")
		Exitf("Node failed: %v\n", err)
	}
}

// run the node until the given context is canceled.
func run(ctx context.Context, cfg *model.Config, logger zerolog.Logger, busWriter logging.BusWriter) error {
	startedAt := time.Now()
	logger.Info().
		Str("version", projectVersion).
		Str("build", projectBuild).
		Msgf("Starting %s", projectName)

	pins, err := cfg.PinSpecs()
	if err != nil {
		return maskAny(err)
	}
	routes, err := cfg.Routes()
	if err != nil {
		return maskAny(err)
	}

	br, err := bridge.Open(cfg.GPIO, logger)
	if err != nil {
		return maskAny(err)
	}
	conn, err := bus.Connect(cfg.Bus, logger)
	if err != nil {
		br.Close()
		return maskAny(err)
	}
	defer conn.Close()
	if busWriter != nil {
		busWriter.SetDestination(cfg.Logging.Subject, conn)
		busWriter.Enable(true)
	}

	svc, err := service.NewService(service.Config{
		Pins:          pins,
		Routes:        routes,
		MaxInFlight:   cfg.Dispatch.MaxInFlight,
		DrainTimeout:  model.Seconds(cfg.Dispatch.DrainTimeout),
		PulseShutdown: cfg.Dispatch.PulseShutdown,
		StateSubject:  cfg.Dispatch.StateSubject,
	}, service.Dependencies{
		Logger:  logger,
		Bridge:  br,
		Bus:     conn,
		Trigger: trigger.NewLoggingTrigger(cfg.Services, logger),
	})
	if err != nil {
		br.Close()
		return maskAny(err)
	}

	var httpServer *server.Server
	if cfg.Metrics.Port > 0 {
		httpServer, err = server.New(server.Config{
			Host: cfg.Metrics.Host,
			Port: cfg.Metrics.Port,
		}, logger, svc)
		if err != nil {
			br.Close()
			return maskAny(err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(ctx) })
	if httpServer != nil {
		g.Go(func() error { return httpServer.Run(ctx) })
	}
	err = g.Wait()

	st := svc.Status()
	logger.Info().
		Str("uptime", strings.TrimSpace(humanize.RelTime(startedAt, time.Now(), "", ""))).
		Str("handled", humanize.Comma(int64(st.Handled))).
		Str("dropped", humanize.Comma(int64(st.Dropped))).
		Msg("Node stopped")
	return err
}

// Print the given error message and exit with code 1
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
