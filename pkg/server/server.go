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

package server

import (
	"context"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/necromancy/node/pkg/service"
)

// Config for the HTTP server.
type Config struct {
	// Host interface to listen on
	Host string
	// Port to listen on for HTTP requests
	Port int
}

// Server runs the HTTP server exposing metrics and health.
type Server struct {
	Config
	log     zerolog.Logger
	service Service
}

// Service provides the state of the node.
type Service interface {
	Status() service.Status
}

type healthResponse struct {
	service.Status
	Uptime  string `json:"uptime,omitempty"`
	Handled string `json:"handled_text"`
}

// New configures a new Server.
func New(cfg Config, log zerolog.Logger, svc Service) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, errors.Errorf("invalid port %d", cfg.Port)
	}
	return &Server{
		Config:  cfg,
		log:     log.With().Str("component", "server").Logger(),
		service: svc,
	}, nil
}

// handler builds the HTTP routes.
func (s *Server) handler() http.Handler {
	httpRouter := echo.New()
	httpRouter.HideBanner = true
	httpRouter.HidePort = true
	httpRouter.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	httpRouter.GET("/health", s.healthHandler)
	httpRouter.GET("/debug/pprof/*", echo.WrapHandler(http.HandlerFunc(pprof.Index)))
	httpRouter.GET("/debug/pprof/cmdline", echo.WrapHandler(http.HandlerFunc(pprof.Cmdline)))
	httpRouter.GET("/debug/pprof/profile", echo.WrapHandler(http.HandlerFunc(pprof.Profile)))
	httpRouter.GET("/debug/pprof/trace", echo.WrapHandler(http.HandlerFunc(pprof.Trace)))
	symbol := echo.WrapHandler(http.HandlerFunc(pprof.Symbol))
	httpRouter.GET("/debug/pprof/symbol", symbol)
	httpRouter.POST("/debug/pprof/symbol", symbol)
	return httpRouter
}

// Run the server until the given context is canceled.
func (s *Server) Run(ctx context.Context) error {
	log := s.log
	httpAddr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	httpLis, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on address %s", httpAddr)
	}
	httpSrv := http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Debug().Str("address", httpAddr).Msg("Serving HTTP")
	errs := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(httpLis); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
		close(errs)
	}()

	select {
	case <-ctx.Done():
	case err := <-errs:
		if err != nil {
			return errors.Wrap(err, "failed to serve HTTP")
		}
	}

	log.Info().Msg("Closing HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// healthHandler reports the state of the node.
// Responds with 503 unless the dispatch loop is running.
func (s *Server) healthHandler(c echo.Context) error {
	st := s.service.Status()
	resp := healthResponse{
		Status:  st,
		Handled: humanize.Comma(int64(st.Handled)),
	}
	if !st.StartedAt.IsZero() {
		resp.Uptime = strings.TrimSpace(humanize.RelTime(st.StartedAt, time.Now(), "", ""))
	}
	code := http.StatusOK
	if st.Phase != service.PhaseRunning {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}
