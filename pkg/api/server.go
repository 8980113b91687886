// Package api serves radio status and control over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/norasector/fmlive/pkg/receiver"
	"github.com/norasector/fmlive/pkg/receiver/device"
	"github.com/norasector/fmlive/pkg/util"
)

const shutdownTimeout = 5 * time.Second

// StatsSource reports pipeline counters, normally a *receiver.Receiver.
type StatsSource interface {
	Stats() receiver.Stats
}

// RadioStatus is the body of GET /api/radio.
type RadioStatus struct {
	Info   *device.Info        `json:"info,omitempty"`
	Config *device.RadioConfig `json:"config,omitempty"`
	Stats  *receiver.Stats     `json:"stats,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	radio  device.Radio
	stats  StatsSource
	srv    *http.Server
	logger zerolog.Logger
}

type ServerOption func(s *Server)

func WithLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithStats(stats StatsSource) ServerOption {
	return func(s *Server) {
		s.stats = stats
	}
}

func NewServer(port int, radio device.Radio, opts ...ServerOption) *Server {
	s := &Server{
		radio:  radio,
		srv:    &http.Server{Addr: fmt.Sprintf(":%d", port)},
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv.Handler = s.Handler()
	return s
}

// Handler returns the routes without starting a listener.
func (s *Server) Handler() http.Handler {
	handler := httprouter.New()
	handler.GET("/api/radio", s.getRadio)
	handler.PUT("/api/radio/frequency/:hz", s.putFrequency)
	handler.PUT("/api/radio/gain/lna/:db", s.putLNAGain)
	handler.PUT("/api/radio/gain/vga/:db", s.putVGAGain)
	handler.PUT("/api/radio/amp/:on", s.putAmp)
	handler.Handler(http.MethodGet, "/metrics", promhttp.Handler())
	return handler
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Stop(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("control server shutdown")
		}
	}()

	s.logger.Info().Str("addr", s.srv.Addr).Msg("control server listening")
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("error writing response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	status := http.StatusBadGateway
	switch {
	case device.IsConfigurationError(err):
		status = http.StatusBadRequest
	case errors.Is(err, device.ErrNotImplemented):
		status = http.StatusNotImplemented
	}
	s.logger.Warn().Err(err).Str("op", op).Int("status", status).Msg("control request failed")
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) status() RadioStatus {
	var ret RadioStatus
	if d, ok := s.radio.(device.Describer); ok {
		cfg := d.Config()
		ret.Config = &cfg
		if info, err := d.Info(); err == nil {
			ret.Info = &info
		} else {
			s.logger.Debug().Err(err).Msg("board info unavailable")
		}
	}
	if s.stats != nil {
		st := s.stats.Stats()
		ret.Stats = &st
	}
	return ret
}

func (s *Server) getRadio(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) putFrequency(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	hz, err := strconv.ParseUint(params.ByName("hz"), 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid frequency"})
		return
	}
	if err := s.radio.SetFrequency(hz); err != nil {
		s.writeError(w, "set frequency", err)
		return
	}
	s.logger.Info().Str("frequency", util.MHzToString(int(hz))).Msg("retuned")
	s.writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) gainController(w http.ResponseWriter) (device.GainController, bool) {
	gc, ok := s.radio.(device.GainController)
	if !ok {
		s.writeError(w, "gain", fmt.Errorf("radio has no gain control: %w", device.ErrNotImplemented))
	}
	return gc, ok
}

func (s *Server) parseGain(w http.ResponseWriter, params httprouter.Params) (uint8, bool) {
	db, err := strconv.ParseUint(params.ByName("db"), 10, 8)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid gain"})
		return 0, false
	}
	return uint8(db), true
}

func (s *Server) putLNAGain(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	gc, ok := s.gainController(w)
	if !ok {
		return
	}
	db, ok := s.parseGain(w, params)
	if !ok {
		return
	}
	if err := gc.SetLNAGain(db); err != nil {
		s.writeError(w, "set lna gain", err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) putVGAGain(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	gc, ok := s.gainController(w)
	if !ok {
		return
	}
	db, ok := s.parseGain(w, params)
	if !ok {
		return
	}
	if err := gc.SetVGAGain(db); err != nil {
		s.writeError(w, "set vga gain", err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) putAmp(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	gc, ok := s.gainController(w)
	if !ok {
		return
	}
	on, err := strconv.ParseBool(params.ByName("on"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid amp setting"})
		return
	}
	if err := gc.SetAmpEnable(on); err != nil {
		s.writeError(w, "set amp", err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.status())
}
