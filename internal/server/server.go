// Package server exposes the coordinator over HTTP: snapshot and
// per-register reads, verified writes, and decoded heating schedules.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/boilerlink/econetd/internal/econet/value"
	"github.com/boilerlink/econetd/internal/observability"
	"github.com/boilerlink/econetd/internal/regmap"
	"github.com/boilerlink/econetd/internal/schedule"
)

// Coordinator is the poll-engine surface the API serves from.
type Coordinator interface {
	Snapshot() map[string]value.Value
	SetValue(ctx context.Context, slug string, v value.Value) bool
	Active() []string
}

var (
	ErrUnknownRegister = errors.New("register not configured")
	ErrUnknownCircuit  = errors.New("unknown schedule circuit")
	ErrWriteRejected   = errors.New("device rejected write")
)

// Server is the HTTP front for exactly one device coordinator.
type Server struct {
	Addr    string
	coord   Coordinator
	regs    *regmap.Map
	router  *gin.Engine
	started time.Time
}

// New wires the router with the shared middleware chain. CORS origins
// defaults to localhost-only when empty.
func New(addr string, coord Coordinator, regs *regmap.Map, corsOrigins []string) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "PUT"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	return &Server{
		Addr:    addr,
		coord:   coord,
		regs:    regs,
		router:  r,
		started: time.Now(),
	}
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"service": "econetd",
			"version": "0.1.0",
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/v1")

	v1.GET("/snapshot", func(c *gin.Context) {
		snap := s.coord.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"registers": snap,
			"active":    s.coord.Active(),
		})
	})

	v1.GET("/registers/:slug", func(c *gin.Context) {
		slug := c.Param("slug")
		body, err := s.registerState(slug)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, body)
	})

	v1.PUT("/registers/:slug", func(c *gin.Context) {
		slug := c.Param("slug")
		v, err := decodeWriteBody(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := s.writeRegister(c.Request.Context(), slug, v); err != nil {
			log.Error().Str("slug", slug).Stringer("value", v).Err(err).
				Msg("register write failed")
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}

		log.Info().Str("slug", slug).Stringer("value", v).Msg("register written")
		c.JSON(http.StatusOK, gin.H{"status": "ok", "slug": slug, "value": v})
	})

	v1.GET("/schedules/:circuit", func(c *gin.Context) {
		circuit := c.Param("circuit")
		days, err := s.circuitSchedule(circuit)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"circuit": circuit, "days": days})
	})
}

// registerState merges the configured definition with the cached
// reading. An unconfigured slug is a 404; a configured slug that has
// no cached value yet reports null.
func (s *Server) registerState(slug string) (gin.H, error) {
	def, ok := s.regs.Lookup(slug)
	if !ok {
		return nil, ErrUnknownRegister
	}

	body := gin.H{
		"slug":     slug,
		"id":       def.ID,
		"type":     string(def.Type),
		"exponent": def.Exponent,
		"value":    nil,
	}
	if v, cached := s.coord.Snapshot()[slug]; cached {
		body["value"] = v
	}
	if def.Min != nil {
		body["min"] = *def.Min
	}
	if def.Max != nil {
		body["max"] = *def.Max
	}
	return body, nil
}

func (s *Server) writeRegister(ctx context.Context, slug string, v value.Value) error {
	if _, ok := s.regs.Lookup(slug); !ok {
		return ErrUnknownRegister
	}
	if !s.coord.SetValue(ctx, slug, v) {
		return ErrWriteRejected
	}
	return nil
}

// circuitSchedule decodes the weekly comfort schedule for a heating
// circuit ("1".."7") or the water heater ("hdw"). Days whose AM or PM
// half is not cached yet are omitted.
func (s *Server) circuitSchedule(circuit string) (map[string][]string, error) {
	prefix, err := schedulePrefix(circuit)
	if err != nil {
		return nil, err
	}

	snap := s.coord.Snapshot()
	days := make(map[string][]string)
	for _, day := range scheduleDays {
		am, okAM := halfDayMask(snap[prefix+day+"am"])
		pm, okPM := halfDayMask(snap[prefix+day+"pm"])
		if !okAM || !okPM {
			continue
		}
		intervals := schedule.DecodeDay(am, pm)
		spans := make([]string, 0, len(intervals))
		for _, iv := range intervals {
			spans = append(spans, iv.String())
		}
		days[day] = spans
	}
	return days, nil
}

var scheduleDays = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

func schedulePrefix(circuit string) (string, error) {
	if circuit == "hdw" {
		return "hdw", nil
	}
	n, err := strconv.Atoi(circuit)
	if err != nil || n < 1 || n > 7 {
		return "", ErrUnknownCircuit
	}
	return fmt.Sprintf("circuit%d", n), nil
}

func halfDayMask(v value.Value) (uint32, bool) {
	f, ok := v.AsFloat()
	if !ok || f < 0 {
		return 0, false
	}
	return uint32(f), true
}

// decodeWriteBody accepts {"value": <number|bool|string>} and maps it
// onto the tagged value union.
func decodeWriteBody(c *gin.Context) (value.Value, error) {
	var body struct {
		Value json.RawMessage `json:"value"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		return value.Absent(), fmt.Errorf("invalid request body: %w", err)
	}
	raw := bytes.TrimSpace(body.Value)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return value.Absent(), errors.New("missing value field")
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return value.Absent(), fmt.Errorf("invalid value: %w", err)
		}
		return value.Parse(s), nil
	}
	v := value.Parse(string(raw))
	if v.Kind == value.KindText {
		return value.Absent(), errors.New("value must be a number, bool, or string")
	}
	return v, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownRegister), errors.Is(err, ErrUnknownCircuit):
		return http.StatusNotFound
	case errors.Is(err, ErrWriteRejected):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Serve registers the routes and blocks on the listener.
func (s *Server) Serve() error {
	s.RegisterRoutes()
	return s.router.Run(s.Addr)
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost", "http://127.0.0.1"}
	}
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost", "http://127.0.0.1"}
	}
	return out
}
