package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"

	"github.com/Seann-Moser/dojobot/pkg/adc"
	"github.com/Seann-Moser/dojobot/pkg/pwm"
)

// ServoRequest moves a servo. Exactly one of the fields is used, in the order angle,
// delta, speed.
type ServoRequest struct {
	Angle *float64 `json:"angle,omitempty"`
	Delta *float64 `json:"delta,omitempty"`
	Speed *float64 `json:"speed,omitempty"`
}

// LedRequest sets an LED either by Color (name or hex) or by components, where a missing
// component is left unchanged.
type LedRequest struct {
	Color string `json:"color,omitempty"`
	Red   *int   `json:"red,omitempty"`
	Green *int   `json:"green,omitempty"`
	Blue  *int   `json:"blue,omitempty"`
}

func (r LedRequest) color() (pwm.Color, error) {
	if r.Color != "" {
		return pwm.ParseColor(r.Color)
	}
	level := func(v *int) int {
		if v == nil {
			return -1
		}
		return *v
	}
	return pwm.RGB(level(r.Red), level(r.Green), level(r.Blue)), nil
}

// PositionRequest stores the current pose or moves to the stored one.
type PositionRequest struct {
	Action string `json:"action"` // "store" or "go"
}

// RelayRequest switches the relay.
type RelayRequest struct {
	On bool `json:"on"`
}

// StatusRequest switches the status LED.
type StatusRequest struct {
	On bool `json:"on"`
}

// InputResponse is a decoded analog reading.
type InputResponse struct {
	Channel string `json:"channel"`
	Value   int    `json:"value"`
}

// Router returns the HTTP API of the controller.
func (c *Controller) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)
	r.Use(c.logRequests)

	r.Get("/api/state", c.handleGetState)
	r.Post("/api/servos/{name}", c.handleServo)
	r.Post("/api/leds/{id}", c.handleLed)
	r.Get("/api/inputs/{channel}", c.handleInput)
	r.Post("/api/positions/{id}", c.handlePosition)
	r.Post("/api/relay", c.handleRelay)
	r.Post("/api/status", c.handleStatus)
	return r
}

// StartServer serves the API on addr until ctx is done.
func (c *Controller) StartServer(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           c.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		c.logger.Infow("server running", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (c *Controller) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		c.logger.Debugw("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "took", time.Since(start))
	})
}

func (c *Controller) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.State())
}

func (c *Controller) handleServo(w http.ResponseWriter, r *http.Request) {
	name, err := ParseServo(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	var req ServoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	switch {
	case req.Angle != nil:
		err = c.MoveServo(r.Context(), name, *req.Angle)
	case req.Delta != nil:
		err = c.MoveServoBy(r.Context(), name, *req.Delta)
	case req.Speed != nil:
		if name == All {
			writeError(w, http.StatusBadRequest, errors.New("speed needs a single servo"))
			return
		}
		err = c.SetSpeed(r.Context(), name, *req.Speed)
	default:
		writeError(w, http.StatusBadRequest, errors.New("one of angle, delta or speed is required"))
		return
	}
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, c.State())
}

func (c *Controller) handleLed(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "led id"))
		return
	}
	var req LedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	col, err := req.color()
	if err == nil {
		err = c.SetLED(r.Context(), id, col)
	}
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) handleInput(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "channel")
	ch, ok := adc.ParseChannel(name)
	if !ok {
		writeError(w, http.StatusNotFound, errors.Wrap(adc.ErrUnknownChannel, name))
		return
	}
	v, err := c.Input(r.Context(), ch)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, InputResponse{Channel: ch.String(), Value: v})
}

func (c *Controller) handlePosition(w http.ResponseWriter, r *http.Request) {
	id, err := ParsePosition(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	var req PositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	switch req.Action {
	case "store":
		err = c.StorePosition(id)
	case "go":
		err = c.GoPosition(r.Context(), id)
	default:
		writeError(w, http.StatusBadRequest, errors.Errorf("unknown action %q", req.Action))
		return
	}
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, c.State())
}

func (c *Controller) handleRelay(w http.ResponseWriter, r *http.Request) {
	var req RelayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := c.SetRelay(req.On); err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) handleStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := c.SetStatus(req.On); err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusOf(err error) int {
	var cfgErr *pwm.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnknownServo), errors.Is(err, ErrUnknownPosition), errors.Is(err, adc.ErrUnknownChannel):
		return http.StatusNotFound
	case errors.Is(err, ErrNoGPIO):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
