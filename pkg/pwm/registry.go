package pwm

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"
)

// DefaultAddress is the factory I2C address of a PCA9685.
const DefaultAddress uint16 = 0x40

type options struct {
	writer RegisterWriter
	sleep  func(time.Duration)
	logger *zap.SugaredLogger
	freq   physic.Frequency
	leds   LedMapper
}

// Option configures a Registry.
type Option func(*options)

// WithSleep replaces the delay used while the oscillator settles.
func WithSleep(fn func(time.Duration)) Option {
	return func(o *options) { o.sleep = fn }
}

// WithLogger sets the logger chips log register traffic to.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) { o.logger = l }
}

// WithFrequency sets the update rate new chips start at.
func WithFrequency(f physic.Frequency) Option {
	return func(o *options) { o.freq = ClampFrequency(f) }
}

// WithLedMapper sets the LED wiring new chips start with.
func WithLedMapper(m LedMapper) Option {
	return func(o *options) { o.leds = m }
}

// Registry owns one Chip per I2C address. A chip is reset on the bus the first time its
// address is looked up and never again through the registry.
type Registry struct {
	mu    sync.Mutex
	chips map[uint16]*Chip
	opts  options
}

// NewRegistry returns an empty registry writing through w.
func NewRegistry(w RegisterWriter, opts ...Option) *Registry {
	o := options{
		writer: w,
		sleep:  time.Sleep,
		logger: zap.NewNop().Sugar(),
		freq:   DefaultFrequency,
		leds:   NewLedMapper(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry{
		chips: make(map[uint16]*Chip),
		opts:  o,
	}
}

// GetOrCreate returns the chip at addr, creating and resetting it on first use. If the
// reset fails the chip is not kept, so a later call tries again.
func (r *Registry) GetOrCreate(ctx context.Context, addr uint16) (*Chip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.chips[addr]; ok {
		return c, nil
	}
	r.opts.logger.Debugw("creating chip", "addr", addr)
	c := newChip(addr, &r.opts)
	if err := c.Reset(ctx); err != nil {
		return nil, err
	}
	r.chips[addr] = c
	return c, nil
}

// Attach returns the chip at addr, registering it without touching the bus if it is not
// known yet. It is for a chip another process has already reset: the outputs it is
// driving are left alone, and the registry's frequency is assumed to be the one it runs
// at. A later GetOrCreate for addr returns the attached chip and does not reset it.
func (r *Registry) Attach(addr uint16) *Chip {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.chips[addr]; ok {
		return c
	}
	r.opts.logger.Debugw("attaching chip", "addr", addr)
	c := newChip(addr, &r.opts)
	r.chips[addr] = c
	return c
}

// Addresses lists the known chips in ascending order.
func (r *Registry) Addresses() []uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint16, 0, len(r.chips))
	for a := range r.chips {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
