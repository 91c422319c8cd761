// Package io drives the board's GPIO: the three push buttons, the relay used for the
// electromagnet and the status LED.
package io

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
	"github.com/warthog618/go-gpiocdev/device/rpi"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ButtonID names one of the board buttons.
type ButtonID int

const (
	ButtonA ButtonID = iota
	ButtonB
	ButtonC
)

// Pins maps the board functions onto GPIO line offsets.
type Pins struct {
	Buttons [3]int `json:"buttons"`
	Relay   int    `json:"relay"`
	Status  int    `json:"status"`
}

// DefaultPins is the wiring of the Raspberry Pi carrier.
var DefaultPins = Pins{
	Buttons: [3]int{rpi.GPIO26, rpi.GPIO25, rpi.GPIO24},
	Relay:   rpi.GPIO23,
	Status:  rpi.GPIO16,
}

// IO owns the requested GPIO lines of one chip.
type IO struct {
	chip   *gpiocdev.Chip
	pins   Pins
	mu     sync.Mutex
	lines  map[int]*gpiocdev.Line
	logger *zap.SugaredLogger
}

// New opens chipName (e.g. "gpiochip0").
func New(chipName string, pins Pins, logger *zap.SugaredLogger) (*IO, error) {
	c, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", chipName)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &IO{
		chip:   c,
		pins:   pins,
		lines:  make(map[int]*gpiocdev.Line),
		logger: logger,
	}, nil
}

func (b ButtonID) valid() bool {
	return b >= ButtonA && b <= ButtonC
}

// Close drives outputs low, releases every line and closes the chip.
func (io *IO) Close() error {
	io.mu.Lock()
	defer io.mu.Unlock()
	var err error
	for offset, l := range io.lines {
		if offset == io.pins.Relay || offset == io.pins.Status {
			err = multierr.Append(err, l.SetValue(0))
		}
		err = multierr.Append(err, l.Close())
		delete(io.lines, offset)
	}
	return multierr.Append(err, io.chip.Close())
}
