package io

import (
	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

// SetPinState drives an output line high (1) or low (0), requesting it on first use.
func (io *IO) SetPinState(offset int, state int) error {
	io.mu.Lock()
	defer io.mu.Unlock()
	l, ok := io.lines[offset]
	if !ok {
		var err error
		l, err = io.chip.RequestLine(offset, gpiocdev.AsOutput(0))
		if err != nil {
			return errors.Wrapf(err, "request output line %d", offset)
		}
		io.lines[offset] = l
	}
	return l.SetValue(state)
}

// SetRelay switches the relay.
func (io *IO) SetRelay(on bool) error {
	io.logger.Debugw("relay", "on", on)
	return io.SetPinState(io.pins.Relay, level(on))
}

// SetStatus switches the status LED.
func (io *IO) SetStatus(on bool) error {
	io.logger.Debugw("status", "on", on)
	return io.SetPinState(io.pins.Status, level(on))
}

func level(on bool) int {
	if on {
		return 1
	}
	return 0
}
