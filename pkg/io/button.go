package io

import (
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

// debounce drops edges closer together than this.
const debounce = 10 * time.Millisecond

// ButtonEvent is emitted when a button is released.
type ButtonEvent struct {
	Button   ButtonID
	Duration time.Duration // how long it was held
}

// Button tracks presses of an active-low, pulled-up button line.
type Button struct {
	id      ButtonID
	pressed bool
	since   time.Duration
	last    time.Duration
	Event   chan ButtonEvent
}

func newButton(id ButtonID) *Button {
	return &Button{id: id, Event: make(chan ButtonEvent, 8)}
}

func (b *Button) eventHandler(evt gpiocdev.LineEvent) {
	if b.last != 0 && evt.Timestamp-b.last < debounce {
		return
	}
	b.last = evt.Timestamp
	pressed := evt.Type == gpiocdev.LineEventFallingEdge
	if pressed == b.pressed {
		return
	}
	b.pressed = pressed
	if pressed {
		b.since = evt.Timestamp
		return
	}
	select {
	case b.Event <- ButtonEvent{Button: b.id, Duration: evt.Timestamp - b.since}:
	default:
	}
}

// Pressed reads the current state of a button. The lines are active low.
func (io *IO) Pressed(id ButtonID) (bool, error) {
	if !id.valid() {
		return false, errors.Errorf("unknown button %d", id)
	}
	offset := io.pins.Buttons[id]
	io.mu.Lock()
	defer io.mu.Unlock()
	l, ok := io.lines[offset]
	if !ok {
		var err error
		l, err = io.chip.RequestLine(offset, gpiocdev.AsInput, gpiocdev.WithPullUp)
		if err != nil {
			return false, errors.Wrapf(err, "request button line %d", offset)
		}
		io.lines[offset] = l
	}
	v, err := l.Value()
	if err != nil {
		return false, err
	}
	return v == 0, nil
}

// WatchButton delivers release events of a button on the returned Button's channel.
func (io *IO) WatchButton(id ButtonID) (*Button, error) {
	if !id.valid() {
		return nil, errors.Errorf("unknown button %d", id)
	}
	offset := io.pins.Buttons[id]
	b := newButton(id)
	io.mu.Lock()
	defer io.mu.Unlock()
	if l, ok := io.lines[offset]; ok {
		_ = l.Close()
	}
	line, err := io.chip.RequestLine(offset,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(b.eventHandler),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "watch button line %d", offset)
	}
	io.lines[offset] = line
	return b, nil
}
