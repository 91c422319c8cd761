package bus

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gobot.io/x/gobot/drivers/i2c"
	"gobot.io/x/gobot/platforms/raspi"
)

// Gobot is a Transport over a gobot I2C connector, holding one connection per device.
type Gobot struct {
	mu        sync.Mutex
	connector i2c.Connector
	bus       int
	conns     map[uint16]i2c.Connection
	finalize  func() error
}

// NewGobot uses connector's bus number bus.
func NewGobot(connector i2c.Connector, bus int) *Gobot {
	return &Gobot{
		connector: connector,
		bus:       bus,
		conns:     make(map[uint16]i2c.Connection),
	}
}

// OpenGobot connects a Raspberry Pi adaptor and uses its default bus.
func OpenGobot() (*Gobot, error) {
	r := raspi.NewAdaptor()
	if err := r.Connect(); err != nil {
		return nil, errors.Wrap(err, "raspi connect")
	}
	g := NewGobot(r, r.GetDefaultBus())
	g.finalize = r.Finalize
	return g, nil
}

func (g *Gobot) WriteRegister(ctx context.Context, addr uint16, reg, val byte) error {
	return g.with(ctx, addr, func(c i2c.Connection) error {
		return c.WriteByteData(reg, val)
	})
}

func (g *Gobot) WriteCommand(ctx context.Context, addr uint16, cmd byte) error {
	return g.with(ctx, addr, func(c i2c.Connection) error {
		return c.WriteByte(cmd)
	})
}

func (g *Gobot) ReadWord(ctx context.Context, addr uint16) (uint16, error) {
	var word uint16
	err := g.with(ctx, addr, func(c i2c.Connection) error {
		buf := make([]byte, 2)
		n, err := c.Read(buf)
		if err != nil {
			return err
		}
		if n != len(buf) {
			return errors.Errorf("short read: %d bytes", n)
		}
		word = binary.BigEndian.Uint16(buf)
		return nil
	})
	return word, err
}

func (g *Gobot) with(ctx context.Context, addr uint16, fn func(i2c.Connection) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.conns[addr]
	if !ok {
		var err error
		c, err = g.connector.GetConnection(int(addr), g.bus)
		if err != nil {
			return errors.Wrapf(err, "gobot connection %s", addrString(addr))
		}
		g.conns[addr] = c
	}
	if err := fn(c); err != nil {
		return errors.Wrapf(err, "gobot i2c %s", addrString(addr))
	}
	return nil
}

// Close closes every device connection and finalizes the adaptor OpenGobot created.
func (g *Gobot) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var err error
	for addr, c := range g.conns {
		err = multierr.Append(err, c.Close())
		delete(g.conns, addr)
	}
	if g.finalize != nil {
		err = multierr.Append(err, g.finalize())
	}
	return err
}
