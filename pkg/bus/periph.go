package bus

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// maxOpsPerSec paces bus transactions so bursts of LED and servo writes don't starve
// other devices sharing the bus.
const maxOpsPerSec = 2000

// Periph is a Transport over a periph.io I2C bus.
type Periph struct {
	mu      sync.Mutex
	bus     i2c.Bus
	closer  func() error
	limiter *rate.Limiter
}

// NewPeriph wraps an already opened bus. The caller keeps ownership of it.
func NewPeriph(b i2c.Bus) *Periph {
	return &Periph{
		bus:     b,
		limiter: rate.NewLimiter(rate.Limit(maxOpsPerSec), 16),
	}
}

// OpenPeriph initialises the periph host drivers and opens the named bus. An empty name
// opens the first bus found.
func OpenPeriph(name string) (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init")
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open i2c bus %q", name)
	}
	p := NewPeriph(b)
	p.closer = b.Close
	return p, nil
}

// Bus exposes the underlying periph bus.
func (p *Periph) Bus() i2c.Bus { return p.bus }

func (p *Periph) WriteRegister(ctx context.Context, addr uint16, reg, val byte) error {
	return p.tx(ctx, addr, []byte{reg, val}, nil)
}

func (p *Periph) WriteCommand(ctx context.Context, addr uint16, cmd byte) error {
	return p.tx(ctx, addr, []byte{cmd}, nil)
}

func (p *Periph) ReadWord(ctx context.Context, addr uint16) (uint16, error) {
	r := make([]byte, 2)
	if err := p.tx(ctx, addr, nil, r); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(r), nil
}

func (p *Periph) tx(ctx context.Context, addr uint16, w, r []byte) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.bus.Tx(addr, w, r); err != nil {
		return errors.Wrapf(err, "i2c tx %s", addrString(addr))
	}
	return nil
}

// Close closes the bus if OpenPeriph opened it.
func (p *Periph) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}
