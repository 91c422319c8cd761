// Package bus provides the I2C transports the PWM and ADC drivers talk through: periph.io
// and gobot backed buses for real hardware and an in-memory mock for tests and dry runs.
package bus

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Transport is a 2-wire bus able to address several devices.
type Transport interface {
	// WriteRegister writes val into register reg of the device at addr.
	WriteRegister(ctx context.Context, addr uint16, reg, val byte) error
	// ReadWord reads a big-endian 16 bit word from the device at addr.
	ReadWord(ctx context.Context, addr uint16) (uint16, error)
	// WriteCommand writes a single command byte to the device at addr.
	WriteCommand(ctx context.Context, addr uint16, cmd byte) error
}

// Backend names accepted by Open.
const (
	BackendPeriph = "periph"
	BackendGobot  = "gobot"
	BackendMock   = "mock"
)

// ErrUnknownBackend is returned by Open for an unrecognised backend name.
var ErrUnknownBackend = errors.New("unknown bus backend")

// Open returns a transport for backend. name is the periph bus name (e.g. "I2C1" or "1")
// and is ignored by the other backends.
func Open(backend, name string) (Transport, io.Closer, error) {
	switch strings.ToLower(backend) {
	case BackendPeriph, "":
		p, err := OpenPeriph(name)
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	case BackendGobot:
		g, err := OpenGobot()
		if err != nil {
			return nil, nil, err
		}
		return g, g, nil
	case BackendMock:
		m := NewMock()
		return m, m, nil
	}
	return nil, nil, errors.Wrap(ErrUnknownBackend, backend)
}

func addrString(addr uint16) string {
	return fmt.Sprintf("0x%02x", addr)
}
