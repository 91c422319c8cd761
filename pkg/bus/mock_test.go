package bus

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestMockRegisters(t *testing.T) {
	ctx := context.Background()
	m := NewMock()

	test.That(t, m.WriteRegister(ctx, 0x40, 0x06, 1), test.ShouldBeNil)
	test.That(t, m.WriteRegister(ctx, 0x40, 0x06, 2), test.ShouldBeNil)
	test.That(t, m.WriteRegister(ctx, 0x41, 0x06, 3), test.ShouldBeNil)

	test.That(t, m.Register(0x40, 0x06), test.ShouldEqual, byte(2))
	test.That(t, m.Register(0x41, 0x06), test.ShouldEqual, byte(3))
	test.That(t, m.Register(0x42, 0x06), test.ShouldEqual, byte(0))
	test.That(t, m.Writes(0x40), test.ShouldResemble, []Op{
		{Kind: OpWriteRegister, Addr: 0x40, Reg: 0x06, Val: 1},
		{Kind: OpWriteRegister, Addr: 0x40, Reg: 0x06, Val: 2},
	})

	m.Reset()
	test.That(t, m.Ops(), test.ShouldBeEmpty)
	test.That(t, m.Register(0x40, 0x06), test.ShouldEqual, byte(2))
}

func TestMockWords(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	m.SetWord(0x48, 0x8C, 777)

	w, err := m.ReadWord(ctx, 0x48)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, w, test.ShouldEqual, uint16(0))

	test.That(t, m.WriteCommand(ctx, 0x48, 0x8C), test.ShouldBeNil)
	w, err = m.ReadWord(ctx, 0x48)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, w, test.ShouldEqual, uint16(777))
}

func TestMockFailures(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	m.SetFailWrite(true)
	test.That(t, errors.Is(m.WriteRegister(ctx, 0x40, 0, 0), ErrMockFailure), test.ShouldBeTrue)
	test.That(t, errors.Is(m.WriteCommand(ctx, 0x48, 0xCC), ErrMockFailure), test.ShouldBeTrue)
	test.That(t, m.Ops(), test.ShouldBeEmpty)

	m.SetFailRead(true)
	_, err := m.ReadWord(ctx, 0x48)
	test.That(t, errors.Is(err, ErrMockFailure), test.ShouldBeTrue)
}

func TestOpen(t *testing.T) {
	tr, closer, err := Open(BackendMock, "")
	test.That(t, err, test.ShouldBeNil)
	_, ok := tr.(*Mock)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, closer.Close(), test.ShouldBeNil)

	_, _, err = Open("spi", "")
	test.That(t, errors.Is(err, ErrUnknownBackend), test.ShouldBeTrue)
}
