package bus

import (
	"context"
	"testing"

	"go.viam.com/test"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestPeriphTransport(t *testing.T) {
	ctx := context.Background()
	pb := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x40, W: []byte{0xFE, 121}},
			{Addr: 0x48, W: []byte{0x9C}},
			{Addr: 0x48, R: []byte{0x07, 0xD0}},
		},
		DontPanic: true,
	}
	p := NewPeriph(pb)
	test.That(t, p.Bus(), test.ShouldEqual, pb)

	test.That(t, p.WriteRegister(ctx, 0x40, 0xFE, 121), test.ShouldBeNil)
	test.That(t, p.WriteCommand(ctx, 0x48, 0x9C), test.ShouldBeNil)
	w, err := p.ReadWord(ctx, 0x48)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, w, test.ShouldEqual, uint16(2000))
	test.That(t, pb.Close(), test.ShouldBeNil)

	// NewPeriph leaves the bus to its owner
	test.That(t, p.Close(), test.ShouldBeNil)
}

func TestPeriphErrors(t *testing.T) {
	pb := &i2ctest.Playback{DontPanic: true}
	p := NewPeriph(pb)
	err := p.WriteRegister(context.Background(), 0x40, 0, 0)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "i2c tx 0x40")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	test.That(t, p.WriteRegister(ctx, 0x40, 0, 0), test.ShouldNotBeNil)
}
