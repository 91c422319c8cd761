package bus

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
)

// SetRawPWM programs one channel through periph's own PCA9685 driver, bypassing the
// chip registry. It re-initialises the chip, so it is meant for bench checks of a board.
func SetRawPWM(b i2c.Bus, addr uint16, freq physic.Frequency, ch int, on, off int) error {
	dev, err := pca9685.NewI2C(b, addr)
	if err != nil {
		return errors.Wrap(err, "pca9685 init")
	}
	if err := dev.SetPwmFreq(freq); err != nil {
		return errors.Wrap(err, "pca9685 frequency")
	}
	return dev.SetPwm(ch, gpio.Duty(on), gpio.Duty(off))
}
