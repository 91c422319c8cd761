package controller

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/Seann-Moser/dojobot/pkg/io"
)

// DefaultConfigFile is where the robot configuration is kept between runs.
const DefaultConfigFile = ".dojobot.config.json"

// ServoSetting is the persisted calibration of one named servo.
type ServoSetting struct {
	MinPulseUs int     `json:"minPulseUs"`
	MidPulseUs int     `json:"midPulseUs,omitempty"` // 0 = midpoint
	MaxPulseUs int     `json:"maxPulseUs"`
	MinAngle   float64 `json:"minAngle"`
	MaxAngle   float64 `json:"maxAngle"`
	// Channel moves the servo off its usual output, for a board wired differently.
	Channel *int `json:"channel,omitempty"`
}

func defaultServoSetting() ServoSetting {
	return ServoSetting{MinPulseUs: 650, MaxPulseUs: 2350, MinAngle: 0, MaxAngle: 180}
}

func (s ServoSetting) pulses() (min, max, mid time.Duration) {
	us := func(v int) time.Duration { return time.Duration(v) * time.Microsecond }
	return us(s.MinPulseUs), us(s.MaxPulseUs), us(s.MidPulseUs)
}

// LedSetting selects how LED values are driven.
type LedSetting struct {
	Invert     bool    `json:"invert"`
	Brightness float64 `json:"brightness"`
}

// Pose is a stored set of servo angles.
type Pose map[ServoName]float64

// Configuration is everything about the robot that survives a restart.
type Configuration struct {
	FrequencyHz int                        `json:"frequencyHz"`
	Servos      map[ServoName]ServoSetting `json:"servos"`
	Positions   map[PositionID]Pose        `json:"positions"`
	Leds        LedSetting                 `json:"leds"`
	Pins        io.Pins                    `json:"pins"`
}

// DefaultConfiguration suits the stock arm: 650-2350us servos, sinking LEDs at half
// brightness, every stored position centred.
func DefaultConfiguration() Configuration {
	c := Configuration{
		FrequencyHz: 50,
		Servos:      make(map[ServoName]ServoSetting),
		Positions:   make(map[PositionID]Pose),
		Leds:        LedSetting{Invert: true, Brightness: 0.5},
		Pins:        io.DefaultPins,
	}
	for _, n := range ServoNames {
		c.Servos[n] = defaultServoSetting()
	}
	for _, id := range PositionIDs {
		p := make(Pose)
		for _, n := range ServoNames {
			p[n] = 90
		}
		c.Positions[id] = p
	}
	return c
}

// LoadConfiguration reads path over the defaults. A missing file yields the defaults.
func LoadConfiguration(path string) (Configuration, error) {
	c := DefaultConfiguration()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, errors.Wrapf(err, "read %s", path)
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return DefaultConfiguration(), errors.Wrapf(err, "parse %s", path)
	}
	// map values are replaced whole, so decode each servo again over its defaults
	var file struct {
		Servos map[ServoName]json.RawMessage `json:"servos"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return DefaultConfiguration(), errors.Wrapf(err, "parse %s", path)
	}
	for name, raw := range file.Servos {
		s := defaultServoSetting()
		if err := json.Unmarshal(raw, &s); err != nil {
			return DefaultConfiguration(), errors.Wrapf(err, "parse %s: servo %s", path, name)
		}
		c.Servos[name] = s
	}
	return c, nil
}

// SaveConfiguration writes c to path.
func SaveConfiguration(path string, c Configuration) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal configuration")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
