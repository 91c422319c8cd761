package adc

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Bus is the slice of the I2C transport the converter needs.
type Bus interface {
	WriteCommand(ctx context.Context, addr uint16, cmd byte) error
	ReadWord(ctx context.Context, addr uint16) (uint16, error)
}

// ErrUnknownChannel is returned by Reader for a channel with no read command.
var ErrUnknownChannel = errors.New("adc: unknown channel")

// Reader samples channels of the converter at Addr.
type Reader struct {
	Bus    Bus
	Addr   uint16
	Logger *zap.SugaredLogger
}

// NewReader returns a reader for the converter at the default address.
func NewReader(b Bus, logger *zap.SugaredLogger) *Reader {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Reader{Bus: b, Addr: DefaultAddress, Logger: logger}
}

// Raw issues the read command of c and returns the 12 bit sample.
func (r *Reader) Raw(ctx context.Context, c Channel) (int, error) {
	cmd, ok := Command(c)
	if !ok {
		return Unknown, ErrUnknownChannel
	}
	if err := r.Bus.WriteCommand(ctx, r.Addr, cmd); err != nil {
		return Unknown, errors.Wrapf(err, "adc command %s", c)
	}
	w, err := r.Bus.ReadWord(ctx, r.Addr)
	if err != nil {
		return Unknown, errors.Wrapf(err, "adc read %s", c)
	}
	raw := int(w)
	r.Logger.Debugw("adc sample", "channel", c.String(), "cmd", cmd, "raw", raw)
	return raw, nil
}

// Read samples c and decodes it.
func (r *Reader) Read(ctx context.Context, c Channel) (int, error) {
	raw, err := r.Raw(ctx, c)
	if err != nil {
		return Unknown, err
	}
	return Decode(c, raw), nil
}

// BoardVersion reads the version divider; -1 means unrecognised.
func (r *Reader) BoardVersion(ctx context.Context) (int, error) {
	return r.Read(ctx, Version)
}
