package bus

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// OpKind is the kind of a recorded bus operation.
type OpKind int

const (
	OpWriteRegister OpKind = iota
	OpWriteCommand
	OpReadWord
)

// Op is one recorded bus operation.
type Op struct {
	Kind OpKind
	Addr uint16
	Reg  byte // register or command byte
	Val  byte
}

// ErrMockFailure is returned by a Mock configured to fail.
var ErrMockFailure = errors.New("mock: failure configured")

// Mock is a thread-safe in-memory Transport. It keeps a register file per address, logs
// every operation in order, and answers ReadWord with the word set for the last command
// byte written to that address.
type Mock struct {
	mu        sync.Mutex
	regs      map[uint16]map[byte]byte
	words     map[uint16]map[byte]uint16
	lastCmd   map[uint16]byte
	ops       []Op
	failWrite bool
	failRead  bool
}

// NewMock returns an empty mock bus.
func NewMock() *Mock {
	return &Mock{
		regs:    make(map[uint16]map[byte]byte),
		words:   make(map[uint16]map[byte]uint16),
		lastCmd: make(map[uint16]byte),
	}
}

// SetFailWrite makes every write fail.
func (m *Mock) SetFailWrite(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrite = fail
}

// SetFailRead makes every read fail.
func (m *Mock) SetFailRead(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRead = fail
}

// SetWord sets the word returned by ReadWord after cmd was written to addr.
func (m *Mock) SetWord(addr uint16, cmd byte, word uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.words[addr] == nil {
		m.words[addr] = make(map[byte]uint16)
	}
	m.words[addr][cmd] = word
}

func (m *Mock) WriteRegister(ctx context.Context, addr uint16, reg, val byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return ErrMockFailure
	}
	if m.regs[addr] == nil {
		m.regs[addr] = make(map[byte]byte)
	}
	m.regs[addr][reg] = val
	m.ops = append(m.ops, Op{Kind: OpWriteRegister, Addr: addr, Reg: reg, Val: val})
	return nil
}

func (m *Mock) WriteCommand(ctx context.Context, addr uint16, cmd byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return ErrMockFailure
	}
	m.lastCmd[addr] = cmd
	m.ops = append(m.ops, Op{Kind: OpWriteCommand, Addr: addr, Reg: cmd})
	return nil
}

func (m *Mock) ReadWord(ctx context.Context, addr uint16) (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead {
		return 0, ErrMockFailure
	}
	cmd := m.lastCmd[addr]
	m.ops = append(m.ops, Op{Kind: OpReadWord, Addr: addr, Reg: cmd})
	return m.words[addr][cmd], nil
}

// Register returns the last value written to reg at addr.
func (m *Mock) Register(addr uint16, reg byte) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[addr][reg]
}

// Ops returns a copy of every recorded operation.
func (m *Mock) Ops() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Op, len(m.ops))
	copy(out, m.ops)
	return out
}

// Writes returns the register writes made to addr, in order.
func (m *Mock) Writes(addr uint16) []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Op
	for _, op := range m.ops {
		if op.Kind == OpWriteRegister && op.Addr == addr {
			out = append(out, op)
		}
	}
	return out
}

// Reset forgets the operation log, keeping register contents and canned words.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = nil
}

// Close is a no-op.
func (m *Mock) Close() error { return nil }
