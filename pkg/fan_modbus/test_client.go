package fan_modbus

import (
	"errors"
	"sync"

	"github.com/simonvetter/modbus"
)

var ErrTestRegisterUnset = errors.New("register not set")

// TestRegisterClient is an in-memory register bank.
type TestRegisterClient struct {
	mu       sync.Mutex
	holding  map[uint16]uint16
	input    map[uint16]uint16
	writes   []uint16
	open     bool
	failNext error
}

func NewTestRegisterClient() *TestRegisterClient {
	return &TestRegisterClient{
		holding: map[uint16]uint16{},
		input:   map[uint16]uint16{},
	}
}

func (c *TestRegisterClient) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	return nil
}

func (c *TestRegisterClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

func (c *TestRegisterClient) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// FailNext makes the next request return err.
func (c *TestRegisterClient) FailNext(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNext = err
}

func (c *TestRegisterClient) Set(addr uint16, regType modbus.RegType, value uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bank(regType)[addr] = value
}

func (c *TestRegisterClient) Get(addr uint16, regType modbus.RegType) (uint16, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.bank(regType)[addr]
	return v, ok
}

// Writes returns the number of register writes so far.
func (c *TestRegisterClient) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func (c *TestRegisterClient) ReadRegister(addr uint16, regType modbus.RegType) (uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.takeFailure(); err != nil {
		return 0, err
	}
	v, ok := c.bank(regType)[addr]
	if !ok {
		return 0, ErrTestRegisterUnset
	}
	return v, nil
}

func (c *TestRegisterClient) WriteRegister(addr uint16, value uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.takeFailure(); err != nil {
		return err
	}
	c.holding[addr] = value
	c.writes = append(c.writes, addr)
	return nil
}

func (c *TestRegisterClient) takeFailure() error {
	err := c.failNext
	c.failNext = nil
	return err
}

func (c *TestRegisterClient) bank(regType modbus.RegType) map[uint16]uint16 {
	if regType == modbus.INPUT_REGISTER {
		return c.input
	}
	return c.holding
}

var _ RegisterClient = (*TestRegisterClient)(nil)
