// Package gpio is a client for the pigpio daemon socket interface. It covers
// the GPIO and I2C commands the supervisor and charger driver need.
package gpio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Pin definitions (BCM numbering)
const (
	PinPiraStatus = 17 // PiraSmart status, HIGH while the Pi is running
	PinSoftPower  = 25 // power switch for external loads
)

// DefaultAddr is the pigpiod socket address.
const DefaultAddr = "localhost:8888"

// Mode is a GPIO pin mode.
type Mode uint32

const (
	ModeInput  Mode = 0
	ModeOutput Mode = 1
)

// Level is a GPIO logic level.
type Level uint32

const (
	Low  Level = 0
	High Level = 1
)

// pigpiod socket command numbers
const (
	cmdModes = 0
	cmdRead  = 3
	cmdWrite = 4
	cmdPigpv = 26
	cmdI2CO  = 54
	cmdI2CC  = 55
	cmdI2CRB = 61
	cmdI2CWB = 62
)

var (
	// ErrCommand indicates pigpiod answered a command with an error code
	ErrCommand = errors.New("gpio: pigpiod command failed")

	// ErrClosed indicates the client was used after Close
	ErrClosed = errors.New("gpio: client closed")
)

// Client talks to pigpiod over a single socket. Commands are serialized.
type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	timeout time.Duration
	closed  bool
}

// NewClient wraps an established pigpiod connection.
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn, timeout: 5 * time.Second}
}

// DialFunc opens a connection to pigpiod.
type DialFunc func(ctx context.Context) (net.Conn, error)

// TCPDialer returns a DialFunc for the given address.
func TCPDialer(addr string) DialFunc {
	return func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	}
}

// Connect dials pigpiod until it answers a version query. It never gives up
// on its own; only ctx cancellation stops it.
func Connect(ctx context.Context, dial DialFunc, backoff time.Duration) (*Client, error) {
	log.Info().Msg("Initializing GPIO")

	for attempt := 1; ; attempt++ {
		client, err := tryConnect(ctx, dial)
		if err == nil {
			return client, nil
		}

		log.Warn().Err(err).Int("attempt", attempt).Msg("Failed to initialize connection to pigpiod, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func tryConnect(ctx context.Context, dial DialFunc) (*Client, error) {
	conn, err := dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial pigpiod: %w", err)
	}

	client := NewClient(conn)
	version, err := client.Version()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("query pigpiod version: %w", err)
	}

	log.Info().Uint32("version", version).Msg("Connected to pigpiod")
	return client, nil
}

// Version returns the pigpio library version.
func (c *Client) Version() (uint32, error) {
	res, err := c.command(cmdPigpv, 0, 0, nil)
	return uint32(res), err
}

// SetMode sets the mode of a pin.
func (c *Client) SetMode(pin uint, mode Mode) error {
	_, err := c.command(cmdModes, uint32(pin), uint32(mode), nil)
	return err
}

// Write drives an output pin.
func (c *Client) Write(pin uint, level Level) error {
	_, err := c.command(cmdWrite, uint32(pin), uint32(level), nil)
	return err
}

// Read returns the level of a pin.
func (c *Client) Read(pin uint) (Level, error) {
	res, err := c.command(cmdRead, uint32(pin), 0, nil)
	if err != nil {
		return Low, err
	}
	if res != 0 {
		return High, nil
	}
	return Low, nil
}

// OpenI2C opens a handle to the device at addr on the given bus.
func (c *Client) OpenI2C(bus, addr uint) (*I2CDevice, error) {
	res, err := c.command(cmdI2CO, uint32(bus), uint32(addr), u32ext(0))
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %d addr 0x%02x: %w", bus, addr, err)
	}
	return &I2CDevice{client: c, handle: uint32(res)}, nil
}

// Close closes the socket.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// command sends one request and returns the daemon's result field.
func (c *Client) command(cmd, p1, p2 uint32, ext []byte) (int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, ErrClosed
	}

	req := make([]byte, 16+len(ext))
	binary.LittleEndian.PutUint32(req[0:], cmd)
	binary.LittleEndian.PutUint32(req[4:], p1)
	binary.LittleEndian.PutUint32(req[8:], p2)
	binary.LittleEndian.PutUint32(req[12:], uint32(len(ext)))
	copy(req[16:], ext)

	if c.timeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
	}

	if _, err := c.conn.Write(req); err != nil {
		return 0, fmt.Errorf("write command %d: %w", cmd, err)
	}

	var resp [16]byte
	if _, err := io.ReadFull(c.conn, resp[:]); err != nil {
		return 0, fmt.Errorf("read response to command %d: %w", cmd, err)
	}

	res := int32(binary.LittleEndian.Uint32(resp[12:]))
	if res < 0 {
		return res, fmt.Errorf("%w: command %d returned %d", ErrCommand, cmd, res)
	}
	return res, nil
}

func u32ext(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// I2CDevice is an open pigpiod I2C handle.
type I2CDevice struct {
	client *Client
	handle uint32
}

// ReadByteData reads a single register.
func (d *I2CDevice) ReadByteData(reg byte) (byte, error) {
	res, err := d.client.command(cmdI2CRB, d.handle, uint32(reg), nil)
	if err != nil {
		return 0, fmt.Errorf("i2c read reg 0x%02x: %w", reg, err)
	}
	return byte(res), nil
}

// WriteByteData writes a single register.
func (d *I2CDevice) WriteByteData(reg, value byte) error {
	if _, err := d.client.command(cmdI2CWB, d.handle, uint32(reg), u32ext(uint32(value))); err != nil {
		return fmt.Errorf("i2c write reg 0x%02x: %w", reg, err)
	}
	return nil
}

// Close releases the handle.
func (d *I2CDevice) Close() error {
	_, err := d.client.command(cmdI2CC, d.handle, 0, nil)
	return err
}
