package pirasmart

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// DefaultReadTimeout bounds a single blocking read on the serial line.
const DefaultReadTimeout = 2 * time.Second

// Port is the byte stream the link exchanges frames over. A Read that hits
// the port read timeout returns 0, nil.
type Port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
}

// SerialPort wraps a serial connection to the PiraSmart microcontroller.
type SerialPort struct {
	port serial.Port
	mu   sync.Mutex
}

// OpenSerial opens the serial port at 115200 baud, 8N1, with a fixed read timeout.
func OpenSerial(portPath string, readTimeout time.Duration) (*SerialPort, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portPath, mode)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrOpen, portPath, err)
	}

	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("%w %s: set read timeout: %w", ErrOpen, portPath, err)
	}

	log.Info().Str("port", portPath).Dur("read_timeout", readTimeout).Msg("Serial port opened")

	return &SerialPort{port: port}, nil
}

// Write sends raw bytes to the serial port.
func (s *SerialPort) Write(data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Write(data)
}

// Read reads raw bytes from the serial port.
func (s *SerialPort) Read(buf []byte) (int, error) {
	return s.port.Read(buf)
}

// ResetInputBuffer discards bytes received but not yet read.
func (s *SerialPort) ResetInputBuffer() error {
	return s.port.ResetInputBuffer()
}

// Close closes the serial port.
func (s *SerialPort) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Close()
}
