package pirasmart

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// Tag identifies the value carried by a frame.
type Tag byte

// Frame tags. Reads report every tag except TagReserved; writes use
// t, p, s, r and w.
const (
	TagTime         Tag = 't' // RTC time, epoch seconds
	TagOnRemaining  Tag = 'o' // overview: remaining on time, seconds
	TagBattery      Tag = 'b' // battery, raw ADC counts
	TagOnPeriod     Tag = 'p' // safety on period, seconds
	TagOffPeriod    Tag = 's' // safety off period, seconds
	TagRebootPeriod Tag = 'r' // reboot period, seconds
	TagWakeupPeriod Tag = 'w' // next wakeup, seconds
	TagStatusPin    Tag = 'a' // RPi status pin, 0/1
	TagReserved     Tag = 'c'
)

// Wire format constants.
const (
	// FrameLen is tag, ':', four big-endian value bytes and '\n'.
	FrameLen = 7

	// VoltageScale converts raw battery ADC counts to volts.
	VoltageScale = 0.0164

	payloadLen   = FrameLen - 1
	maxLineLen   = 64
	frameDivider = ':'
)

// ReadTags are the tags a complete read cycle must observe.
var ReadTags = []Tag{
	TagTime,
	TagOnRemaining,
	TagBattery,
	TagOnPeriod,
	TagOffPeriod,
	TagRebootPeriod,
	TagWakeupPeriod,
	TagStatusPin,
}

func (t Tag) known() bool {
	if t == TagReserved {
		return true
	}
	for _, r := range ReadTags {
		if r == t {
			return true
		}
	}
	return false
}

// String returns the tag character.
func (t Tag) String() string {
	return string(rune(t))
}

// EncodeFrame serializes a single <tag>:<uint32 BE>\n frame.
func EncodeFrame(tag Tag, value uint32) []byte {
	frame := make([]byte, FrameLen)
	frame[0] = byte(tag)
	frame[1] = frameDivider
	binary.BigEndian.PutUint32(frame[2:6], value)
	frame[6] = '\n'
	return frame
}

// DecodeFrame parses a frame with or without its trailing newline.
func DecodeFrame(line []byte) (Tag, uint32, error) {
	if n := len(line); n == FrameLen && line[n-1] == '\n' {
		line = line[:n-1]
	}
	if len(line) != payloadLen {
		return 0, 0, fmt.Errorf("%w: frame length %d, want %d", ErrDecode, len(line), payloadLen)
	}
	if line[1] != frameDivider {
		return 0, 0, fmt.Errorf("%w: missing divider in %q", ErrDecode, line)
	}
	tag := Tag(line[0])
	if !tag.known() {
		return 0, 0, fmt.Errorf("%w: unknown tag %q", ErrDecode, line[0])
	}
	return tag, binary.BigEndian.Uint32(line[2:]), nil
}

// errReadDeadline is returned by frameReader when the cycle deadline passes.
var errReadDeadline = errors.New("pirasmart: read deadline reached")

// frameReader splits the serial byte stream into newline-terminated frames.
// A newline inside the four value bytes of a tagged frame is kept as data.
type frameReader struct {
	port    io.Reader
	now     func() time.Time
	chunk   [32]byte
	pending []byte
	line    []byte
}

func newFrameReader(port io.Reader, now func() time.Time) *frameReader {
	return &frameReader{port: port, now: now}
}

func (fr *frameReader) inValue() bool {
	return len(fr.line) >= 2 && fr.line[1] == frameDivider && len(fr.line) < payloadLen
}

func (fr *frameReader) next(deadline time.Time) ([]byte, error) {
	for {
		for len(fr.pending) > 0 {
			b := fr.pending[0]
			fr.pending = fr.pending[1:]

			if b == '\n' && !fr.inValue() {
				return fr.take(), nil
			}
			fr.line = append(fr.line, b)
			if len(fr.line) >= maxLineLen {
				return fr.take(), nil
			}
		}

		if !fr.now().Before(deadline) {
			return nil, errReadDeadline
		}

		n, err := fr.port.Read(fr.chunk[:])
		if err != nil {
			return nil, err
		}
		fr.pending = fr.chunk[:n]
	}
}

func (fr *frameReader) take() []byte {
	line := make([]byte, len(fr.line))
	copy(line, fr.line)
	fr.line = fr.line[:0]
	return line
}
