package pirasmart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Read cycle defaults.
const (
	DefaultCycleTimeout      = 5 * time.Second
	DefaultMaxDecodeFailures = 3
)

// Value is a single reported microcontroller value. Valid is false until a
// frame carrying it has been decoded.
type Value struct {
	Raw   uint32
	Valid bool
}

// Seconds returns the value as a duration in seconds.
func (v Value) Seconds() (time.Duration, bool) {
	return time.Duration(v.Raw) * time.Second, v.Valid
}

// Timers is the last known state reported by PiraSmart.
type Timers struct {
	Time         Value
	OnRemaining  Value
	Battery      Value
	OnPeriod     Value
	OffPeriod    Value
	RebootPeriod Value
	WakeupPeriod Value
	StatusPin    Value

	// Frames is the number of tags decoded in the last read cycle. Zero
	// after a successful Read means PiraSmart sent nothing before the timeout.
	Frames int
}

// Voltage converts the raw battery reading to volts.
func (t Timers) Voltage() (float64, bool) {
	return float64(t.Battery.Raw) * VoltageScale, t.Battery.Valid
}

// RTC returns the microcontroller clock.
func (t Timers) RTC() (time.Time, bool) {
	return time.Unix(int64(t.Time.Raw), 0).UTC(), t.Time.Valid
}

// Get returns the value for a read tag.
func (t Timers) Get(tag Tag) Value {
	if p := t.field(tag); p != nil {
		return *p
	}
	return Value{}
}

// Complete reports whether every read tag has a value.
func (t Timers) Complete() bool {
	for _, tag := range ReadTags {
		if !t.Get(tag).Valid {
			return false
		}
	}
	return true
}

func (t *Timers) field(tag Tag) *Value {
	switch tag {
	case TagTime:
		return &t.Time
	case TagOnRemaining:
		return &t.OnRemaining
	case TagBattery:
		return &t.Battery
	case TagOnPeriod:
		return &t.OnPeriod
	case TagOffPeriod:
		return &t.OffPeriod
	case TagRebootPeriod:
		return &t.RebootPeriod
	case TagWakeupPeriod:
		return &t.WakeupPeriod
	case TagStatusPin:
		return &t.StatusPin
	default:
		return nil
	}
}

// Link drives the UART protocol to the PiraSmart safety microcontroller.
type Link struct {
	port Port

	mu     sync.RWMutex
	timers Timers

	cycleTimeout time.Duration
	maxFailures  int
	now          func() time.Time
}

// Option configures a Link.
type Option func(*Link)

// WithCycleTimeout bounds how long Read waits for a complete set of frames.
func WithCycleTimeout(d time.Duration) Option {
	return func(l *Link) {
		if d > 0 {
			l.cycleTimeout = d
		}
	}
}

// WithMaxDecodeFailures sets how many consecutive bad frames abort a read.
func WithMaxDecodeFailures(n int) Option {
	return func(l *Link) {
		if n > 0 {
			l.maxFailures = n
		}
	}
}

// WithClock replaces the wall clock used for the read deadline.
func WithClock(now func() time.Time) Option {
	return func(l *Link) {
		l.now = now
	}
}

// NewLink creates a link over an already opened port.
func NewLink(port Port, opts ...Option) *Link {
	l := &Link{
		port:         port,
		cycleTimeout: DefaultCycleTimeout,
		maxFailures:  DefaultMaxDecodeFailures,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open opens the serial port and returns a link. Failure wraps ErrOpen.
func Open(portPath string, opts ...Option) (*Link, error) {
	port, err := OpenSerial(portPath, DefaultReadTimeout)
	if err != nil {
		return nil, err
	}
	return NewLink(port, opts...), nil
}

// Read runs one read cycle. It returns nil once every read tag has been seen
// or the cycle timeout elapses; values seen in a timed out cycle are kept and
// unseen ones keep their previous state. After maxFailures consecutive
// undecodable frames all values are reset and an ErrDecode error is returned.
func (l *Link) Read(ctx context.Context) error {
	if err := l.port.ResetInputBuffer(); err != nil {
		log.Warn().Err(err).Msg("Failed to flush PiraSmart input buffer")
	}

	deadline := l.now().Add(l.cycleTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	reader := newFrameReader(l.port, l.now)
	seen := make(map[Tag]bool, len(ReadTags))
	failures := 0

	for len(seen) < len(ReadTags) {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := reader.next(deadline)
		if errors.Is(err, errReadDeadline) {
			l.setFrames(len(seen))
			if len(seen) == 0 {
				log.Error().Dur("timeout", l.cycleTimeout).Msg("PiraSmart sent no frames, is it connected?")
				return nil
			}
			log.Warn().
				Int("seen", len(seen)).
				Int("expected", len(ReadTags)).
				Dur("timeout", l.cycleTimeout).
				Msg("PiraSmart read cycle timed out")
			return nil
		}
		if err != nil {
			l.reset()
			return fmt.Errorf("%w: %w", ErrRead, err)
		}

		tag, value, err := DecodeFrame(line)
		if err != nil {
			failures++
			log.Warn().Err(err).Int("failures", failures).Hex("frame", line).Msg("PiraSmart frame rejected")
			if failures >= l.maxFailures {
				l.reset()
				return fmt.Errorf("%w: %d consecutive frames", ErrDecode, failures)
			}
			continue
		}
		failures = 0

		if tag == TagReserved {
			continue
		}

		l.mu.Lock()
		*l.timers.field(tag) = Value{Raw: value, Valid: true}
		l.mu.Unlock()
		seen[tag] = true
	}

	l.setFrames(len(seen))
	log.Debug().Msg("PiraSmart read cycle complete")
	return nil
}

func (l *Link) setFrames(n int) {
	l.mu.Lock()
	l.timers.Frames = n
	l.mu.Unlock()
}

func (l *Link) reset() {
	l.mu.Lock()
	l.timers = Timers{}
	l.mu.Unlock()
}

// Timers returns a copy of the last known values.
func (l *Link) Timers() Timers {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.timers
}

// SetTime writes the RTC time.
func (l *Link) SetTime(t time.Time) error {
	epoch := t.Unix()
	if epoch < 0 || epoch > math.MaxUint32 {
		return fmt.Errorf("%w: epoch %d", ErrValueRange, epoch)
	}
	return l.write(TagTime, uint32(epoch))
}

// SetOnPeriod writes the safety on period in seconds.
func (l *Link) SetOnPeriod(seconds uint32) error {
	return l.write(TagOnPeriod, seconds)
}

// SetOffPeriod writes the safety off period in seconds.
func (l *Link) SetOffPeriod(seconds uint32) error {
	return l.write(TagOffPeriod, seconds)
}

// SetRebootPeriod writes the reboot period in seconds.
func (l *Link) SetRebootPeriod(seconds uint32) error {
	return l.write(TagRebootPeriod, seconds)
}

// SetWakeupPeriod writes the time until the next wakeup in seconds.
func (l *Link) SetWakeupPeriod(seconds uint32) error {
	return l.write(TagWakeupPeriod, seconds)
}

// write sends a frame. There is no acknowledgement.
func (l *Link) write(tag Tag, value uint32) error {
	if _, err := l.port.Write(EncodeFrame(tag, value)); err != nil {
		return fmt.Errorf("%w: tag %s: %w", ErrWrite, tag, err)
	}
	log.Debug().Str("tag", tag.String()).Uint32("value", value).Msg("PiraSmart TX")
	return nil
}

// Close closes the underlying port.
func (l *Link) Close() error {
	return l.port.Close()
}

// SecondsFromDuration converts a duration to a wire value, rounding to the
// nearest second and clamping to the uint32 range.
func SecondsFromDuration(d time.Duration) uint32 {
	s := math.Round(d.Seconds())
	switch {
	case s <= 0:
		return 0
	case s >= math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(s)
	}
}
