package pirasmart

import "errors"

var (
	// ErrOpen indicates the serial port to the microcontroller could not be opened
	ErrOpen = errors.New("pirasmart: open serial port")

	// ErrDecode indicates a read cycle was aborted after consecutive undecodable frames
	ErrDecode = errors.New("pirasmart: frame decode failed")

	// ErrRead indicates the serial line returned an I/O error
	ErrRead = errors.New("pirasmart: serial read failed")

	// ErrWrite indicates a frame could not be written to the serial line
	ErrWrite = errors.New("pirasmart: serial write failed")

	// ErrValueRange indicates a value does not fit the 32-bit wire format
	ErrValueRange = errors.New("pirasmart: value out of range")
)
