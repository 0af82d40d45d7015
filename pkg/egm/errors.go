package egm

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed is returned when bytes do not parse as an EGM message.
	ErrMalformed = errors.New("egm: malformed message")

	// ErrInvalidHeader marks a parsed message whose header lacks the
	// sequence number or timestamp.
	ErrInvalidHeader = errors.New("egm: invalid header")

	// ErrSendFailed is returned when the transport rejects a datagram or
	// reports a non-positive byte count.
	ErrSendFailed = errors.New("egm: send failed")

	// ErrReceiveFailed marks a broken receive channel.
	ErrReceiveFailed = errors.New("egm: receive failed")

	errNoRobotFields = errors.New("no EgmRobot fields")
)

// DecodeError describes where decoding stopped.
type DecodeError struct {
	Path   string // dotted field path, e.g. "feedBack.cartesian.pos"
	Offset int    // byte offset within the enclosing message
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("egm: malformed message at offset %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("egm: malformed %s at offset %d: %v", e.Path, e.Offset, e.Err)
}

// Unwrap lets errors.Is match both ErrMalformed and the underlying cause.
func (e *DecodeError) Unwrap() []error {
	return []error{ErrMalformed, e.Err}
}
