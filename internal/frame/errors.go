package frame

import "fmt"

// DecodeReason identifies why a frame was rejected.
type DecodeReason string

const (
	InvalidLength  DecodeReason = "invalid_length"
	InvalidFraming DecodeReason = "invalid_framing"
	UnknownKind    DecodeReason = "unknown_kind"
)

// DecodeError is returned by Decode for any malformed frame.
type DecodeError struct {
	Reason DecodeReason
	Frame  []byte
}

func newDecodeError(reason DecodeReason, b []byte) *DecodeError {
	return &DecodeError{Reason: reason, Frame: append([]byte(nil), b...)}
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Frame == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: % x", e.Reason, e.Frame)
}

// Is lets errors.Is match DecodeError values by Reason.
func (e *DecodeError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*DecodeError)
	if !ok {
		return false
	}
	return e.Reason == t.Reason
}

var (
	ErrInvalidLength  = &DecodeError{Reason: InvalidLength}
	ErrInvalidFraming = &DecodeError{Reason: InvalidFraming}
	ErrUnknownKind    = &DecodeError{Reason: UnknownKind}
)
