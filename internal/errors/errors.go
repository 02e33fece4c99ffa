package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so that callers can decide how to report it.
type Kind int

const (
	KindUnknown Kind = iota
	KindDecode
	KindCodec
	KindIO
	KindConfig
)

// String returns the short name of the kind.
func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindCodec:
		return "codec"
	case KindIO:
		return "io"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Error is a typed failure carrying the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Predefined errors
var (
	ErrEmptyInput = errors.New("empty input")

	ErrEmptyOutput = errors.New("encoder produced no output")

	ErrUnsupportedHEIC = errors.New("unsupported or corrupted HEIC")

	ErrQualityTooLow = errors.New("quantized image is below the minimum quality")
)

// Decode wraps err as a decode failure of op.
func Decode(op string, err error) *Error {
	return &Error{Kind: KindDecode, Op: op, Err: err}
}

// Codec wraps err as an encoder failure of op.
func Codec(op string, err error) *Error {
	return &Error{Kind: KindCodec, Op: op, Err: err}
}

// IO wraps err as a filesystem failure of op.
func IO(op string, err error) *Error {
	return &Error{Kind: KindIO, Op: op, Err: err}
}

// Config wraps err as a configuration failure of op.
func Config(op string, err error) *Error {
	return &Error{Kind: KindConfig, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsDecode reports whether err is a decode failure.
func IsDecode(err error) bool {
	return KindOf(err) == KindDecode
}

// IsCodec reports whether err is an encoder failure.
func IsCodec(err error) bool {
	return KindOf(err) == KindCodec
}

// IsIO reports whether err is a filesystem failure.
func IsIO(err error) bool {
	return KindOf(err) == KindIO
}
