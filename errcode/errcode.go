package errcode

import "errors"

// Code is a stable peripheral error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
//
// Codes are grouped into closed sets, one per operation class. An operation
// documents which set it draws from and never produces a code outside it;
// callers may treat each set as exhaustive.
type Code string

func (c Code) Error() string { return string(c) }

// Configuration errors.
const (
	// Busy rejects Configure while a transfer is active on the instance.
	Busy Code = "busy"

	BaudRateNotSupported    Code = "baud_rate_not_supported"
	AutoBaudNotSupported    Code = "auto_baud_not_supported"
	BaudRatePrecision       Code = "baud_rate_precision"
	WordSizeNotSupported    Code = "word_size_not_supported"
	StopBitsNotSupported    Code = "stop_bits_not_supported"
	ParityNotSupported      Code = "parity_not_supported"
	FlowControlNotSupported Code = "flow_control_not_supported"
	FrequencyNotSupported   Code = "frequency_not_supported"
	ModeNotSupported        Code = "mode_not_supported"
)

// Begin/start errors.
const (
	// InProgress rejects a begin/start while that direction already has an
	// active transfer. The active transfer is left untouched.
	InProgress Code = "in_progress"
)

// In-transfer errors. A transfer that completes with one of these reports
// accurate progress in its byte counter.
const (
	BufferOverrun  Code = "buffer_overrun"
	ParityError    Code = "parity_error"
	FramingError   Code = "framing_error"
	BreakInterrupt Code = "break_interrupt"
	Timeout        Code = "timeout"
	NoAck          Code = "no_ack"
	Aborted        Code = "aborted"
)

// Completion-retrieval errors.
const (
	// NotDone rejects an end-operation called before the transfer's done
	// flag is set.
	NotDone Code = "not_done"
)

// GPIO configuration and pin resolution errors.
const (
	UnsupportedDirection Code = "unsupported_direction"
	UnsupportedPull      Code = "unsupported_pull"
	UnknownPin           Code = "unknown_pin"
)

const (
	OK    Code = "ok"
	Error Code = "error" // generic fallback for foreign causes
)

// E wraps a Code with call-site context and an optional cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, looking through wrapping, defaulting
// to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	var x interface{ Code() Code }
	if errors.As(err, &x) {
		return x.Code()
	}
	return Error
}
