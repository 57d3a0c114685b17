package errcode

import "errors"

// Code is a stable, log-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	Unsupported   Code = "unsupported"
	InvalidConfig Code = "invalid_config"

	// Sensor
	SensorDisconnected Code = "sensor_disconnected"
	SensorTimeout      Code = "sensor_timeout"

	// Network
	LinkDown       Code = "link_down"
	NetworkConnect Code = "network_connect"
	NetworkSend    Code = "network_send"

	// Storage
	StorageOpen  Code = "storage_open"
	StorageWrite Code = "storage_write"
	StorageRead  Code = "storage_read"
	NotFound     Code = "not_found"

	// Buffer
	BufferFull Code = "buffer_full"

	// Startup
	InitFailed Code = "init_failed"

	Error Code = "error" // generic fallback
)

// Class groups codes into the recovery taxonomy used by the scheduler.
type Class uint8

const (
	ClassNone Class = iota
	ClassSensor
	ClassNetwork
	ClassStorage
	ClassInit
	ClassOther
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassSensor:
		return "sensor"
	case ClassNetwork:
		return "network"
	case ClassStorage:
		return "storage"
	case ClassInit:
		return "init"
	default:
		return "other"
	}
}

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap attaches an operation and cause to a code. A nil cause still yields an error.
func Wrap(c Code, op string, err error) error {
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
// Wrapped chains are walked outermost first so fmt.Errorf("%w") keeps the code.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	type coder interface{ Code() Code }
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch x := e.(type) {
		case Code:
			return x
		case coder:
			return x.Code()
		}
	}
	return Error
}

// ClassOf maps an error to its recovery class.
func ClassOf(err error) Class {
	switch Of(err) {
	case OK:
		return ClassNone
	case SensorDisconnected, SensorTimeout:
		return ClassSensor
	case LinkDown, NetworkConnect, NetworkSend:
		return ClassNetwork
	case StorageOpen, StorageWrite, StorageRead, NotFound:
		return ClassStorage
	case InitFailed, InvalidConfig, Unsupported:
		return ClassInit
	default:
		return ClassOther
	}
}

// Fatal reports whether err must stop the node. Only startup failures do;
// everything else is recovered where it happens.
func Fatal(err error) bool { return ClassOf(err) == ClassInit }
