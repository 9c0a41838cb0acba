package pdu

import "errors"

// Numeric wire error codes, carried in a PDU's err_num field. These mirror
// the original protocol's error taxonomy exactly; Go call sites use the
// sentinel errors below instead of comparing ints directly.
const (
	NoError          int32 = 0
	ErrorGeneral     int32 = -1
	ErrorProtocol    int32 = -2
	BuffUndersized   int32 = -4
	BuffOversized    int32 = -8
	ConnectionClosed int32 = -16
	ErrorBadDgram    int32 = -32
)

var (
	// ErrBadDatagram is returned when a received datagram is smaller than
	// the PDU header.
	ErrBadDatagram = errors.New("pdu: datagram shorter than header")
	// ErrBufferUndersized is returned when the frame's declared dgram_sz
	// exceeds the caller's destination buffer.
	ErrBufferUndersized = errors.New("pdu: declared size exceeds destination buffer")
	// ErrBufferOversized is returned when a caller asks to receive more
	// than MAX_DGRAM_SZ at once.
	ErrBufferOversized = errors.New("pdu: requested size exceeds max datagram size")
	// ErrProtocol signals a mismatched or unexpected mtype during a
	// handshake or response.
	ErrProtocol = errors.New("pdu: unexpected message type")
	// ErrConnectionClosed signals normal termination via CLOSE/CLOSEACK.
	ErrConnectionClosed = errors.New("pdu: connection closed")
)

// WireError pairs a Go error with the numeric code that travels on the
// wire in a PDU's err_num field, for call sites that need to reconstruct
// an ERROR PDU from a local validation failure.
type WireError struct {
	Code int32
	Err  error
}

func (e *WireError) Error() string { return e.Err.Error() }
func (e *WireError) Unwrap() error { return e.Err }

// CodeFor maps a sentinel error to its wire code, defaulting to
// ErrorGeneral for anything unrecognized.
func CodeFor(err error) int32 {
	switch {
	case errors.Is(err, ErrBadDatagram):
		return ErrorBadDgram
	case errors.Is(err, ErrBufferUndersized):
		return BuffUndersized
	case errors.Is(err, ErrBufferOversized):
		return BuffOversized
	case errors.Is(err, ErrProtocol):
		return ErrorProtocol
	case errors.Is(err, ErrConnectionClosed):
		return ConnectionClosed
	default:
		return ErrorGeneral
	}
}
