package log

import "time"

// Event is one protocol trace record.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the session (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction of the data flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"5,keyasint"`

	// LocalRole is the role of this end of the session.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address, when the transport has one.
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// PeerName is the name the session was opened or pinned with.
	PeerName string `cbor:"8,keyasint,omitempty"`

	// Exactly one of the payloads below is set.
	Data        *DataEvent        `cbor:"10,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"12,keyasint,omitempty"`
}

// Direction indicates the direction of data flow.
type Direction uint8

const (
	// DirectionIn is data received from the peer.
	DirectionIn Direction = 0
	// DirectionOut is data sent by the local end.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Tag returns the prefix used by the text trace format.
func (d Direction) Tag() string {
	switch d {
	case DirectionIn:
		return "Peer"
	case DirectionOut:
		return "Local"
	default:
		return "?"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is plaintext data on the raw endpoints.
	LayerTransport Layer = 0
	// LayerTLS is data carried inside an active TLS session.
	LayerTLS Layer = 1
	// LayerSession is session lifecycle (open, TLS activation, pinning, close).
	LayerSession Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerTLS:
		return "TLS"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryData is a block of bytes read or written.
	CategoryData Category = 0
	// CategoryState is a lifecycle state change.
	CategoryState Category = 1
	// CategoryError is an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryData:
		return "DATA"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role is the local end's role on a session.
type Role uint8

const (
	// RoleClient opened the connection.
	RoleClient Role = 0
	// RoleServer adopted an accepted connection.
	RoleServer Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "CLIENT"
	case RoleServer:
		return "SERVER"
	default:
		return "UNKNOWN"
	}
}

// DataEvent carries the bytes of one read or write call.
type DataEvent struct {
	// Size is the number of bytes transferred.
	Size int `cbor:"1,keyasint"`

	// Data is the transferred bytes (may be truncated for bulk transfers).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates Data holds only a prefix of the transfer.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MaxDataCapture bounds DataEvent.Data for events produced by NewDataEvent.
const MaxDataCapture = 64 * 1024

// NewDataEvent builds a DataEvent for b, copying at most MaxDataCapture bytes.
func NewDataEvent(b []byte) *DataEvent {
	n := len(b)
	if n > MaxDataCapture {
		n = MaxDataCapture
	}
	data := make([]byte, n)
	copy(data, b)
	return &DataEvent{
		Size:      len(b),
		Data:      data,
		Truncated: n < len(b),
	}
}

// StateChangeEvent captures session lifecycle changes.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what changed state.
type StateEntity uint8

const (
	// StateEntityConnection is the underlying connection.
	StateEntityConnection StateEntity = 0
	// StateEntityTLS is the TLS layer of the session.
	StateEntityTLS StateEntity = 1
	// StateEntityTrust is the pinned identity of the peer.
	StateEntityTrust StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityTLS:
		return "TLS"
	case StateEntityTrust:
		return "TRUST"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Fatal marks errors that end the session.
	Fatal bool `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
