package security

import (
	"crypto/x509"

	"github.com/linearregression/trireme/pkg/bytebuffers"
)

// Status is the outcome of a single wrap or unwrap call.
type Status int

const (
	StatusOK Status = iota
	StatusBufferOverflow
	StatusBufferUnderflow
	StatusClosed
)

func (status Status) String() string {
	switch status {
	case StatusOK:
		return "OK"
	case StatusBufferOverflow:
		return "BUFFER_OVERFLOW"
	case StatusBufferUnderflow:
		return "BUFFER_UNDERFLOW"
	case StatusClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// HandshakeStatus is the engine's current demand on its host.
type HandshakeStatus int

const (
	HandshakeNotHandshaking HandshakeStatus = iota
	HandshakeNeedWrap
	HandshakeNeedUnwrap
	HandshakeNeedTask
	HandshakeFinished
)

func (status HandshakeStatus) String() string {
	switch status {
	case HandshakeNotHandshaking:
		return "NOT_HANDSHAKING"
	case HandshakeNeedWrap:
		return "NEED_WRAP"
	case HandshakeNeedUnwrap:
		return "NEED_UNWRAP"
	case HandshakeNeedTask:
		return "NEED_TASK"
	case HandshakeFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// Result reports what one wrap or unwrap call did. HandshakeStatus is the
// status after the call; HandshakeFinished is reported exactly once, on the
// call that completed the handshake.
type Result struct {
	Status          Status
	HandshakeStatus HandshakeStatus
	BytesConsumed   int
	BytesProduced   int
}

// Engine is the TLS record primitive the adapter drives. Wrap transforms
// plaintext into records appended to dst, Unwrap does the reverse. Both
// report BUFFER_OVERFLOW when dst's free area is too small and consume
// nothing in that case; Unwrap reports BUFFER_UNDERFLOW when src does not
// hold a whole record.
//
// All methods except DelegatedTask and the returned tasks must be used from
// the event-loop context only.
type Engine interface {
	Wrap(src []byte, dst bytebuffers.Buffer) (result Result, err error)
	Unwrap(src []byte, dst bytebuffers.Buffer) (result Result, err error)
	HandshakeStatus() (status HandshakeStatus)
	// DelegatedTask hands out the next blocking task, if any.
	DelegatedTask() (task func(), ok bool)
	CloseInbound() (err error)
	CloseOutbound()
	// PacketSize is the engine's maximum record size, used to size the
	// adapter's scratch buffers.
	PacketSize() (n int)
	SetClientMode(client bool)
	SetEnabledCipherSuites(suites []string) (err error)
	SetNeedClientAuth(need bool)
	SetWantClientAuth(want bool)
	Session() (session Session, has bool)
}

// Session exposes the negotiated TLS session.
type Session interface {
	// PeerCertificates returns the peer chain, leaf first. It fails with
	// ErrPeerUnverified when the peer did not authenticate itself.
	PeerCertificates() (chain []*x509.Certificate, err error)
	CipherSuite() (name string)
	Protocol() (name string)
}

// EngineContext mints engines. The client form carries the server name and
// port so the engine can offer SNI and session resumption hints.
type EngineContext interface {
	NewEngine() (engine Engine)
	NewClientEngine(serverName string, serverPort int) (engine Engine)
}
