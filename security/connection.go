package security

import (
	"crypto/x509"

	"github.com/brickingsoft/errors"
	"github.com/google/uuid"
	"github.com/linearregression/trireme/pkg/bytebuffers"
	"github.com/rs/zerolog"
)

// Role selects which side of the handshake the connection plays.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (role Role) String() string {
	if role == RoleServer {
		return "server"
	}
	return "client"
}

// Callbacks the upper layer hangs on a Connection. Any may be absent.
//
// WriteCallback receives ciphertext to transmit; when transmission is done
// the upper layer fires the completion, if present. ReadCallback receives
// decrypted plaintext; a non-zero code signals inbound EOF or a lower-layer
// error.
type (
	WriteCallback     func(p []byte, shutdown bool, cb Completion)
	ReadCallback      func(p []byte, code int)
	LifecycleCallback func()
	ErrorCallback     func(err error)
)

type Options struct {
	Logger zerolog.Logger
}

type Option func(options *Options) (err error)

// WithLogger sets the base logger. The connection derives a sub-logger
// carrying a connection id and the role.
func WithLogger(logger zerolog.Logger) Option {
	return func(options *Options) (err error) {
		options.Logger = logger
		return
	}
}

// Connection bridges a byte-stream layer and a TLS engine, in memory only.
// It owns the engine, two chunk queues and two scratch buffers, and must be
// used from a single event-loop context; only delegated tasks leave it.
type Connection struct {
	runtime    Runtime
	role       Role
	serverName string
	serverPort int

	requestCert        bool
	rejectUnauthorized bool

	engine     Engine
	trustStore TrustStore

	outgoing []*chunk
	incoming []*chunk

	readBuf  bytebuffers.Buffer
	writeBuf bytebuffers.Buffer

	handshaking      bool
	initFinished     bool
	sentShutdown     bool
	receivedShutdown bool

	err       error
	verifyErr error

	onWrite          WriteCallback
	onRead           ReadCallback
	onHandshakeStart LifecycleCallback
	onHandshakeDone  LifecycleCallback
	onError          ErrorCallback

	log zerolog.Logger
}

func NewConnection(rt Runtime, role Role, serverName string, serverPort int, options ...Option) (conn *Connection, err error) {
	opt := Options{
		Logger: zerolog.Nop(),
	}
	for _, option := range options {
		if err = option(&opt); err != nil {
			return
		}
	}
	conn = &Connection{
		runtime:    rt,
		role:       role,
		serverName: serverName,
		serverPort: serverPort,
		log: opt.Logger.With().
			Str("conn", uuid.NewString()).
			Stringer("role", role).
			Logger(),
	}
	return
}

// Init finalizes the engine: mints it (with the server-name hint iff this is
// a client that has one), sets the mode, sizes both scratch buffers to the
// engine's packet size, and applies cipher restrictions last. A cipher
// rejection is captured into the error slot, not returned, so the rest of the
// setup stays usable and later operations observe the error naturally.
func (conn *Connection) Init(engines EngineContext, ciphers []string, trustStore TrustStore) {
	conn.trustStore = trustStore

	if conn.role == RoleClient && conn.serverName != "" {
		conn.engine = engines.NewClientEngine(conn.serverName, conn.serverPort)
	} else {
		conn.engine = engines.NewEngine()
	}
	conn.engine.SetClientMode(conn.role == RoleClient)

	size := conn.engine.PacketSize()
	conn.log.Debug().Int("size", size).Msg("allocating read and write buffers")
	conn.readBuf = bytebuffers.NewBufferWithSize(size)
	conn.writeBuf = bytebuffers.NewBufferWithSize(size)

	if ciphers != nil {
		if cipherErr := conn.engine.SetEnabledCipherSuites(ciphers); cipherErr != nil {
			conn.handleError(errors.From(
				ErrCipherSuites,
				errors.WithWrap(cipherErr),
				errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			))
		}
	}
}

// SetVerificationMode sets the server-side client-auth policy: request and
// reject means client auth is required, request alone means it is invited.
func (conn *Connection) SetVerificationMode(requestCert bool, rejectUnauthorized bool) {
	conn.requestCert = requestCert
	conn.rejectUnauthorized = rejectUnauthorized

	if requestCert {
		if rejectUnauthorized {
			conn.engine.SetNeedClientAuth(true)
		} else {
			conn.engine.SetWantClientAuth(true)
		}
	}
}

func (conn *Connection) SetWriteCallback(cb WriteCallback) {
	conn.onWrite = cb
}

func (conn *Connection) SetReadCallback(cb ReadCallback) {
	conn.onRead = cb
}

func (conn *Connection) SetHandshakeStartCallback(cb LifecycleCallback) {
	conn.onHandshakeStart = cb
}

func (conn *Connection) SetHandshakeDoneCallback(cb LifecycleCallback) {
	conn.onHandshakeDone = cb
}

func (conn *Connection) SetErrorCallback(cb ErrorCallback) {
	conn.onError = cb
}

// Wrap queues plaintext for encryption. A nil buf is a pure handshake kick.
// The completion fires once the corresponding records were offered to the
// write callback, never before the handshake finished.
func (conn *Connection) Wrap(buf []byte, cb Completion) {
	conn.outgoing = append(conn.outgoing, newChunk(buf, false, cb))
	conn.encodeLoop()
}

// Shutdown queues a close-notify for the outbound side.
func (conn *Connection) Shutdown(cb Completion) {
	conn.outgoing = append(conn.outgoing, newChunk(nil, true, cb))
	conn.encodeLoop()
}

// ShutdownInbound closes the engine's inbound side directly, acknowledges,
// then unwraps once so the reader sees EOF before any further wrapping.
func (conn *Connection) ShutdownInbound(cb Completion) {
	if err := conn.engine.CloseInbound(); err != nil {
		conn.log.Debug().Err(err).Msg("error closing inbound engine side")
	}
	if cb != nil {
		cb(nil)
	}

	conn.doUnwrap()
	conn.encodeLoop()
}

// Unwrap queues ciphertext for decryption. The completion fires when the
// chunk was consumed and more data may be supplied.
func (conn *Connection) Unwrap(buf []byte, cb Completion) {
	if buf == nil {
		buf = []byte{}
	}
	conn.incoming = append(conn.incoming, newChunk(buf, false, cb))
	conn.encodeLoop()
}

// InboundError queues a lower-layer error code so it surfaces to the read
// callback in order, after all ciphertext queued before it.
func (conn *Connection) InboundError(code int) {
	c := newChunk(nil, false, nil)
	c.inboundErr = code
	conn.incoming = append(conn.incoming, c)
	conn.encodeLoop()
}

// Start kicks off the handshake. Clients only; the first wrap produces the
// ClientHello.
func (conn *Connection) Start() {
	if conn.role == RoleClient {
		conn.Wrap(nil, nil)
	}
}

func (conn *Connection) Error() (err error) {
	err = conn.err
	return
}

func (conn *Connection) VerifyError() (err error) {
	err = conn.verifyErr
	return
}

func (conn *Connection) InitFinished() bool {
	return conn.initFinished
}

func (conn *Connection) SentShutdown() bool {
	return conn.sentShutdown
}

func (conn *Connection) ReceivedShutdown() bool {
	return conn.receivedShutdown
}

// WriteQueueLength is the sum of bytes still waiting on the outgoing queue.
func (conn *Connection) WriteQueueLength() (n int) {
	for _, c := range conn.outgoing {
		n += len(c.buf)
	}
	return
}

// PeerCertificate returns the first certificate of the peer chain, or nil
// when there is no session yet or the peer is unverified.
func (conn *Connection) PeerCertificate() (cert *x509.Certificate) {
	session, has := conn.engine.Session()
	if !has {
		return
	}
	chain, err := session.PeerCertificates()
	if err != nil {
		conn.log.Debug().Err(err).Msg("peer certificates unavailable")
		return
	}
	if len(chain) > 0 {
		cert = chain[0]
	}
	return
}

func (conn *Connection) CipherSuite() (name string) {
	session, has := conn.engine.Session()
	if !has {
		return
	}
	name = session.CipherSuite()
	return
}

func (conn *Connection) Protocol() (name string) {
	session, has := conn.engine.Session()
	if !has {
		return
	}
	name = session.Protocol()
	return
}

func (conn *Connection) peekOutgoing() (c *chunk) {
	if len(conn.outgoing) > 0 {
		c = conn.outgoing[0]
	}
	return
}

func (conn *Connection) popOutgoing() (c *chunk) {
	if len(conn.outgoing) > 0 {
		c = conn.outgoing[0]
		conn.outgoing[0] = nil
		conn.outgoing = conn.outgoing[1:]
	}
	return
}

func (conn *Connection) peekIncoming() (c *chunk) {
	if len(conn.incoming) > 0 {
		c = conn.incoming[0]
	}
	return
}

func (conn *Connection) popIncoming() (c *chunk) {
	if len(conn.incoming) > 0 {
		c = conn.incoming[0]
		conn.incoming[0] = nil
		conn.incoming = conn.incoming[1:]
	}
	return
}
