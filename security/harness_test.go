package security_test

import (
	"testing"

	"github.com/linearregression/trireme/security"
	"github.com/stretchr/testify/require"
)

// fakeRuntime keeps everything on the test goroutine. In inline mode
// blocking jobs and posted jobs run immediately; otherwise they queue and the
// test drains them explicitly to observe the offload handoff.
type fakeRuntime struct {
	inline   bool
	domain   any
	blocking []func()
	posted   []func()
	domains  []any
}

func (rt *fakeRuntime) SubmitBlocking(job func()) {
	if rt.inline {
		job()
		return
	}
	rt.blocking = append(rt.blocking, job)
}

func (rt *fakeRuntime) PostToEventLoop(job func(), domain any) {
	rt.domains = append(rt.domains, domain)
	if rt.inline {
		job()
		return
	}
	rt.posted = append(rt.posted, job)
}

func (rt *fakeRuntime) Domain() (domain any) {
	domain = rt.domain
	return
}

func (rt *fakeRuntime) drainBlocking() {
	jobs := rt.blocking
	rt.blocking = nil
	for _, job := range jobs {
		job()
	}
}

func (rt *fakeRuntime) drainPosted() {
	jobs := rt.posted
	rt.posted = nil
	for _, job := range jobs {
		job()
	}
}

type writeEvent struct {
	p        []byte
	shutdown bool
	cb       security.Completion
}

type readEvent struct {
	p    []byte
	code int
}

// recorder captures every callback the connection fires, in order.
type recorder struct {
	writes []writeEvent
	reads  []readEvent
	starts int
	dones  int
	errs   []error

	// fireWriteCompletions makes the recorder act like an upstream that
	// transmits instantly and acknowledges.
	fireWriteCompletions bool
	completed            int
}

func (rec *recorder) attach(conn *security.Connection) {
	conn.SetWriteCallback(func(p []byte, shutdown bool, cb security.Completion) {
		rec.writes = append(rec.writes, writeEvent{p: p, shutdown: shutdown, cb: cb})
		if rec.fireWriteCompletions && cb != nil {
			rec.completed++
			cb(nil)
		}
	})
	conn.SetReadCallback(func(p []byte, code int) {
		rec.reads = append(rec.reads, readEvent{p: p, code: code})
	})
	conn.SetHandshakeStartCallback(func() {
		rec.starts++
	})
	conn.SetHandshakeDoneCallback(func() {
		rec.dones++
	})
	conn.SetErrorCallback(func(err error) {
		rec.errs = append(rec.errs, err)
	})
}

func (rec *recorder) ciphertext() (p []byte) {
	for _, w := range rec.writes {
		p = append(p, w.p...)
	}
	return
}

func (rec *recorder) plaintext() (p []byte) {
	for _, r := range rec.reads {
		p = append(p, r.p...)
	}
	return
}

type harness struct {
	rt   *fakeRuntime
	ctx  *fakeEngineContext
	conn *security.Connection
	rec  *recorder
}

func (h *harness) engine() *fakeEngine {
	return h.ctx.engines[0]
}

func newHarness(t *testing.T, role security.Role, serverName string, config fakeEngineConfig, trustStore security.TrustStore) *harness {
	t.Helper()
	rt := &fakeRuntime{inline: true}
	conn, err := security.NewConnection(rt, role, serverName, 443)
	require.NoError(t, err)
	ctx := newFakeEngineContext(config)
	rec := &recorder{}
	rec.attach(conn)
	conn.Init(ctx, nil, trustStore)
	return &harness{
		rt:   rt,
		ctx:  ctx,
		conn: conn,
		rec:  rec,
	}
}

// finishClientHandshake drives the scripted client handshake to completion:
// Start emits the first flight, then the server's records come back in.
func (h *harness) finishClientHandshake(t *testing.T) {
	t.Helper()
	h.conn.Start()
	require.NotEmpty(t, h.rec.writes)
	h.conn.Unwrap(handshakeRecord(48), nil)
	require.True(t, h.conn.InitFinished())
}
