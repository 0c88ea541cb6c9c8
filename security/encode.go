package security

import (
	"github.com/linearregression/trireme/pkg/bytebuffers"
)

// encodeLoop drives the engine until no more progress can be made. Every
// public entry point enqueues first and then runs it. The loop dispatches on
// the engine's reported handshake status; it does not keep a state machine of
// its own.
func (conn *Connection) encodeLoop() {
	for {
		status := conn.engine.HandshakeStatus()
		conn.log.Trace().
			Stringer("status", status).
			Int("incoming", len(conn.incoming)).
			Int("outgoing", len(conn.outgoing)).
			Msg("engine status")
		switch status {
		case HandshakeNeedWrap:
			// Always wrap, even with nothing to wrap.
			conn.processHandshaking()
			if !conn.doWrap() {
				return
			}
		case HandshakeNeedUnwrap:
			conn.processHandshaking()
			if !conn.doUnwrap() {
				return
			}
		case HandshakeNeedTask:
			conn.processTasks()
			return
		case HandshakeFinished, HandshakeNotHandshaking:
			if len(conn.outgoing) == 0 && len(conn.incoming) == 0 {
				return
			}
			if len(conn.outgoing) > 0 {
				if !conn.doWrap() {
					return
				}
			}
			if len(conn.incoming) > 0 {
				if !conn.doUnwrap() {
					return
				}
			}
		}
	}
}

// doWrap wraps whatever sits at the head of the outgoing queue and reports
// whether the loop should keep going.
func (conn *Connection) doWrap() bool {
	qc := conn.peekOutgoing()
	var payload []byte
	if qc != nil {
		payload = qc.buf
	}

	wasShutdown := false
	var result Result
	for {
		if qc != nil && qc.shutdown {
			conn.log.Trace().Msg("sending close outbound")
			conn.engine.CloseOutbound()
			conn.sentShutdown = true
			wasShutdown = true
		}

		var wrapErr error
		result, wrapErr = conn.engine.Wrap(payload, conn.writeBuf)
		if wrapErr != nil {
			conn.handleEncodingError(qc, wrapErr)
			if qc != nil {
				conn.popOutgoing()
			}
			return false
		}
		conn.log.Trace().
			Stringer("status", result.Status).
			Int("consumed", result.BytesConsumed).
			Int("produced", result.BytesProduced).
			Msg("wrap result")

		payload = payload[result.BytesConsumed:]
		if qc != nil {
			qc.buf = payload
		}
		if result.Status != StatusBufferOverflow {
			break
		}
		conn.writeBuf.Double()
	}

	var cb Completion
	if qc != nil && len(payload) == 0 && conn.initFinished {
		// The chunk is done, but hold its callback until the handshake has
		// actually produced the record and it was offered upstream.
		conn.popOutgoing()
		cb = qc.takeCallback()
	}

	if result.HandshakeStatus == HandshakeFinished {
		// Delivered once; it cannot be observed later.
		conn.processNotHandshaking()
	}

	if result.BytesProduced > 0 {
		conn.deliverWriteBuffer(wasShutdown, cb)
	} else if cb != nil {
		cb(nil)
	}

	return result.Status == StatusOK
}

// doUnwrap unwraps the head of the incoming queue and reports whether the
// loop should keep going.
func (conn *Connection) doUnwrap() bool {
	qc := conn.peekIncoming()
	payload := []byte{}
	run := true
	if qc != nil {
		// An inbound-error marker has no buffer and never visits the engine.
		run = qc.buf != nil
		payload = qc.buf
	}

	var result Result
	unwrapped := false
	for run {
		for {
			var unwrapErr error
			result, unwrapErr = conn.engine.Unwrap(payload, conn.readBuf)
			if unwrapErr != nil {
				conn.handleEncodingError(qc, unwrapErr)
				return false
			}
			conn.log.Trace().
				Stringer("status", result.Status).
				Int("consumed", result.BytesConsumed).
				Int("produced", result.BytesProduced).
				Msg("unwrap result")
			unwrapped = true
			payload = payload[result.BytesConsumed:]
			if qc != nil {
				qc.buf = payload
			}
			if result.Status != StatusBufferOverflow {
				break
			}
			conn.readBuf.Double()
		}

		if result.Status == StatusBufferUnderflow && qc != nil {
			// Acknowledge the chunk so the upper layer supplies more data.
			// That may re-enter the loop through a public entry point.
			if cb := qc.takeCallback(); cb != nil {
				cb(nil)
			}

			// Splice the next chunk onto the remainder and retry.
			if len(conn.incoming) >= 2 {
				head := conn.popIncoming()
				qc = conn.peekIncoming()
				qc.buf = bytebuffers.Cat(head.buf, qc.buf)
				payload = qc.buf
				continue
			}
			qc = conn.peekIncoming()
			break
		}
		break
	}

	code := CodeNone
	if qc != nil {
		code = qc.inboundErr
	}
	if code != CodeNone {
		if err := conn.engine.CloseInbound(); err != nil {
			conn.log.Debug().Err(err).Msg("error closing inbound engine side")
		}
	}

	if unwrapped && result.Status == StatusClosed && !conn.receivedShutdown {
		conn.receivedShutdown = true
		code = CodeEOF
	}

	if qc != nil && len(qc.buf) == 0 {
		conn.popIncoming()
		// Acknowledge right away; more data can be consumed right now.
		if cb := qc.takeCallback(); cb != nil {
			cb(nil)
		}
	}

	if unwrapped && result.HandshakeStatus == HandshakeFinished {
		conn.processNotHandshaking()
	}

	if (unwrapped && result.BytesProduced > 0) || code != CodeNone {
		conn.deliverReadBuffer(code)
	}

	return !unwrapped || result.Status == StatusOK
}

func (conn *Connection) deliverWriteBuffer(shutdown bool, cb Completion) {
	if conn.onWrite == nil {
		conn.writeBuf.Reset()
		if cb != nil {
			cb(nil)
		}
		return
	}
	p := conn.writeBuf.Take()
	if p != nil {
		conn.log.Trace().
			Int("bytes", len(p)).
			Bool("shutdown", shutdown).
			Msg("delivering to the write callback")
	}
	conn.onWrite(p, shutdown, cb)
}

func (conn *Connection) deliverReadBuffer(code int) {
	if conn.onRead == nil {
		conn.readBuf.Reset()
		return
	}
	p := conn.readBuf.Take()
	if p != nil {
		conn.log.Trace().
			Int("bytes", len(p)).
			Int("code", code).
			Msg("delivering to the read callback")
	}
	conn.onRead(p, code)
}

// handleError records a fatal condition: during the handshake it lands in the
// verify-error slot, afterwards in the error slot. Neither is ever cleared.
func (conn *Connection) handleError(err error) {
	conn.log.Debug().Bool("handshaking", conn.handshaking).Err(err).Msg("tls error")
	if conn.handshaking {
		conn.verifyErr = err
	} else {
		conn.err = err
	}
}

// handleEncodingError records a wrap/unwrap failure. Before the handshake is
// done it always becomes an error event; afterwards it is a legitimate write
// error for the chunk in flight.
func (conn *Connection) handleEncodingError(qc *chunk, err error) {
	conn.log.Debug().Err(err).Msg("tls encoding error")
	conn.err = err
	if !conn.initFinished {
		conn.verifyErr = err
		if conn.onError != nil {
			conn.onError(err)
		}
		return
	}
	if qc != nil {
		if cb := qc.takeCallback(); cb != nil {
			cb(err)
		}
	} else if conn.onError != nil {
		conn.onError(err)
	}
}
