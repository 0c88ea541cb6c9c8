package security

// processHandshaking flags the start of a handshake and announces it once per
// handshake. A connection that already saw a shutdown on either side does not
// start another one.
func (conn *Connection) processHandshaking() {
	if !conn.handshaking && !conn.sentShutdown && !conn.receivedShutdown {
		conn.handshaking = true
		if conn.onHandshakeStart != nil {
			conn.onHandshakeStart()
		}
	}
}

// processNotHandshaking runs on the wrap/unwrap that completed the handshake.
// Peer authorization is checked here, before the done callback, so the upper
// layer reads VerifyError right after it fires.
func (conn *Connection) processNotHandshaking() {
	if conn.handshaking {
		conn.checkPeerAuthorization()
		conn.handshaking = false
		conn.initFinished = true
		if conn.onHandshakeDone != nil {
			conn.onHandshakeDone()
		}
	}
}

// processTasks offloads the engine's delegated tasks to the blocking pool so
// the event loop keeps moving. The engine is only touched on the pool thread
// through DelegatedTask and the tasks themselves; the loop resumes on the
// event-loop context afterwards, under the domain that was current.
func (conn *Connection) processTasks() {
	engine := conn.engine
	rt := conn.runtime
	rt.SubmitBlocking(func() {
		for {
			task, ok := engine.DelegatedTask()
			if !ok {
				break
			}
			conn.log.Trace().Msg("running delegated engine task")
			task()
		}

		domain := rt.Domain()
		rt.PostToEventLoop(conn.encodeLoop, domain)
	})
}
