package security

// Completion is a single-shot acknowledgement for one queued chunk. It gets a
// nil cause on success and the encoding error otherwise.
type Completion func(cause error)

// chunk is one unit of queued work. Exactly one of three shapes:
// a data chunk (buf set), a shutdown marker (shutdown set), or an
// inbound-error marker (inboundErr set). buf is re-sliced as the engine
// consumes it, so len(buf) is always the remaining byte count.
type chunk struct {
	buf        []byte
	shutdown   bool
	inboundErr int
	cb         Completion
}

func newChunk(buf []byte, shutdown bool, cb Completion) *chunk {
	return &chunk{
		buf:      buf,
		shutdown: shutdown,
		cb:       cb,
	}
}

// takeCallback moves the callback out so no later path can fire it twice.
func (c *chunk) takeCallback() (cb Completion) {
	cb = c.cb
	c.cb = nil
	return
}
