package security

// Runtime is the scheduling capability a Connection runs on. SubmitBlocking
// hands a job to a worker pool for work that would stall the event loop.
// PostToEventLoop queues a job back onto the event-loop context, tagged with
// an opaque domain the loop exposes through Domain while the job runs.
type Runtime interface {
	SubmitBlocking(job func())
	PostToEventLoop(job func(), domain any)
	Domain() (domain any)
}
