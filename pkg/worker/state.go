package worker

// Status is the coarse-grained lifecycle state of a worker. It is held on
// the ActiveWorker and set by its transition methods. Activate reads it
// from the log in one case only: a log whose last effective entry is an
// Error entry yields Failed, and any other log yields Live, so Interrupted
// and Suspended are not restored on reactivation.
type Status string

const (
	StatusLoading     Status = "loading"
	StatusReplaying   Status = "replaying"
	StatusLive        Status = "live"
	StatusSuspended   Status = "suspended"
	StatusRetrying    Status = "retrying"
	StatusInterrupted Status = "interrupted"
	StatusFailed      Status = "failed"
	StatusExited      Status = "exited"
	StatusDeleted     Status = "deleted"
)

// terminal reports whether further invocations require a Revert or Update
// entry before they can proceed.
func (s Status) terminal() bool {
	return s == StatusFailed || s == StatusExited
}
