package chat

// EventKind tags a realtime notification delivered by the transport
// client.
type EventKind int

const (
	// EventComment delivers a single new live comment.
	EventComment EventKind = iota
	// EventHistory delivers the one-shot post-connect comment snapshot.
	EventHistory
	// EventViewerCount delivers a broker-reported live connection count.
	EventViewerCount
	// EventCommentDeleted announces a moderated removal; only the
	// comment's natural key is meaningful.
	EventCommentDeleted
)

// Event describes one thing that happened on the realtime channel. All
// four kinds flow through a single dispatch loop on the consumer side.
type Event struct {
	Kind     EventKind
	Comment  Comment
	Comments []Comment // for EventHistory
	// Dropped counts history records that failed to decode and were
	// skipped.
	Dropped int
	Count   int // for EventViewerCount
}
