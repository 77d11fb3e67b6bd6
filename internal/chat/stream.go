package chat

// StreamStatus is the lifecycle state of the broadcast.
type StreamStatus string

const (
	StatusIdle StreamStatus = "IDLE"
	StatusLive StreamStatus = "LIVE"
	StatusEnd  StreamStatus = "ENDED"
)

// Stream is the broadcast metadata served by the backend.
type Stream struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      StreamStatus `json:"status"`
	ViewerCount int          `json:"viewerCount"`
	StartedAt   string       `json:"startedAt"`
	HLSURL      string       `json:"hlsUrl"`
}
