package proto

// Frame is the envelope exchanged with the broker over the websocket.
// Bodies are strings holding encoded JSON, one record per frame, so a
// frame can carry any topic's payload without the envelope knowing its
// shape.
type Frame struct {
	Type        string `json:"type"`
	ID          string `json:"id,omitempty"`
	Destination string `json:"destination,omitempty"`
	Body        string `json:"body,omitempty"`
}

const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameSend        = "send"
	FrameMessage     = "message"
	FrameError       = "error"
)

// Inbound topics.
const (
	TopicLiveComments    = "/topic/live-comments"
	TopicViewerCount     = "/topic/viewer-count"
	TopicCommentDeleted  = "/topic/comment-deleted"
	TopicCommentsHistory = "/topic/comments-history"
	TopicMatchInfo       = "/topic/match-info"
)

// Outbound destinations.
const (
	DestComment          = "/app/comment"
	DestCommentDelete    = "/app/comment/delete"
	DestViewerCountReq   = "/app/viewer-count/request"
	DestCommentsHistory  = "/app/comments/history"
	DestMatchInfoUpdate  = "/app/match-info/update"
	DestMatchInfoClear   = "/app/match-info/clear"
	DestMatchInfoRequest = "/app/match-info/request"
)
