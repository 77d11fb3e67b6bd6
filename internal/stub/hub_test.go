package stub

import (
	"fmt"
	"testing"
	"time"

	"github.com/vietstream/livechat/internal/chat"
	"github.com/vietstream/livechat/internal/log"
	"github.com/vietstream/livechat/internal/proto"
)

func newTestHub(cooldown time.Duration) *Hub {
	return NewHub(NewBlocklist(), "admin", cooldown, log.Nop())
}

func newHubClient(ip string, admin bool, topics ...string) *client {
	c := &client{
		id:     ip,
		ip:     ip,
		admin:  admin,
		topics: make(map[string]struct{}),
		frames: make(chan proto.Frame, 16),
	}
	for _, topic := range topics {
		c.topics[topic] = struct{}{}
	}
	return c
}

func sendComment(h *Hub, from *client, comment chat.Comment) {
	body, err := proto.EncodeBody(comment)
	if err != nil {
		panic(err)
	}
	h.handle(from, proto.Frame{Type: proto.FrameSend, Destination: proto.DestComment, Body: body})
}

func recvComment(t *testing.T, c *client) chat.Comment {
	t.Helper()
	select {
	case frame := <-c.frames:
		got, err := proto.DecodeComment(frame.Body)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		return got
	default:
		t.Fatal("no frame delivered")
		return chat.Comment{}
	}
}

func TestHubAssignsIdentityAndComputesAdminFlag(t *testing.T) {
	h := newTestHub(0)
	sender := newHubClient("10.0.0.1", false, proto.TopicLiveComments)
	h.clients[sender] = struct{}{}

	sendComment(h, sender, chat.Comment{DisplayName: "Ann", Content: "hi", AdminUsername: "admin"})
	got := recvComment(t, sender)
	if got.ID == nil || *got.ID != 1 {
		t.Fatalf("id = %v, want 1", got.ID)
	}
	if got.CreatedAt == "" {
		t.Fatal("createdAt must be stamped by the hub")
	}
	if !got.IsAdmin {
		t.Fatal("matching adminUsername must yield isAdmin")
	}

	// A spoofed adminUsername that does not match the configured
	// identity never earns the flag.
	sendComment(h, sender, chat.Comment{DisplayName: "Mallory", Content: "hi", AdminUsername: "root"})
	if got := recvComment(t, sender); got.IsAdmin {
		t.Fatal("mismatched adminUsername must not yield isAdmin")
	}
}

func TestHubStripsAddressForNonOperators(t *testing.T) {
	h := newTestHub(0)
	viewer := newHubClient("10.0.0.1", false, proto.TopicLiveComments)
	operator := newHubClient("10.0.0.2", true, proto.TopicLiveComments)
	h.clients[viewer] = struct{}{}
	h.clients[operator] = struct{}{}

	sendComment(h, viewer, chat.Comment{DisplayName: "Ann", Content: "hi"})

	if got := recvComment(t, viewer); got.IPAddress != "" {
		t.Fatalf("viewer sees ip %q", got.IPAddress)
	}
	if got := recvComment(t, operator); got.IPAddress != "10.0.0.1" {
		t.Fatalf("operator sees ip %q, want sender address", got.IPAddress)
	}

	// Same rule on the history snapshot.
	h.handle(viewer, proto.Frame{Type: proto.FrameSend, Destination: proto.DestCommentsHistory})
	frame := <-viewer.frames
	comments, _, err := proto.DecodeHistory(frame.Body)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(comments) != 1 || comments[0].IPAddress != "" {
		t.Fatalf("history must strip addresses for viewers: %+v", comments)
	}
}

func TestHubRejectsBlockedAndInvalid(t *testing.T) {
	h := newTestHub(0)
	sender := newHubClient("10.0.0.9", false, proto.TopicLiveComments)
	h.clients[sender] = struct{}{}

	if _, ok := h.blocklist.Block("10.0.0.9", "spam", "admin"); !ok {
		t.Fatal("block failed")
	}
	sendComment(h, sender, chat.Comment{DisplayName: "Ann", Content: "hi"})
	if len(sender.frames) != 0 {
		t.Fatal("blocked address must not broadcast")
	}
	if len(h.history) != 0 {
		t.Fatal("blocked comment must not enter history")
	}

	// Invalid payloads are dropped before the blocklist even matters.
	h2 := newTestHub(0)
	s2 := newHubClient("10.0.0.1", false, proto.TopicLiveComments)
	h2.clients[s2] = struct{}{}
	sendComment(h2, s2, chat.Comment{DisplayName: "", Content: "hi"})
	if len(s2.frames) != 0 || len(h2.history) != 0 {
		t.Fatal("invalid comment must be rejected")
	}
}

func TestHubCooldownLimitsPerAddress(t *testing.T) {
	h := newTestHub(time.Minute)
	a := newHubClient("10.0.0.1", false, proto.TopicLiveComments)
	b := newHubClient("10.0.0.2", false, proto.TopicLiveComments)
	h.clients[a] = struct{}{}
	h.clients[b] = struct{}{}

	sendComment(h, a, chat.Comment{DisplayName: "Ann", Content: "one"})
	sendComment(h, a, chat.Comment{DisplayName: "Ann", Content: "two"})
	sendComment(h, b, chat.Comment{DisplayName: "Bob", Content: "three"})

	// Each delivered comment reaches both subscribers; a's second send
	// was dropped, so 2 accepted x 2 subscribers.
	if len(h.history) != 2 {
		t.Fatalf("history = %d, want 2", len(h.history))
	}
	if len(a.frames) != 2 || len(b.frames) != 2 {
		t.Fatalf("deliveries = %d/%d, want 2/2", len(a.frames), len(b.frames))
	}
}

func TestHubHistoryRingKeepsNewest(t *testing.T) {
	h := newTestHub(0)
	sender := newHubClient("10.0.0.1", false)
	h.clients[sender] = struct{}{}

	for i := 0; i < historyCap+7; i++ {
		sendComment(h, sender, chat.Comment{DisplayName: "Ann", Content: fmt.Sprintf("msg %d", i)})
	}
	if len(h.history) != historyCap {
		t.Fatalf("history = %d, want %d", len(h.history), historyCap)
	}
	if h.history[0].Content != "msg 7" {
		t.Fatalf("oldest kept = %q, want msg 7", h.history[0].Content)
	}
	if h.history[historyCap-1].Content != fmt.Sprintf("msg %d", historyCap+6) {
		t.Fatalf("newest = %q", h.history[historyCap-1].Content)
	}
}

func TestHubDeleteRemovesByKeyAndBroadcasts(t *testing.T) {
	h := newTestHub(0)
	sender := newHubClient("10.0.0.1", false, proto.TopicLiveComments, proto.TopicCommentDeleted)
	h.clients[sender] = struct{}{}

	sendComment(h, sender, chat.Comment{DisplayName: "Tom", Content: "remove me"})
	sent := recvComment(t, sender)

	body, _ := proto.EncodeBody(chat.Comment{DisplayName: sent.DisplayName, CreatedAt: sent.CreatedAt})
	h.handle(sender, proto.Frame{Type: proto.FrameSend, Destination: proto.DestCommentDelete, Body: body})

	if len(h.history) != 0 {
		t.Fatalf("history = %d after delete, want 0", len(h.history))
	}
	frame := <-sender.frames
	if frame.Destination != proto.TopicCommentDeleted {
		t.Fatalf("destination = %q", frame.Destination)
	}
	deleted, err := proto.DecodeComment(frame.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if deleted.DisplayName != "Tom" || deleted.CreatedAt != sent.CreatedAt {
		t.Fatalf("delete key = %+v", deleted)
	}
}

func TestHubMatchInfoRetained(t *testing.T) {
	h := newTestHub(0)
	publisher := newHubClient("10.0.0.1", true, proto.TopicMatchInfo)
	h.clients[publisher] = struct{}{}

	h.handle(publisher, proto.Frame{
		Type:        proto.FrameSend,
		Destination: proto.DestMatchInfoUpdate,
		Body:        `{"matchNumber":3,"redWeight":2.5,"blueWeight":2.4}`,
	})
	<-publisher.frames // the broadcast echo

	// Late request replays the retained value.
	h.handle(publisher, proto.Frame{Type: proto.FrameSend, Destination: proto.DestMatchInfoRequest})
	frame := <-publisher.frames
	if frame.Body == "" || frame.Destination != proto.TopicMatchInfo {
		t.Fatalf("retained frame = %+v", frame)
	}

	h.handle(publisher, proto.Frame{Type: proto.FrameSend, Destination: proto.DestMatchInfoClear})
	<-publisher.frames
	h.handle(publisher, proto.Frame{Type: proto.FrameSend, Destination: proto.DestMatchInfoRequest})
	if len(publisher.frames) != 0 {
		t.Fatal("cleared match info must not be replayed")
	}
}
