package ws

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/vietstream/livechat/internal/api"
	"github.com/vietstream/livechat/internal/chat"
	"github.com/vietstream/livechat/internal/log"
	"github.com/vietstream/livechat/internal/stub"
)

// startStub runs a full stub broker on an ephemeral port and returns
// its websocket and API base URLs.
func startStub(t *testing.T) (string, string) {
	t.Helper()

	cfg := stub.DefaultConfig()
	cfg.CommentCooldown = 0 // tests submit rapidly
	srv, err := stub.New(cfg, log.Nop())
	if err != nil {
		t.Fatalf("stub: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go srv.RunHub(ctx)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws", ts.URL + "/api"
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c := New(Options{
		URL:                url,
		ReconnectDelay:     50 * time.Millisecond,
		HeartbeatInterval:  time.Second,
		ViewerCountRefresh: time.Hour, // quiet unless a test wants it
	}, log.Nop())
	t.Cleanup(c.Disconnect)
	return c
}

// nextEvent waits for the next event of the wanted kind, skipping
// others (topics interleave arbitrarily).
func nextEvent(t *testing.T, c *Client, kind chat.EventKind) chat.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %d", kind)
		}
	}
}

func TestConnectDeliversHistoryViewerCountAndLiveComments(t *testing.T) {
	url, _ := startStub(t)
	c := newTestClient(t, url)
	ctx := context.Background()

	c.Connect(ctx, Features{ViewerCount: true, History: true, CommentDeleted: true})

	// The post-subscribe refresh request guarantees an initial count.
	ev := nextEvent(t, c, chat.EventViewerCount)
	if ev.Count < 1 {
		t.Fatalf("viewer count = %d, want >= 1", ev.Count)
	}

	// Fresh broker: empty snapshot, but the event must arrive.
	hist := nextEvent(t, c, chat.EventHistory)
	if len(hist.Comments) != 0 {
		t.Fatalf("fresh history should be empty, got %d", len(hist.Comments))
	}

	c.SendComment(ctx, chat.Comment{DisplayName: "Ann", Content: "hello"})
	live := nextEvent(t, c, chat.EventComment)
	if live.Comment.DisplayName != "Ann" || live.Comment.Content != "hello" {
		t.Fatalf("unexpected comment: %+v", live.Comment)
	}
	if live.Comment.ID == nil || live.Comment.CreatedAt == "" {
		t.Fatalf("broker must assign identity: %+v", live.Comment)
	}
	if live.Comment.IsAdmin {
		t.Fatal("stray adminUsername must not grant isAdmin")
	}

	// A late joiner replays the comment via the history snapshot.
	late := newTestClient(t, url)
	late.Connect(ctx, Features{History: true})
	lateHist := nextEvent(t, late, chat.EventHistory)
	if len(lateHist.Comments) != 1 || lateHist.Comments[0].Content != "hello" {
		t.Fatalf("late history = %+v", lateHist.Comments)
	}
}

func TestDeleteBroadcastReachesAllClients(t *testing.T) {
	url, _ := startStub(t)
	ctx := context.Background()

	a := newTestClient(t, url)
	a.Connect(ctx, Features{CommentDeleted: true})
	b := newTestClient(t, url)
	b.Connect(ctx, Features{CommentDeleted: true})

	a.SendComment(ctx, chat.Comment{DisplayName: "Tom", Content: "remove me"})
	sent := nextEvent(t, b, chat.EventComment)

	// Either client may originate the delete; both must observe it.
	b.DeleteComment(ctx, sent.Comment)

	delA := nextEvent(t, a, chat.EventCommentDeleted)
	if delA.Comment.DisplayName != "Tom" || delA.Comment.CreatedAt != sent.Comment.CreatedAt {
		t.Fatalf("unexpected delete key: %+v", delA.Comment)
	}
	delB := nextEvent(t, b, chat.EventCommentDeleted)
	if delB.Comment.Key() != delA.Comment.Key() {
		t.Fatal("delete keys must match across clients")
	}
}

func TestDialURLCarriesCredential(t *testing.T) {
	ctx := context.Background()

	token := "alpha beta"
	c := New(Options{
		URL:   "ws://host/ws",
		Token: func(context.Context) string { return token },
	}, log.Nop())
	if got := c.dialURL(ctx); got != "ws://host/ws?token=alpha+beta" {
		t.Fatalf("dial url = %q", got)
	}

	// The credential is re-read per dial; dropping it downgrades the
	// next connection.
	token = ""
	if got := c.dialURL(ctx); got != "ws://host/ws" {
		t.Fatalf("dial url after logout = %q", got)
	}

	c2 := New(Options{
		URL:   "ws://host/ws?room=1",
		Token: func(context.Context) string { return "tok" },
	}, log.Nop())
	if got := c2.dialURL(ctx); got != "ws://host/ws?room=1&token=tok" {
		t.Fatalf("dial url with query = %q", got)
	}

	plain := New(Options{URL: "ws://host/ws"}, log.Nop())
	if got := plain.dialURL(ctx); got != "ws://host/ws" {
		t.Fatalf("dial url without source = %q", got)
	}
}

func TestSendWhileDisconnectedIsSilentlyDropped(t *testing.T) {
	c := New(Options{URL: "ws://127.0.0.1:1/ws"}, log.Nop())

	// Must not panic, block, or queue.
	c.SendComment(context.Background(), chat.Comment{DisplayName: "Ann", Content: "void"})
	c.DeleteComment(context.Background(), chat.Comment{DisplayName: "Ann", CreatedAt: "t1"})
	if c.Connected() {
		t.Fatal("client should not report connected")
	}
}

func TestDisconnectIdempotentAndSafeWhenNeverConnected(t *testing.T) {
	c := New(Options{URL: "ws://127.0.0.1:1/ws"}, log.Nop())
	c.Disconnect()
	c.Disconnect()

	url, _ := startStub(t)
	c2 := newTestClient(t, url)
	c2.Connect(context.Background(), Features{})
	nextEventConnected(t, c2)
	c2.Disconnect()
	c2.Disconnect()
}

// nextEventConnected waits until the client has a live connection.
func nextEventConnected(t *testing.T, c *Client) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !c.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("client never connected")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestReconnectResubscribesAndReplaysHistoryOnce(t *testing.T) {
	cfg := stub.DefaultConfig()
	cfg.CommentCooldown = 0
	srv, err := stub.New(cfg, log.Nop())
	if err != nil {
		t.Fatalf("stub: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.RunHub(ctx)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	httpSrv := &http.Server{Handler: srv.Handler()}
	go httpSrv.Serve(ln)

	c := New(Options{
		URL:                "ws://" + addr + "/ws",
		ReconnectDelay:     50 * time.Millisecond,
		HeartbeatInterval:  time.Second,
		ViewerCountRefresh: 40 * time.Millisecond, // ticks many times per connection
	}, log.Nop())
	defer c.Disconnect()
	c.Connect(ctx, Features{ViewerCount: true, History: true})

	nextEvent(t, c, chat.EventHistory)

	// Let several refresh ticks pass; they must not re-trigger history.
	time.Sleep(250 * time.Millisecond)

	// Drop the server; the client retries with fixed backoff until the
	// listener is back.
	httpSrv.Close()
	time.Sleep(100 * time.Millisecond)

	ln2, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("relisten: %v", err)
	}
	httpSrv2 := &http.Server{Handler: srv.Handler()}
	go httpSrv2.Serve(ln2)
	defer httpSrv2.Close()

	// Reconnection re-establishes subscriptions and re-requests the
	// one-shot history.
	nextEvent(t, c, chat.EventHistory)

	// Exactly one history event per connection: drain whatever is
	// buffered and count.
	extra := 0
	drain := time.After(300 * time.Millisecond)
	for done := false; !done; {
		select {
		case ev := <-c.Events():
			if ev.Kind == chat.EventHistory {
				extra++
			}
		case <-drain:
			done = true
		}
	}
	if extra != 0 {
		t.Fatalf("history replayed %d extra times; refresh ticks must not duplicate it", extra)
	}
}

func TestAuxTopicRoundtrip(t *testing.T) {
	url, _ := startStub(t)
	ctx := context.Background()

	c := newTestClient(t, url)
	got := make(chan string, 1)
	c.Handle("/topic/match-info", func(body string) {
		select {
		case got <- body:
		default:
		}
	})
	c.Connect(ctx, Features{})
	nextEventConnected(t, c)

	// Registering against a live connection subscribes immediately.
	late := newTestClient(t, url)
	late.Connect(ctx, Features{})
	nextEventConnected(t, late)
	lateGot := make(chan string, 1)
	late.Handle("/topic/match-info", func(body string) {
		select {
		case lateGot <- body:
		default:
		}
	})
	// Let the hub process the live subscription before publishing.
	time.Sleep(100 * time.Millisecond)

	err := c.Publish(ctx, "/app/match-info/update", map[string]any{
		"matchNumber": 2, "redWeight": 3.1, "blueWeight": 3.0,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, ch := range []chan string{got, lateGot} {
		select {
		case body := <-ch:
			if !strings.Contains(body, "matchNumber") {
				t.Fatalf("unexpected body: %s", body)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("aux frame never delivered")
		}
	}
}

// Reader goroutines must end with their session, not pile up across
// reconnects waiting for Disconnect.
func TestReaderGoroutineEndsWithSession(t *testing.T) {
	cfg := stub.DefaultConfig()
	cfg.CommentCooldown = 0
	srv, err := stub.New(cfg, log.Nop())
	if err != nil {
		t.Fatalf("stub: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.RunHub(ctx)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	httpSrv := &http.Server{Handler: srv.Handler()}
	go httpSrv.Serve(ln)

	c := New(Options{
		URL:            "ws://" + addr + "/ws",
		ReconnectDelay: 30 * time.Millisecond,
	}, log.Nop())
	defer c.Disconnect()
	c.Connect(ctx, Features{History: true})
	nextEvent(t, c, chat.EventHistory)

	before := runtime.NumGoroutine()

	for i := 0; i < 10; i++ {
		httpSrv.Close()
		ln, err = net.Listen("tcp", addr)
		if err != nil {
			t.Fatalf("relisten: %v", err)
		}
		httpSrv = &http.Server{Handler: srv.Handler()}
		go httpSrv.Serve(ln)

		c.SendComment(ctx, chat.Comment{DisplayName: "Ann", Content: "churn"})
		nextEvent(t, c, chat.EventHistory)
	}
	defer httpSrv.Close()

	// Old sessions should be fully torn down; allow the count to
	// settle before judging.
	deadline := time.Now().Add(3 * time.Second)
	for {
		if n := runtime.NumGoroutine(); n <= before+5 {
			return
		} else if time.Now().After(deadline) {
			t.Fatalf("goroutines grew from %d to %d across reconnects", before, n)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestOperatorCredentialRevealsSourceAddresses(t *testing.T) {
	wsURL, apiURL := startStub(t)
	ctx := context.Background()

	resp, err := api.New(apiURL).Login(ctx, "admin", "admin123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// The credential rides the dial URL, so only connections holding it
	// see comment source addresses.
	operator := New(Options{
		URL:            wsURL,
		ReconnectDelay: 50 * time.Millisecond,
		Token:          func(context.Context) string { return resp.Token },
	}, log.Nop())
	t.Cleanup(operator.Disconnect)
	operator.Connect(ctx, Features{})
	nextEventConnected(t, operator)

	viewer := newTestClient(t, wsURL)
	viewer.Connect(ctx, Features{})
	nextEventConnected(t, viewer)

	viewer.SendComment(ctx, chat.Comment{DisplayName: "Ann", Content: "hello"})

	privileged := nextEvent(t, operator, chat.EventComment)
	if privileged.Comment.IPAddress == "" {
		t.Fatal("operator connection must see the source address")
	}
	plain := nextEvent(t, viewer, chat.EventComment)
	if plain.Comment.IPAddress != "" {
		t.Fatalf("viewer connection must not see the source address, got %q", plain.Comment.IPAddress)
	}
}
