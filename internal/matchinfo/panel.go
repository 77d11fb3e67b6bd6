// Package matchinfo is the auxiliary realtime panel for match metadata
// shown alongside the broadcast. It publishes and subscribes over the
// transport client's raw handle on purpose: not all realtime traffic is
// chat, and the transport does not mediate these frames.
package matchinfo

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vietstream/livechat/internal/proto"
)

var errInvalid = errors.New("match info fields must be positive")

// MatchInfo describes the current match.
type MatchInfo struct {
	MatchNumber int     `json:"matchNumber"`
	RedWeight   float64 `json:"redWeight"`
	BlueWeight  float64 `json:"blueWeight"`
}

// Validate rejects non-positive fields before anything hits the wire.
func (m MatchInfo) Validate() error {
	if m.MatchNumber < 1 || m.RedWeight <= 0 || m.BlueWeight <= 0 {
		return errInvalid
	}
	return nil
}

// Publisher is the raw publish surface the panel needs from the
// transport client.
type Publisher interface {
	Publish(ctx context.Context, destination string, payload any) error
	Handle(topic string, fn func(body string))
}

// Panel publishes match updates and tracks the latest broadcast one.
// Broadcast updates arrive on the transport's session goroutine, so the
// tracked value is mutex-guarded.
type Panel struct {
	pub Publisher
	log *zerolog.Logger

	mu      sync.Mutex
	current *MatchInfo
}

// New builds a panel and subscribes to match updates. The subscription
// survives reconnects because the transport re-registers aux topics.
func New(pub Publisher, logger *zerolog.Logger) *Panel {
	p := &Panel{pub: pub, log: logger}
	pub.Handle(proto.TopicMatchInfo, p.onUpdate)
	return p
}

// Current returns the last known match info, nil when cleared.
func (p *Panel) Current() *MatchInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Update validates and broadcasts new match info.
func (p *Panel) Update(ctx context.Context, info MatchInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}
	if err := p.pub.Publish(ctx, proto.DestMatchInfoUpdate, info); err != nil {
		return err
	}
	p.mu.Lock()
	p.current = &info
	p.mu.Unlock()
	return nil
}

// Clear removes the scoreboard for every viewer.
func (p *Panel) Clear(ctx context.Context) error {
	if err := p.pub.Publish(ctx, proto.DestMatchInfoClear, struct{}{}); err != nil {
		return err
	}
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
	return nil
}

// Request asks the broker for the current match info, used right after
// connecting.
func (p *Panel) Request(ctx context.Context) error {
	return p.pub.Publish(ctx, proto.DestMatchInfoRequest, struct{}{})
}

func (p *Panel) onUpdate(body string) {
	var info MatchInfo
	if err := json.Unmarshal([]byte(body), &info); err != nil {
		p.log.Warn().Err(err).Msg("malformed match info dropped")
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if info.MatchNumber == 0 {
		// Clear broadcast.
		p.current = nil
		return
	}
	p.current = &info
}
