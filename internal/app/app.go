// Package app wires the client layers together: session state, HTTP
// backend, broker transport, presence, and the chat surface.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vietstream/livechat/internal/api"
	"github.com/vietstream/livechat/internal/chat"
	"github.com/vietstream/livechat/internal/config"
	"github.com/vietstream/livechat/internal/matchinfo"
	"github.com/vietstream/livechat/internal/moderation"
	"github.com/vietstream/livechat/internal/presence"
	"github.com/vietstream/livechat/internal/session"
	"github.com/vietstream/livechat/internal/surface"
	"github.com/vietstream/livechat/internal/transport/ws"
)

// App is one viewer session: everything needed to watch and post.
type App struct {
	cfg config.Config
	log *zerolog.Logger

	session  *session.Store
	api      *api.Client
	client   *ws.Client
	presence *presence.Estimator
	surface  *surface.Surface
	panel    *matchinfo.Panel
	gateway  *moderation.Gateway

	stream chat.Stream
	calls  chan func()

	// OnEvent, when set before Run, is invoked after each event has
	// been folded into the surface and estimator. The renderer hook.
	OnEvent func(chat.Event)
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg config.Config, logger *zerolog.Logger) (*App, error) {
	sess, err := session.Open(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open session state: %w", err)
	}

	logger.Info().Str("state_path", cfg.StatePath).Msg("session state opened")

	apiClient := api.New(cfg.APIBaseURL)
	client := ws.New(ws.Options{
		URL:                cfg.BrokerURL,
		ReconnectDelay:     cfg.ReconnectDelay,
		HeartbeatInterval:  cfg.HeartbeatInterval,
		ViewerCountRefresh: cfg.ViewerCountRefresh,
		// The broker reveals comment source addresses only to
		// connections that present the operator credential.
		Token: func(ctx context.Context) string {
			_, token, ok := sess.Operator(ctx)
			if !ok {
				return ""
			}
			return token
		},
	}, logger)

	// A stored, unexpired credential unlocks the operator experience.
	// The backend still re-validates it on every privileged call.
	var op *surface.Operator
	if user, _, ok := sess.Operator(ctx); ok {
		op = &surface.Operator{Username: user.Username}
		logger.Info().Str("username", user.Username).Msg("operator session restored")
	}

	surf := surface.New(surface.Options{
		SubmitCooldown: cfg.SubmitCooldown,
		ErrorTTL:       cfg.ErrorTTL,
		Window:         cfg.HistoryWindow,
	}, client, sess, op, logger)

	if name, err := sess.DisplayName(ctx); err == nil && name != "" {
		surf.SetDisplayName(name)
	}

	return &App{
		cfg:      cfg,
		log:      logger,
		session:  sess,
		api:      apiClient,
		client:   client,
		presence: presence.NewEstimator(cfg.ViewerOffset),
		surface:  surf,
		panel:    matchinfo.New(client, logger),
		gateway:  moderation.New(cfg.APIBaseURL, sess),
		calls:    make(chan func(), 16),
	}, nil
}

// Surface returns the chat view-model.
func (a *App) Surface() *surface.Surface { return a.surface }

// Presence returns the viewer-count estimator.
func (a *App) Presence() *presence.Estimator { return a.presence }

// Panel returns the match info panel.
func (a *App) Panel() *matchinfo.Panel { return a.panel }

// Gateway returns the moderation gateway.
func (a *App) Gateway() *moderation.Gateway { return a.gateway }

// Stream returns the broadcast metadata fetched at startup.
func (a *App) Stream() chat.Stream { return a.stream }

// Run connects to the broker and pumps events until the context is
// canceled. It blocks.
func (a *App) Run(ctx context.Context) error {
	// Stream metadata is best effort: chat works even when the
	// metadata endpoint is down, the count just stays raw.
	stream, err := a.api.CurrentStream(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("stream metadata unavailable")
		stream = chat.Stream{Status: chat.StatusIdle}
	}
	a.stream = stream
	a.presence.SetStatus(stream.Status)
	a.log.Info().
		Str("title", stream.Title).
		Str("status", string(stream.Status)).
		Msg("stream resolved")

	a.client.Connect(ctx, ws.Features{
		ViewerCount:    true,
		History:        true,
		CommentDeleted: true,
	})

	for {
		select {
		case <-ctx.Done():
			a.client.Disconnect()
			if err := a.session.Close(); err != nil {
				a.log.Warn().Err(err).Msg("failed to close session state")
			}
			return ctx.Err()
		case ev := <-a.client.Events():
			a.apply(ev)
		case fn := <-a.calls:
			fn()
		}
	}
}

// Do schedules fn onto the event loop goroutine. The surface and
// estimator are single-goroutine; every access from outside Run must go
// through here. Blocks until Run picks it up.
func (a *App) Do(ctx context.Context, fn func()) error {
	select {
	case a.calls <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *App) apply(ev chat.Event) {
	switch ev.Kind {
	case chat.EventViewerCount:
		a.presence.SetRaw(ev.Count)
	default:
		a.surface.Apply(ev)
	}
	if a.OnEvent != nil {
		a.OnEvent(ev)
	}
}
