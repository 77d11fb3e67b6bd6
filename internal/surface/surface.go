// Package surface is the interactive chat view-model, kept headless so
// any renderer (terminal, web) can sit on top: input state, submission
// with validation and cooldown, reply threading, and the operator
// action menu.
package surface

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vietstream/livechat/internal/chat"
)

// ErrCoolingDown rejects a submission while the local post-submit
// lockout is active. An anti-spam throttle, not a correctness
// mechanism.
var ErrCoolingDown = errors.New("please wait before sending another comment")

// Sender is the outgoing half of the transport client.
type Sender interface {
	SendComment(ctx context.Context, comment chat.Comment)
	DeleteComment(ctx context.Context, comment chat.Comment)
}

// NameSaver persists the display name for reuse across sessions.
// *session.Store satisfies it.
type NameSaver interface {
	SetDisplayName(ctx context.Context, name string) error
}

// Operator identifies an authenticated admin session. A nil operator
// renders the plain viewer experience.
type Operator struct {
	Username string
}

// Options tunes the surface timings and window.
type Options struct {
	SubmitCooldown time.Duration
	ErrorTTL       time.Duration
	Window         int
}

// Surface owns the comment store and the input state for one chat view.
// Like the store it is single-goroutine: the UI loop is its only
// caller.
type Surface struct {
	opts     Options
	store    *chat.Store
	sender   Sender
	names    NameSaver
	operator *Operator
	log      *zerolog.Logger

	now func() time.Time

	displayName string
	content     string
	replying    *chat.Comment
	errMsg      string
	errUntil    time.Time
	lockedUntil time.Time
	menu        *Menu
}

// New builds a surface. operator may be nil.
func New(opts Options, sender Sender, names NameSaver, operator *Operator, logger *zerolog.Logger) *Surface {
	if opts.SubmitCooldown == 0 {
		opts.SubmitCooldown = 3 * time.Second
	}
	if opts.ErrorTTL == 0 {
		opts.ErrorTTL = 5 * time.Second
	}
	return &Surface{
		opts:     opts,
		store:    chat.NewStore(opts.Window),
		sender:   sender,
		names:    names,
		operator: operator,
		log:      logger,
		now:      time.Now,
	}
}

// SetDisplayName updates the name input.
func (s *Surface) SetDisplayName(name string) { s.displayName = name }

// SetContent updates the comment input.
func (s *Surface) SetContent(content string) { s.content = content }

// Content returns the current comment input.
func (s *Surface) Content() string { return s.content }

// DisplayName returns the current name input.
func (s *Surface) DisplayName() string { return s.displayName }

// Apply folds a store-affecting event into the surface. Viewer-count
// events belong to the presence estimator, not here.
func (s *Surface) Apply(event chat.Event) {
	switch event.Kind {
	case chat.EventComment:
		s.store.Append(event.Comment)
	case chat.EventHistory:
		s.store.ReplaceAll(event.Comments)
	case chat.EventCommentDeleted:
		s.store.RemoveByKey(event.Comment.DisplayName, event.Comment.CreatedAt)
	}
}

// Window returns the renderable comments, newest first, capped.
func (s *Surface) Window() []chat.Comment {
	return s.store.Window()
}

// Error returns the active inline error, empty once it has aged out.
func (s *Surface) Error() string {
	if s.errMsg != "" && s.now().Before(s.errUntil) {
		return s.errMsg
	}
	return ""
}

func (s *Surface) setError(msg string) {
	s.errMsg = msg
	s.errUntil = s.now().Add(s.opts.ErrorTTL)
}

// Submit validates and sends the composed comment. Validation failures
// stay local: inline error, no network call. On success the display
// name is persisted, the input and reply target are cleared, and the
// cooldown starts regardless of delivery.
func (s *Surface) Submit(ctx context.Context) error {
	if s.now().Before(s.lockedUntil) {
		return ErrCoolingDown
	}

	comment := chat.Comment{
		DisplayName: strings.TrimSpace(s.displayName),
		Content:     strings.TrimSpace(s.content),
	}
	if s.replying != nil {
		comment.ParentID = parentID(*s.replying)
		comment.ReplyTo = s.replying.DisplayName
	}
	// adminUsername is only ever attached for an authenticated session;
	// the server decides whether it becomes a trusted isAdmin flag.
	if s.operator != nil {
		comment.AdminUsername = s.operator.Username
	}

	if err := comment.Validate(); err != nil {
		s.setError(err.Error())
		return err
	}

	if err := s.names.SetDisplayName(ctx, comment.DisplayName); err != nil {
		s.log.Warn().Err(err).Msg("persist display name")
	}

	s.displayName = comment.DisplayName
	s.content = ""
	s.replying = nil
	s.errMsg = ""
	s.lockedUntil = s.now().Add(s.opts.SubmitCooldown)

	s.sender.SendComment(ctx, comment)
	return nil
}

// Replying returns the current reply target, nil when not replying.
func (s *Surface) Replying() *chat.Comment {
	return s.replying
}

// Reply arms reply threading on the given comment and prefills the
// input with its mention token.
func (s *Surface) Reply(c chat.Comment) {
	s.replying = &c
	s.content = "@" + c.DisplayName + " "
}

// CancelReply drops the reply target and strips the mention prefix,
// leaving any other typed content untouched.
func (s *Surface) CancelReply() {
	if s.replying == nil {
		return
	}
	prefix := "@" + s.replying.DisplayName + " "
	s.content = strings.TrimPrefix(s.content, prefix)
	s.replying = nil
}

// Delete asks the broker to remove a comment. The local store is only
// updated when the deletion broadcast comes back, like on every other
// client.
func (s *Surface) Delete(ctx context.Context, c chat.Comment) {
	if s.operator == nil {
		return
	}
	s.sender.DeleteComment(ctx, c)
}

func parentID(c chat.Comment) string {
	if c.ID == nil {
		return ""
	}
	return strconv.FormatInt(*c.ID, 10)
}
