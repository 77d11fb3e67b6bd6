package surface

import "github.com/vietstream/livechat/internal/chat"

// Estimated menu box used for viewport clamping.
const (
	menuWidth   = 200
	menuHeight  = 250
	menuPadding = 10
)

// Viewport is the renderer's visible area in pixels.
type Viewport struct {
	Width  int
	Height int
}

// Menu is the operator's contextual action menu for one comment.
type Menu struct {
	Comment chat.Comment
	X, Y    int
	// CanInspectSource gates the reveal-address and block-source
	// actions: both require the comment to carry a source address.
	CanInspectSource bool
	// HasCoordinates enables the read-only location display.
	HasCoordinates bool
}

// Click handles a tap on a comment. An operator session opens the
// action menu; everyone else gets the reply flow, even when the comment
// carries a source address.
func (s *Surface) Click(c chat.Comment, x, y int, vp Viewport) {
	if s.operator == nil {
		s.Reply(c)
		return
	}

	x, y = clampMenu(x, y, vp)
	s.menu = &Menu{
		Comment:          c,
		X:                x,
		Y:                y,
		CanInspectSource: c.IPAddress != "",
		HasCoordinates:   c.Latitude != nil && c.Longitude != nil,
	}
}

// Menu returns the open action menu, nil when closed.
func (s *Surface) Menu() *Menu {
	return s.menu
}

// CloseMenu dismisses the action menu.
func (s *Surface) CloseMenu() {
	s.menu = nil
}

// clampMenu keeps the menu box inside the viewport.
func clampMenu(x, y int, vp Viewport) (int, int) {
	if y+menuHeight > vp.Height {
		y = vp.Height - menuHeight - menuPadding
	}
	if x+menuWidth > vp.Width {
		x = vp.Width - menuWidth - menuPadding
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return x, y
}
