package stub

import (
	"sync"
	"time"

	"github.com/vietstream/livechat/internal/chat"
)

// BlockedIP is one entry of the admin block list.
type BlockedIP struct {
	ID        int64  `json:"id"`
	IPAddress string `json:"ipAddress"`
	Reason    string `json:"reason"`
	BlockedAt string `json:"blockedAt"`
	BlockedBy string `json:"blockedBy"`
}

// Blocklist is the in-memory source-address block list. Blocking takes
// effect at comment ingress; it never touches already-delivered
// comments.
type Blocklist struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]BlockedIP
}

// NewBlocklist builds an empty block list.
func NewBlocklist() *Blocklist {
	return &Blocklist{byID: make(map[int64]BlockedIP)}
}

// Block adds an address. Re-blocking an already blocked address fails.
func (b *Blocklist) Block(ip, reason, blockedBy string) (BlockedIP, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, entry := range b.byID {
		if entry.IPAddress == ip {
			return BlockedIP{}, false
		}
	}

	b.nextID++
	entry := BlockedIP{
		ID:        b.nextID,
		IPAddress: ip,
		Reason:    reason,
		BlockedAt: time.Now().Format(chat.CreatedAtFormat),
		BlockedBy: blockedBy,
	}
	b.byID[entry.ID] = entry
	return entry, true
}

// Unblock removes an entry by id.
func (b *Blocklist) Unblock(id int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.byID[id]; !ok {
		return false
	}
	delete(b.byID, id)
	return true
}

// Blocked reports whether an address is currently blocked.
func (b *Blocklist) Blocked(ip string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, entry := range b.byID {
		if entry.IPAddress == ip {
			return true
		}
	}
	return false
}

// All returns the current entries.
func (b *Blocklist) All() []BlockedIP {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]BlockedIP, 0, len(b.byID))
	for _, entry := range b.byID {
		out = append(out, entry)
	}
	return out
}
