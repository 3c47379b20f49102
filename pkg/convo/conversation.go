package convo

import "sync"

// Conversation is an ordered, append-only log of turns. It is owned by a
// single orchestrator instance per session; the lock only guards against
// readers (snapshots) racing an append.
type Conversation struct {
	mu        sync.RWMutex
	turns     []Turn
	lastImage *ImageBlob
}

func New() *Conversation {
	return &Conversation{}
}

// Append adds a turn to the log. A user turn carrying an image also
// becomes the source for LastUserImage, so follow-up questions can refer
// to the previously captured frame without recapturing.
func (c *Conversation) Append(t Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.Kind == KindUser && t.Image != nil {
		c.lastImage = t.Image
	}
	c.turns = append(c.turns, t)
}

// Snapshot returns a defensive copy of the log in append order. The copy
// never observes later appends.
func (c *Conversation) Snapshot() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// LastUserImage returns the most recently attached user image, or nil if
// no user turn carried one.
func (c *Conversation) LastUserImage() *ImageBlob {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastImage
}

// Len reports the number of turns in the log.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}
