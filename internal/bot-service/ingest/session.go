package ingest

import (
	"sync"
	"time"
)

type Mode int

const (
	ModeSingle Mode = iota + 1
	ModeBulk
)

func (m Mode) String() string {
	switch m {
	case ModeSingle:
		return "single"
	case ModeBulk:
		return "bulk"
	}
	return "none"
}

// Session is the in-memory state of one principal's upload.
type Session struct {
	ID        string
	OwnerID   int64
	Mode      Mode
	GroupName string
	FileNames []string
	StartedAt time.Time
}

func (s *Session) clone() *Session {
	c := *s
	c.FileNames = append([]string(nil), s.FileNames...)
	return &c
}

// slot serializes every operation of one principal. Slots are never removed,
// so a principal always locks the same mutex.
type slot struct {
	mu      sync.Mutex
	session *Session
}

type sessions struct {
	mu    sync.Mutex
	slots map[int64]*slot
}

func newSessions() *sessions {
	return &sessions{slots: make(map[int64]*slot)}
}

// lock returns the principal's slot with its mutex held.
func (s *sessions) lock(ownerID int64) *slot {
	s.mu.Lock()
	sl, ok := s.slots[ownerID]
	if !ok {
		sl = &slot{}
		s.slots[ownerID] = sl
	}
	s.mu.Unlock()

	sl.mu.Lock()
	return sl
}
