package client

import (
	"time"

	"github.com/atefhejazi1/job-kit-sub001/internal/domain/notification"
	"github.com/google/uuid"
)

// State is the client-visible view of one user's notifications: an ordered,
// deduplicated item list and a single unread counter, plus the pagination
// cursor and fetch status. The counter is a cache of the server invariant
// (count of unread rows) and is stale the moment a mutation the client did
// not originate could have occurred; the next count-update or fetch corrects
// it.
type State struct {
	Items       []notification.Notification
	UnreadCount int64
	Page        int
	HasMore     bool
	Loading     bool
	Err         error
}

// clone returns a deep-enough copy for snapshots and reads: the item slice
// is copied, the items themselves are values.
func (s State) clone() State {
	out := s
	out.Items = make([]notification.Notification, len(s.Items))
	copy(out.Items, s.Items)
	return out
}

func (s *State) indexOf(id uuid.UUID) int {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// applyEvent folds one pushed event into the state. Every branch is
// idempotent under duplicate or out-of-order delivery: items dedup by id,
// count-update always overwrites, and read flags only upgrade (unread to
// read), never downgrade.
func (s *State) applyEvent(event notification.Event) {
	switch event.Kind {
	case notification.EventNewNotification:
		if event.Notification == nil {
			return
		}
		if s.indexOf(event.Notification.ID) >= 0 {
			return // a re-fetch raced with the push, drop silently
		}
		s.Items = append([]notification.Notification{*event.Notification}, s.Items...)
		if !event.Notification.IsRead {
			s.UnreadCount++
		}

	case notification.EventCountUpdate:
		// Authoritative value, wins over any local arithmetic.
		s.UnreadCount = event.UnreadCount

	case notification.EventMarkedRead:
		// The count is untouched here; a count-update always follows.
		if i := s.indexOf(event.NotificationID); i >= 0 {
			s.markItemRead(i)
		}

	case notification.EventAllRead:
		for i := range s.Items {
			s.markItemRead(i)
		}
	}
}

// markItemRead upgrades one held item to read. ReadAt is stamped only on the
// first transition.
func (s *State) markItemRead(i int) {
	if s.Items[i].IsRead {
		return
	}
	now := time.Now().UTC()
	s.Items[i].IsRead = true
	s.Items[i].ReadAt = &now
}

// replace installs a freshly fetched first page, discarding any accumulated
// local state. Used on initial load and on every resync.
func (s *State) replace(items []notification.Notification, unreadCount int64, hasMore bool) {
	s.Items = append([]notification.Notification(nil), items...)
	s.UnreadCount = unreadCount
	s.Page = 1
	s.HasMore = hasMore
	s.Err = nil
}

// appendPage merges one further page into the list, skipping items already
// held (a push may have prepended an item the page also contains).
func (s *State) appendPage(items []notification.Notification, unreadCount int64, page int, hasMore bool) {
	for _, item := range items {
		if s.indexOf(item.ID) >= 0 {
			continue
		}
		s.Items = append(s.Items, item)
	}
	s.UnreadCount = unreadCount
	s.Page = page
	s.HasMore = hasMore
	s.Err = nil
}

// Optimistic local mutations. These mirror what the server will do so the UI
// reacts immediately; the authoritative count-update or the rollback on REST
// failure reconciles any divergence.

func (s *State) optimisticMarkRead(id uuid.UUID) {
	i := s.indexOf(id)
	if i < 0 || s.Items[i].IsRead {
		return
	}
	s.markItemRead(i)
	if s.UnreadCount > 0 {
		s.UnreadCount--
	}
}

func (s *State) optimisticMarkAllRead() {
	for i := range s.Items {
		s.markItemRead(i)
	}
	s.UnreadCount = 0
}

func (s *State) optimisticDelete(id uuid.UUID) {
	i := s.indexOf(id)
	if i < 0 {
		return
	}
	if !s.Items[i].IsRead && s.UnreadCount > 0 {
		s.UnreadCount--
	}
	s.Items = append(s.Items[:i], s.Items[i+1:]...)
}

func (s *State) optimisticClear() {
	s.Items = nil
	s.UnreadCount = 0
	s.HasMore = false
}
