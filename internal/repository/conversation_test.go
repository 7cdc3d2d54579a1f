package repository

import (
	"fmt"
	"sync"
	"testing"

	"github.com/dak-1306/pyctalk-sub001/internal/domain"
	"github.com/dak-1306/pyctalk-sub001/pkg/logger"
)

func newTestStore() *ConversationStore {
	return NewConversationStore(logger.New("error"))
}

func TestAppendAssignsOrderedUniqueIDs(t *testing.T) {
	s := newTestStore()

	const n = 50
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		msg := s.Append("alice", "bob", fmt.Sprintf("msg %d", i), domain.MessageTypeText, nil)
		if seen[msg.ID] {
			t.Fatalf("duplicate message id %q", msg.ID)
		}
		seen[msg.ID] = true
	}

	history := s.History("bob", "alice", n, 0)
	if len(history) != n {
		t.Fatalf("history returned %d messages, want %d", len(history), n)
	}
	for i := 1; i < len(history); i++ {
		if history[i].CreatedAt.Before(history[i-1].CreatedAt) {
			t.Fatalf("history out of order at %d", i)
		}
	}
}

func TestAppendConcurrentBurst(t *testing.T) {
	s := newTestStore()

	const workers = 16
	const perWorker = 25

	var wg sync.WaitGroup
	ids := make(chan string, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				msg := s.Append("alice", "bob", "burst", domain.MessageTypeText, nil)
				ids <- msg.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id under concurrent sends: %q", id)
		}
		seen[id] = true
	}
	if len(seen) != workers*perWorker {
		t.Fatalf("got %d unique ids, want %d", len(seen), workers*perWorker)
	}
	if got := s.Size("alice", "bob"); got != workers*perWorker {
		t.Fatalf("log size %d, want %d", got, workers*perWorker)
	}
}

func TestHistoryPaginationWindow(t *testing.T) {
	s := newTestStore()
	for i := 0; i < 10; i++ {
		s.Append("alice", "bob", fmt.Sprintf("m%d", i), domain.MessageTypeText, nil)
	}

	window := s.History("alice", "bob", 3, 4)
	if len(window) != 3 {
		t.Fatalf("window of 3 from offset 4 returned %d messages", len(window))
	}
	for i, want := range []string{"m4", "m5", "m6"} {
		if window[i].Content != want {
			t.Errorf("window[%d] = %q, want %q", i, window[i].Content, want)
		}
	}

	// Хвост короче лимита
	tail := s.History("alice", "bob", 10, 8)
	if len(tail) != 2 {
		t.Fatalf("tail returned %d messages, want 2", len(tail))
	}

	// За пределами журнала
	if got := s.History("alice", "bob", 5, 100); len(got) != 0 {
		t.Fatalf("out-of-range offset returned %d messages", len(got))
	}
	if got := s.History("nobody", "noone", 5, 0); len(got) != 0 {
		t.Fatalf("unknown pair returned %d messages", len(got))
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	s := newTestStore()
	s.Append("alice", "bob", "one", domain.MessageTypeText, nil)
	s.Append("alice", "bob", "two", domain.MessageTypeText, nil)
	s.Append("bob", "alice", "reply", domain.MessageTypeText, nil)

	if marked := s.MarkRead("bob", "alice"); marked != 2 {
		t.Fatalf("first MarkRead marked %d, want 2", marked)
	}
	if marked := s.MarkRead("bob", "alice"); marked != 0 {
		t.Fatalf("repeated MarkRead marked %d, want 0", marked)
	}

	// Сообщение bob -> alice не затронуто
	for _, m := range s.History("alice", "bob", 10, 0) {
		if m.Recipient == "bob" && !m.IsRead {
			t.Error("message to bob left unread after MarkRead")
		}
		if m.Recipient == "alice" && m.IsRead {
			t.Error("message to alice must stay unread")
		}
	}
}

func TestUnreadCountAcrossConversations(t *testing.T) {
	s := newTestStore()
	s.Append("alice", "bob", "hi", domain.MessageTypeText, nil)
	s.Append("alice", "bob", "there", domain.MessageTypeText, nil)
	s.Append("carol", "bob", "hello", domain.MessageTypeText, nil)
	s.Append("bob", "alice", "yo", domain.MessageTypeText, nil)

	if got := s.UnreadCount("bob"); got != 3 {
		t.Fatalf("UnreadCount(bob) = %d, want 3", got)
	}

	s.MarkRead("bob", "alice")
	if got := s.UnreadCount("bob"); got != 1 {
		t.Fatalf("after reading alice: UnreadCount(bob) = %d, want 1", got)
	}

	s.MarkRead("bob", "carol")
	if got := s.UnreadCount("bob"); got != 0 {
		t.Fatalf("after reading all: UnreadCount(bob) = %d, want 0", got)
	}
}

func TestRestoreContinuesSequence(t *testing.T) {
	s := newTestStore()
	first := s.Append("alice", "bob", "before", domain.MessageTypeText, nil)

	dump := s.Dump()

	restored := newTestStore()
	for key, msgs := range dump {
		restored.Restore(key, msgs)
	}

	next := restored.Append("alice", "bob", "after", domain.MessageTypeText, nil)
	if next.ID == first.ID {
		t.Fatalf("id reused after restore: %q", next.ID)
	}
	if got := restored.Size("alice", "bob"); got != 2 {
		t.Fatalf("restored log size %d, want 2", got)
	}
}
