package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/hundreds/internal/domain"
)

func TestTranscript(t *testing.T) {
	tr := NewTranscript(DefaultGreeting)
	if tr.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tr.Len())
	}
	if m := tr.Messages()[0]; m.Role != domain.RoleBot || m.Text != DefaultGreeting {
		t.Errorf("seed message = %+v", m)
	}

	tr.Append(domain.RoleUser, "a")
	tr.Append(domain.RoleBot, "b")
	tail := tr.Tail(2)
	if len(tail) != 2 || tail[0].Text != "a" || tail[1].Text != "b" {
		t.Errorf("Tail(2) = %+v", tail)
	}

	msgs := tr.Messages()
	msgs[0].Text = "changed"
	if tr.Messages()[0].Text != DefaultGreeting {
		t.Error("Messages() exposed internal slice")
	}

	if NewTranscript("").Len() != 0 {
		t.Error("empty greeting should give an empty transcript")
	}
}

func TestSessionStore_CreateGetDelete(t *testing.T) {
	store := NewSessionStore(DefaultGreeting)
	sess := store.Create()
	if sess.ID == uuid.Nil {
		t.Fatal("session ID is nil")
	}
	if sess.Len() != 1 {
		t.Errorf("new session has %d messages, want 1", sess.Len())
	}

	got, err := store.Get(sess.ID)
	if err != nil || got != sess {
		t.Fatalf("Get = %v, %v", got, err)
	}

	store.Delete(sess.ID)
	if _, err := store.Get(sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get after Delete error = %v, want ErrSessionNotFound", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
}

func TestSessionStore_IsolatesTranscripts(t *testing.T) {
	bot := newTestBot()
	store := NewSessionStore(DefaultGreeting)
	a, b := store.Create(), store.Create()

	a.Turn(context.Background(), bot, "hi")
	if a.Len() != 3 || b.Len() != 1 {
		t.Errorf("lengths a=%d b=%d, want 3 and 1", a.Len(), b.Len())
	}
}

func TestSession_ConcurrentTurns(t *testing.T) {
	bot := newTestBot()
	sess := NewSessionStore("").Create()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.Turn(context.Background(), bot, "Virat Kohli ODIs")
		}()
	}
	wg.Wait()

	msgs := sess.Messages(0)
	if len(msgs) != 40 {
		t.Fatalf("got %d messages, want 40", len(msgs))
	}
	for i := 0; i < len(msgs); i += 2 {
		if msgs[i].Role != domain.RoleUser || msgs[i+1].Role != domain.RoleBot {
			t.Fatalf("turn %d interleaved: %+v %+v", i/2, msgs[i], msgs[i+1])
		}
	}
}

func TestSessionStore_Evict(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewSessionStore("")
	store.now = func() time.Time { return now }

	stale := store.Create()
	now = now.Add(20 * time.Minute)
	fresh := store.Create()

	if n := store.Evict(10 * time.Minute); n != 1 {
		t.Errorf("Evict() = %d, want 1", n)
	}
	if _, err := store.Get(stale.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Error("stale session survived eviction")
	}
	if _, err := store.Get(fresh.ID); err != nil {
		t.Errorf("fresh session evicted: %v", err)
	}

	// A turn refreshes the idle clock.
	now = now.Add(20 * time.Minute)
	fresh.Turn(context.Background(), newTestBot(), "hi")
	now = now.Add(5 * time.Minute)
	if n := store.Evict(10 * time.Minute); n != 0 {
		t.Errorf("Evict() = %d, want 0 after recent turn", n)
	}
}
