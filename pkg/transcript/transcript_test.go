package transcript

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var at = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func TestAppendListKeepsOrder(t *testing.T) {
	tr := New()
	if _, err := tr.Append(RoleBot, "welcome", at); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if _, err := tr.Append(RoleUser, "hello", at.Add(time.Second)); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	messages := tr.List()
	if len(messages) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(messages))
	}
	if messages[0].Role != RoleBot || messages[0].ID != 1 {
		t.Fatalf("first message = %#v", messages[0])
	}
	if messages[1].Role != RoleUser || messages[1].Text != "hello" || messages[1].ID != 2 {
		t.Fatalf("second message = %#v", messages[1])
	}

	messages[0].Text = "mutated"
	if tr.List()[0].Text != "welcome" {
		t.Fatal("List must return a copy")
	}
}

func TestAppendRejectsBlankText(t *testing.T) {
	tr := New()
	if _, err := tr.Append(RoleUser, "  \n ", at); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("error = %v, want %v", err, ErrEmptyMessage)
	}
	if tr.Len() != 0 {
		t.Fatalf("len = %d, want 0", tr.Len())
	}
}

func TestRevealLifecycle(t *testing.T) {
	tr := New()

	msg, err := tr.BeginReveal(RoleBot, "héllo")
	if err != nil {
		t.Fatalf("BeginReveal error: %v", err)
	}
	if !msg.Revealing || msg.Visible() != "" || !msg.At.IsZero() {
		t.Fatalf("revealing message = %#v", msg)
	}

	if _, err := tr.BeginReveal(RoleBot, "second"); !errors.Is(err, ErrRevealInProgress) {
		t.Fatalf("error = %v, want %v", err, ErrRevealInProgress)
	}

	if err := tr.UpdateReveal("hé"); err != nil {
		t.Fatalf("UpdateReveal error: %v", err)
	}
	current, ok := tr.Revealing()
	if !ok || current.Visible() != "hé" {
		t.Fatalf("Revealing() = %#v, %v", current, ok)
	}

	done, err := tr.CompleteReveal(at)
	if err != nil {
		t.Fatalf("CompleteReveal error: %v", err)
	}
	if done.Revealing || done.Visible() != "héllo" || !done.At.Equal(at) {
		t.Fatalf("completed message = %#v", done)
	}
	if _, ok := tr.Revealing(); ok {
		t.Fatal("expected no revealing message after completion")
	}
	if _, err := tr.CompleteReveal(at); !errors.Is(err, ErrNoReveal) {
		t.Fatalf("error = %v, want %v", err, ErrNoReveal)
	}
	if err := tr.UpdateReveal("x"); !errors.Is(err, ErrNoReveal) {
		t.Fatalf("error = %v, want %v", err, ErrNoReveal)
	}
}

func TestConcurrentAppend(t *testing.T) {
	tr := New()
	const n = 50

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _ = tr.Append(RoleUser, "hello", at)
		}()
	}
	wg.Wait()

	messages := tr.List()
	if len(messages) != n {
		t.Fatalf("len(messages) = %d, want %d", len(messages), n)
	}
	for i, msg := range messages {
		if msg.ID != i+1 {
			t.Fatalf("messages[%d].ID = %d, want %d", i, msg.ID, i+1)
		}
	}
}
