package server

import (
	"strings"
	"testing"
)

func TestSessionStore_CreateGetDestroy(t *testing.T) {
	store := NewSessionStore(4)
	defer store.Close()

	a := store.Create("a")
	b := store.Create("")
	if a.ID == b.ID {
		t.Fatalf("duplicate id %q", a.ID)
	}
	if store.Len() != 2 {
		t.Errorf("Len = %d, want 2", store.Len())
	}
	if got, ok := store.Get(a.ID); !ok || got != a || got.Name != "a" {
		t.Errorf("Get(%q) = %+v, %v", a.ID, got, ok)
	}

	if !store.Destroy(a.ID) {
		t.Error("Destroy reported a missing session")
	}
	if store.Destroy(a.ID) {
		t.Error("second Destroy reported success")
	}
	if _, ok := store.Get(a.ID); ok {
		t.Error("destroyed session still retrievable")
	}
	if _, _, err := a.Dispatcher.Execute(t.Context(), "println(1);"); err == nil {
		t.Error("destroyed session accepted a request")
	}
}

func TestSessionStore_SessionsAreIsolated(t *testing.T) {
	store := NewSessionStore(4)
	defer store.Close()

	a := store.Create("a")
	b := store.Create("b")

	execute(t, a, "let shared = 1;")
	_, responses := execute(t, b, "println(shared);")
	if len(responses) != 1 || responses[0].Kind != ResponseError {
		t.Fatalf("session b saw a's global: %+v", responses)
	}
	if !strings.Contains(responses[0].Text, "shared") {
		t.Errorf("Text = %q", responses[0].Text)
	}

	_, responses = execute(t, a, "println(shared);")
	if len(responses) == 0 || responses[0].Text != "[STDOUT] 1\n" {
		t.Errorf("session a lost its global: %+v", responses)
	}
}

func TestSessionStore_Close(t *testing.T) {
	store := NewSessionStore(4)
	for range 3 {
		store.Create("")
	}
	store.Close()
	if store.Len() != 0 {
		t.Errorf("Len after Close = %d", store.Len())
	}
}
