package runner

import (
	"sync"
	"testing"
)

func TestOutputSink_DeliversFullTranscript(t *testing.T) {
	var got []string
	sink := NewOutputSink(NewSubscription(func(s string) { got = append(got, s) }))

	sink.Append("a")
	sink.Append("b")

	if len(got) != 2 || got[0] != "a" || got[1] != "ab" {
		t.Errorf("deliveries = %q, want [a ab]", got)
	}
	if sink.Transcript() != "ab" {
		t.Errorf("Transcript() = %q, want ab", sink.Transcript())
	}
}

func TestOutputSink_CancelledSubscription(t *testing.T) {
	calls := 0
	sub := NewSubscription(func(string) { calls++ })
	sink := NewOutputSink(sub)

	if !sink.Append("one") {
		t.Error("live subscription did not deliver")
	}
	sub.Cancel()
	sub.Cancel()
	if sink.Append("two") {
		t.Error("cancelled subscription reported a delivery")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if sink.Transcript() != "onetwo" {
		t.Errorf("Transcript() = %q, append must continue after cancel", sink.Transcript())
	}
}

func TestOutputSink_NilSubscription(t *testing.T) {
	sink := NewOutputSink(nil)
	if sink.Append("x") {
		t.Error("nil subscription reported a delivery")
	}
	if NewOutputSink(NewSubscription(nil)).Append("x") {
		t.Error("nil deliver func reported a delivery")
	}
}

func TestOutputSink_ConcurrentAppends(t *testing.T) {
	var mu sync.Mutex
	longest := 0
	sink := NewOutputSink(NewSubscription(func(s string) {
		mu.Lock()
		defer mu.Unlock()
		if len(s) < longest {
			t.Errorf("delivery shrank from %d to %d bytes", longest, len(s))
		}
		longest = len(s)
	}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sink.Append("x")
			}
		}()
	}
	wg.Wait()

	if got := len(sink.Transcript()); got != 400 {
		t.Errorf("transcript length = %d, want 400", got)
	}
}
