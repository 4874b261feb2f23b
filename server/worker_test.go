package server

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/ellapad/runner"
)

func TestSessionWorker_Do(t *testing.T) {
	w := NewSessionWorker(runner.NewSession(), 4)
	defer w.Stop()

	result, err := w.Do(func(s *runner.Session) interface{} {
		out, _ := s.Run("println(40 + 2);", nil)
		return out
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !strings.HasPrefix(result.(string), "[STDOUT] 42\n") {
		t.Errorf("result = %q", result)
	}
}

func TestSessionWorker_RecoversPanics(t *testing.T) {
	w := NewSessionWorker(runner.NewSession(), 4)
	defer w.Stop()

	_, err := w.Do(func(*runner.Session) interface{} {
		panic("boom")
	})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("err = %v, want boom", err)
	}

	// The worker survives.
	result, err := w.Do(func(s *runner.Session) interface{} { return s.BootstrapCount() })
	if err != nil || result.(int) != 1 {
		t.Errorf("after panic: result = %v, err = %v", result, err)
	}
}

func TestSessionWorker_PostAfterStop(t *testing.T) {
	w := NewSessionWorker(runner.NewSession(), 4)
	w.Stop()
	w.Stop()

	if err := w.Post(func(*runner.Session) {}, nil); !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("Post err = %v, want ErrWorkerStopped", err)
	}
	if _, err := w.Do(func(*runner.Session) interface{} { return nil }); !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("Do err = %v, want ErrWorkerStopped", err)
	}
}

func TestSessionWorker_QueueFull(t *testing.T) {
	w := NewSessionWorker(runner.NewSession(), 1)
	release := blockWorker(t, w)
	defer w.Stop()
	defer release()

	if err := w.Post(func(*runner.Session) {}, nil); err != nil {
		t.Fatalf("first queued Post: %v", err)
	}
	if err := w.Post(func(*runner.Session) {}, nil); !errors.Is(err, ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}
}

func TestSessionWorker_StopFailsQueuedJobs(t *testing.T) {
	w := NewSessionWorker(runner.NewSession(), 4)
	release := blockWorker(t, w)

	ran := false
	failed := make(chan error, 1)
	if err := w.Post(func(*runner.Session) { ran = true }, func(err error) { failed <- err }); err != nil {
		t.Fatal(err)
	}

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	// Wait until Stop has closed the worker to new jobs.
	for !errors.Is(w.Post(func(*runner.Session) {}, nil), ErrWorkerStopped) {
	}
	release()
	<-stopped

	select {
	case err := <-failed:
		if !errors.Is(err, ErrWorkerStopped) {
			t.Errorf("fail err = %v, want ErrWorkerStopped", err)
		}
	default:
		t.Error("queued job was neither run nor failed")
	}
	if ran {
		t.Error("queued job ran after Stop")
	}
}
