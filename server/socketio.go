package server

import (
	"context"
	"sync"

	"github.com/zishang520/socket.io/v2/socket"
)

// Socket.io event names. The browser emits executeEvent with the source
// text; the server answers with stdout and error events, then done.
const (
	executeEvent = "execute"
	stdoutEvent  = "stdout"
	errorEvent   = "error"
	doneEvent    = "done"
)

// socketBridge gives every browser connection its own session and relays
// the session's responses as socket.io events.
type socketBridge struct {
	io       *socket.Server
	sessions *SessionStore
}

func newSocketBridge(sessions *SessionStore) *socketBridge {
	b := &socketBridge{
		io:       socket.NewServer(nil, nil),
		sessions: sessions,
	}
	b.io.On("connection", func(clients ...any) {
		client, ok := clients[0].(*socket.Socket)
		if !ok {
			return
		}
		b.connect(client)
	})
	return b
}

func (b *socketBridge) connect(client *socket.Socket) {
	session := b.sessions.Create("socket.io " + string(client.Id()))

	// ctx is cancelled on disconnect, disposing every in-flight route of
	// this socket.
	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu     sync.Mutex
		closed bool
		wg     sync.WaitGroup
	)

	client.On(executeEvent, func(args ...any) {
		source := ""
		if len(args) > 0 {
			source, _ = args[0].(string)
		}

		// wg.Add happens under mu so it never races the Wait below.
		mu.Lock()
		if closed {
			mu.Unlock()
			return
		}
		wg.Add(1)
		mu.Unlock()

		id, responses, err := session.Dispatcher.Execute(ctx, source)
		if err != nil {
			wg.Done()
			client.Emit(errorEvent, eventPayload("", err.Error()))
			return
		}

		go func() {
			defer wg.Done()
			for resp := range responses {
				event := stdoutEvent
				if resp.Kind == ResponseError {
					event = errorEvent
				}
				client.Emit(event, eventPayload(id, resp.Text))
			}
			state, _ := session.Dispatcher.State(id)
			client.Emit(doneEvent, map[string]any{"id": id, "state": state.String()})
			session.Dispatcher.Dispose(id)
		}()
	})

	client.On("disconnect", func(...any) {
		mu.Lock()
		closed = true
		mu.Unlock()
		cancel()

		// A running script finishes on its own time; the event loop
		// does not wait for it.
		go func() {
			wg.Wait()
			b.sessions.Destroy(session.ID)
		}()
	})
}

func eventPayload(id, text string) map[string]any {
	return map[string]any{"id": id, "text": text}
}

func (b *socketBridge) close() {
	b.io.Close(nil)
}
