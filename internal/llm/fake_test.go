package llm

import (
	"context"
	"sync"
	"time"
)

type fakeProvider struct {
	err      error
	id       string
	reply    string
	lastSys  string
	lastMsgs []Message
	delay    time.Duration
	calls    int
	mu       sync.Mutex
}

func (f *fakeProvider) ID() string { return f.id }

func (f *fakeProvider) Send(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	f.mu.Lock()
	f.calls++
	f.lastSys = systemPrompt
	f.lastMsgs = messages
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
