package agents

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// fakeGateway is a scripted in-memory Gateway. Replies are chosen by
// the first matching substring rule, in registration order.
type fakeGateway struct {
	mu    sync.Mutex
	rules []replyRule
	sent  []sentMessage

	assistantSeq int32
	threadSeq    int32

	failCreates bool
}

type replyRule struct {
	contains string
	reply    string
	err      error
}

type sentMessage struct {
	ThreadID string
	Content  string
	Model    string
	Provider string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{}
}

func (f *fakeGateway) on(contains, reply string) *fakeGateway {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, replyRule{contains: contains, reply: reply})
	return f
}

func (f *fakeGateway) onError(contains string, err error) *fakeGateway {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, replyRule{contains: contains, err: err})
	return f
}

func (f *fakeGateway) CreateAssistant(_ context.Context, name, _ string) (string, error) {
	if f.failCreates {
		return "", fmt.Errorf("create assistant %s refused", name)
	}
	return fmt.Sprintf("asst-%d", atomic.AddInt32(&f.assistantSeq, 1)), nil
}

func (f *fakeGateway) CreateThread(_ context.Context, _ string) (string, error) {
	if f.failCreates {
		return "", fmt.Errorf("create thread refused")
	}
	return fmt.Sprintf("thread-%d", atomic.AddInt32(&f.threadSeq, 1)), nil
}

func (f *fakeGateway) SendMessage(_ context.Context, threadID, content, model, provider string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{ThreadID: threadID, Content: content, Model: model, Provider: provider})

	for _, rule := range f.rules {
		if strings.Contains(content, rule.contains) {
			return rule.reply, rule.err
		}
	}
	return "", fmt.Errorf("no scripted reply for message: %.60s", content)
}

func (f *fakeGateway) sentMessages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}
