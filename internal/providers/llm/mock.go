package llm

import (
	"context"
	"strings"
	"sync"
)

// Reply is one scripted answer
type Reply struct {
	Content string
	Err     error
}

// Mock replays scripted replies. Rules match on a prompt substring and win
// over the queue; once the queue runs dry the fallback reply is used.
type Mock struct {
	mu       sync.Mutex
	rules    []rule
	queue    []Reply
	fallback Reply
	calls    []Request
}

type rule struct {
	contains string
	reply    Reply
}

// NewMock creates a mock that answers with an empty-response error by default
func NewMock() *Mock {
	return &Mock{fallback: Reply{Err: ErrEmptyResponse}}
}

// On answers every prompt containing substr with reply
func (m *Mock) On(substr string, reply Reply) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule{contains: substr, reply: reply})
	return m
}

// Enqueue appends replies consumed in order by unmatched prompts
func (m *Mock) Enqueue(replies ...Reply) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, replies...)
	return m
}

// Fallback sets the reply used when nothing else matches
func (m *Mock) Fallback(reply Reply) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = reply
	return m
}

// Complete implements Completer
func (m *Mock) Complete(ctx context.Context, req Request) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	reply := m.fallback
	matched := false
	for _, r := range m.rules {
		if strings.Contains(req.Prompt, r.contains) {
			reply, matched = r.reply, true
			break
		}
	}
	if !matched && len(m.queue) > 0 {
		reply, m.queue = m.queue[0], m.queue[1:]
	}

	if reply.Err != nil {
		return Response{}, reply.Err
	}
	return Response{Content: reply.Content, Model: "mock"}, nil
}

// Calls returns every request seen so far
func (m *Mock) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// CallCount returns how many prompts contained substr
func (m *Mock) CallCount(substr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if strings.Contains(c.Prompt, substr) {
			n++
		}
	}
	return n
}
