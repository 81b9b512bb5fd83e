package policy

import (
	"context"
	"sync"

	"github.com/teslashibe/go-interview/pkg/transcript"
)

// Mock implements Client for testing.
type Mock struct {
	// NextFunc is called when NextUtterance is invoked. When nil the mock
	// replays Replies in order and then repeats the last one.
	NextFunc func(ctx context.Context, ictx Context, history []transcript.Turn, input string) (string, error)

	Replies []string

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records one NextUtterance invocation.
type MockCall struct {
	Context Context
	History []transcript.Turn
	Input   string
}

// NewMock returns a mock replying with replies in order.
func NewMock(replies ...string) *Mock {
	return &Mock{Replies: replies}
}

// FailingMock fails the first n calls with ErrPolicyUnavailable, then
// answers with reply.
func FailingMock(n int, reply string) *Mock {
	m := &Mock{}
	m.NextFunc = func(context.Context, Context, []transcript.Turn, string) (string, error) {
		if m.CallCount() <= n {
			return "", &Error{Kind: KindUnavailable, Message: "mock outage"}
		}
		return reply, nil
	}
	return m
}

// NextUtterance records the call and produces the next reply.
func (m *Mock) NextUtterance(ctx context.Context, ictx Context, history []transcript.Turn, input string) (string, error) {
	m.mu.Lock()
	snapshot := make([]transcript.Turn, len(history))
	copy(snapshot, history)
	m.calls = append(m.calls, MockCall{Context: ictx, History: snapshot, Input: input})
	n := len(m.calls)
	m.mu.Unlock()

	if m.NextFunc != nil {
		return m.NextFunc(ctx, ictx, history, input)
	}
	if err := ctx.Err(); err != nil {
		return "", Unavailable(err)
	}
	if len(m.Replies) == 0 {
		return "Tell me more about that.", nil
	}
	if n > len(m.Replies) {
		n = len(m.Replies)
	}
	return m.Replies[n-1], nil
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastCall returns the most recent call, or false if there was none.
func (m *Mock) LastCall() (MockCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return MockCall{}, false
	}
	return m.calls[len(m.calls)-1], true
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

var _ Client = (*Mock)(nil)
