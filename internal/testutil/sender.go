package testutil

import (
	"context"
	"net/http"
	"sync"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/transport"
)

// Reply scripts one answer of a Sender.
type Reply struct {
	Resp  *transport.SubmitResponse
	Err   error
	Panic any
}

// Call records one request a Sender received.
type Call struct {
	Method string
	URL    string
	Body   []byte
}

// Sender is a scripted stand-in for the API client. Replies are consumed
// in order; once they run out every call succeeds.
//
// Thread-safety: safe for concurrent use.
type Sender struct {
	mu      sync.Mutex
	url     string
	replies []Reply
	calls   []Call
}

// NewSender creates a sender whose submission endpoint is url.
func NewSender(url string, replies ...Reply) *Sender {
	return &Sender{url: url, replies: replies}
}

// SubmitURL returns the configured endpoint.
func (s *Sender) SubmitURL() string {
	return s.url
}

// Submit records a POST to the submission endpoint.
func (s *Sender) Submit(ctx context.Context, body []byte) (*transport.SubmitResponse, error) {
	return s.Send(ctx, http.MethodPost, s.url, body)
}

// Send records the call and plays the next reply.
func (s *Sender) Send(_ context.Context, method, url string, body []byte) (*transport.SubmitResponse, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: method, URL: url, Body: append([]byte(nil), body...)})
	var r Reply
	scripted := len(s.replies) > 0
	if scripted {
		r = s.replies[0]
		s.replies = s.replies[1:]
	}
	s.mu.Unlock()

	if !scripted {
		return &transport.SubmitResponse{Success: true, RequestID: "1", Message: "ok"}, nil
	}
	if r.Panic != nil {
		panic(r.Panic)
	}
	if r.Err != nil {
		return nil, r.Err
	}
	if r.Resp == nil {
		return &transport.SubmitResponse{Success: true, RequestID: "1", Message: "ok"}, nil
	}
	return r.Resp, nil
}

// Calls returns the recorded calls.
func (s *Sender) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}
