// Package testing provides test utilities for framez pipelines.
//
// It includes a configurable mock unit, a recorder that captures the
// order in which units are entered and left, and assertion helpers.
//
// Example usage:
//
//	func TestMyPipeline(t *testing.T) {
//		rec := testing.NewRecorder()
//		auth := testing.NewMockUnit(t, "auth").Delegate().RecordTo(rec)
//		handler := testing.NewMockUnit(t, "handler").
//			WithResponse(framez.NewResponse(200, "ok")).
//			RecordTo(rec)
//
//		p, _ := framez.New("test",
//			framez.When(framez.Use(auth), framez.Path("/api")),
//			framez.Always(framez.Use(handler)),
//		)
//		_, err := p.Dispatch(context.Background(), framez.NewRequest("GET", "/api/x"))
//
//		testing.AssertOrder(t, rec, "enter:auth", "enter:handler", "exit:handler", "exit:auth")
//	}
package testing

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/framez"
)

// MockUnit is a configurable framez.Unit. By default it answers every
// request with its configured response; Delegate makes it pass the
// request on to its continuation instead.
type MockUnit struct { //nolint:govet // fieldalignment: Test helper struct optimized for functionality over memory efficiency
	t           *testing.T
	name        string
	callCount   int64
	response    framez.Response
	err         error
	panicMsg    string
	delay       time.Duration
	delegate    bool
	recorder    *Recorder
	lastRequest framez.Request
	history     []MockCall
	mu          sync.RWMutex
}

// MockCall represents a single call to the mock unit.
type MockCall struct {
	Request   framez.Request
	Timestamp time.Time
	Context   context.Context
}

// NewMockUnit creates a mock unit that answers 200 with an empty body.
func NewMockUnit(t *testing.T, name string) *MockUnit {
	return &MockUnit{
		t:        t,
		name:     name,
		response: framez.NewResponse(200, ""),
	}
}

// WithResponse configures the response returned when not delegating.
func (m *MockUnit) WithResponse(res framez.Response) *MockUnit {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = res
	return m
}

// WithError configures the mock to fail with err.
func (m *MockUnit) WithError(err error) *MockUnit {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithPanic configures the mock to panic with msg.
func (m *MockUnit) WithPanic(msg string) *MockUnit {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicMsg = msg
	return m
}

// WithDelay configures the mock to wait before answering. The wait ends
// early, with the context's error, when the context is done.
func (m *MockUnit) WithDelay(d time.Duration) *MockUnit {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// Delegate makes the mock invoke its continuation and return the result.
func (m *MockUnit) Delegate() *MockUnit {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delegate = true
	return m
}

// RecordTo makes the mock log "enter:<name>" and "exit:<name>" to rec.
func (m *MockUnit) RecordTo(rec *Recorder) *MockUnit {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorder = rec
	return m
}

// Name returns the name of the mock unit.
func (m *MockUnit) Name() framez.Name {
	return m.name
}

// Process implements framez.Unit.
func (m *MockUnit) Process(ctx context.Context, req framez.Request, next framez.Continuation) (framez.Response, error) {
	atomic.AddInt64(&m.callCount, 1)

	m.mu.Lock()
	m.lastRequest = req
	m.history = append(m.history, MockCall{Request: req, Timestamp: time.Now(), Context: ctx})
	response := m.response
	err := m.err
	panicMsg := m.panicMsg
	delay := m.delay
	delegate := m.delegate
	rec := m.recorder
	m.mu.Unlock()

	if rec != nil {
		rec.Record("enter:" + m.name)
		defer rec.Record("exit:" + m.name)
	}

	if panicMsg != "" {
		panic(panicMsg)
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	if delegate {
		return next.Invoke(ctx, req)
	}
	return response, nil
}

// CallCount returns the number of times Process has been called.
func (m *MockUnit) CallCount() int {
	return int(atomic.LoadInt64(&m.callCount))
}

// LastRequest returns the request from the most recent call.
func (m *MockUnit) LastRequest() framez.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequest
}

// CallHistory returns a copy of all recorded calls.
func (m *MockUnit) CallHistory() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.history)
}

// Reset clears call tracking.
func (m *MockUnit) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	atomic.StoreInt64(&m.callCount, 0)
	m.lastRequest = nil
	m.history = nil
}

// Recorder collects an ordered trace of events from mock units.
type Recorder struct {
	events []string
	mu     sync.Mutex
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends an event.
func (r *Recorder) Record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Reset clears the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Assertion Helpers

// AssertCalled verifies that a mock unit was called exactly n times.
func AssertCalled(t *testing.T, mock *MockUnit, expectedCalls int) {
	t.Helper()
	if actual := mock.CallCount(); actual != expectedCalls {
		t.Errorf("expected mock unit %s to be called %d times, but was called %d times",
			mock.name, expectedCalls, actual)
	}
}

// AssertNotCalled verifies that a mock unit was never called.
func AssertNotCalled(t *testing.T, mock *MockUnit) {
	t.Helper()
	AssertCalled(t, mock, 0)
}

// AssertCalledWithPath verifies the path of the most recent request.
func AssertCalledWithPath(t *testing.T, mock *MockUnit, path string) {
	t.Helper()
	req := mock.LastRequest()
	if req == nil {
		t.Errorf("expected mock unit %s to be called with path %q, but it was never called", mock.name, path)
		return
	}
	if req.Path() != path {
		t.Errorf("expected mock unit %s to be called with path %q, but was called with %q",
			mock.name, path, req.Path())
	}
}

// AssertOrder verifies the recorder saw exactly the given events in order.
func AssertOrder(t *testing.T, rec *Recorder, expected ...string) {
	t.Helper()
	if actual := rec.Events(); !slices.Equal(actual, expected) {
		t.Errorf("expected events %v, got %v", expected, actual)
	}
}

// Helper Functions

// WaitForCalls waits for a mock unit to be called at least n times, with
// a timeout. Returns true if the expected calls were reached.
func WaitForCalls(mock *MockUnit, expectedCalls int, timeout time.Duration) bool {
	start := time.Now()
	for time.Since(start) < timeout {
		if mock.CallCount() >= expectedCalls {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// ParallelTest runs testFunc in the given number of goroutines and waits
// for all of them.
func ParallelTest(t *testing.T, goroutines int, testFunc func(int)) {
	t.Helper()

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			testFunc(id)
		}(i)
	}

	wg.Wait()
}
