package pjlink

import (
	"context"
	"errors"
	"net"
	"runtime"
	"sync"
	"testing"
	"time"
)

// fakeConn records writes and blocks reads until closed.
type fakeConn struct {
	mu        sync.Mutex
	written   []byte
	closed    chan struct{}
	closeOnce sync.Once
	slow      bool
	broken    bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (f *fakeConn) Read(b []byte) (int, error) {
	<-f.closed
	return 0, net.ErrClosed
}

func (f *fakeConn) Write(b []byte) (int, error) {
	select {
	case <-f.closed:
		return 0, net.ErrClosed
	default:
	}
	f.mu.Lock()
	broken := f.broken
	f.mu.Unlock()
	if broken {
		return 0, errors.New("broken pipe")
	}
	for _, x := range b {
		f.mu.Lock()
		f.written = append(f.written, x)
		f.mu.Unlock()
		if f.slow {
			runtime.Gosched()
		}
	}
	return len(b), nil
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

// Break makes every later Write fail while reads keep blocking.
func (f *fakeConn) Break() {
	f.mu.Lock()
	f.broken = true
	f.mu.Unlock()
}

func (f *fakeConn) Written() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.written...)
}

func (f *fakeConn) LocalAddr() net.Addr                { return &net.TCPAddr{} }
func (f *fakeConn) RemoteAddr() net.Addr               { return &net.TCPAddr{} }
func (f *fakeConn) SetDeadline(t time.Time) error      { return nil }
func (f *fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (f *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

// fakeDialer fails the first failFirst calls (or every call when alwaysFail)
// and hands out fakeConns afterwards.
type fakeDialer struct {
	mu         sync.Mutex
	calls      int
	failFirst  int
	alwaysFail bool
	slow       bool
	conns      []*fakeConn
	addresses  []string
}

func (d *fakeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.addresses = append(d.addresses, address)
	if d.alwaysFail || d.calls <= d.failFirst {
		return nil, errors.New("connection refused")
	}
	c := newFakeConn()
	c.slow = d.slow
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDialer) Addresses() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.addresses...)
}

func (d *fakeDialer) Conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

// stateRecorder collects connection transitions.
type stateRecorder struct {
	mu     sync.Mutex
	states []ConnectionState
}

func (r *stateRecorder) record(s ConnectionState) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *stateRecorder) States() []ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ConnectionState(nil), r.states...)
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// containsInOrder reports whether want appears in got as a subsequence.
func containsInOrder(got, want []ConnectionState) bool {
	i := 0
	for _, s := range got {
		if i < len(want) && s == want[i] {
			i++
		}
	}
	return i == len(want)
}
