package erpclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kolo/xmlrpc"
	"github.com/sirupsen/logrus"
)

// fakeTransport scripts the replies of one endpoint. A handler can be
// swapped mid-test to simulate recovery.
type fakeTransport struct {
	handler func(method string, args any) (any, error)

	mu    sync.Mutex
	calls int
}

func (f *fakeTransport) Call(method string, args any, reply any) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	res, err := f.handler(method, args)
	if err != nil {
		return err
	}
	*(reply.(*any)) = res
	return nil
}

type fakeServer struct {
	common  *fakeTransport
	object  *fakeTransport
	dials   int
	uid     int64
	authErr bool
}

func newFakeServer(object func(method string, args any) (any, error)) *fakeServer {
	s := &fakeServer{uid: 7}
	s.common = &fakeTransport{handler: func(method string, args any) (any, error) {
		if method == "version" {
			return map[string]any{"server_version": "16.0"}, nil
		}
		if s.authErr {
			return false, nil
		}
		return s.uid, nil
	}}
	s.object = &fakeTransport{handler: object}
	return s
}

func (s *fakeServer) dialer() Dialer {
	return func(endpoint string, _ time.Duration) (Transport, error) {
		s.dials++
		if strings.HasSuffix(endpoint, "/common") {
			return s.common, nil
		}
		return s.object, nil
	}
}

func testOptions() Options {
	return Options{
		ServerURL:          "http://erp.test",
		Database:           "db",
		Username:           "u",
		Password:           "p",
		PoolSize:           4,
		MaxCallsPerSession: 500,
		MaxSessionAge:      time.Hour,
		MaxSessionIdle:     3 * time.Minute,
		MaxRetries:         3,
		RetryBaseDelay:     time.Millisecond,
		RetryMaxDelay:      5 * time.Millisecond,
		ReconnectCooldown:  0,
		CallTimeout:        time.Second,
	}
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(&strings.Builder{})
	return log
}

func newTestClient(t *testing.T, srv *fakeServer) *Client {
	t.Helper()
	c, err := New(testOptions(), quietLogger(), srv.dialer())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestCallSuccess(t *testing.T) {
	srv := newFakeServer(func(method string, args any) (any, error) {
		if method != "execute_kw" {
			return nil, fmt.Errorf("unexpected method %s", method)
		}
		params := args.([]any)
		if params[1].(int64) != 7 {
			return nil, fmt.Errorf("uid not threaded through, got %v", params[1])
		}
		return []any{int64(42)}, nil
	})
	c := newTestClient(t, srv)
	defer c.Close()

	ids, err := Search(context.Background(), c, 0, "res.partner", []any{Domain("ref", "=", "X")}, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(ids) != 1 || ids[0] != 42 {
		t.Fatalf("got %v", ids)
	}
}

func TestCallRetriesTransientThenSucceeds(t *testing.T) {
	failures := 2
	srv := newFakeServer(func(method string, args any) (any, error) {
		if failures > 0 {
			failures--
			return nil, errors.New("connection refused")
		}
		return int64(99), nil
	})
	c := newTestClient(t, srv)
	defer c.Close()

	id, err := Create(context.Background(), c, 0, "purchase.order", map[string]any{"name": "PO1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != 99 {
		t.Fatalf("got %d", id)
	}
	if srv.object.calls != 3 {
		t.Fatalf("want 3 object calls (2 failures + success), got %d", srv.object.calls)
	}
}

func TestCallExhaustsRetryBudget(t *testing.T) {
	srv := newFakeServer(func(method string, args any) (any, error) {
		return nil, errors.New("connection refused")
	})
	c := newTestClient(t, srv)
	defer c.Close()

	_, err := c.Call(context.Background(), 0, "res.partner", "search", []any{}, nil)
	if !errors.Is(err, ErrServerUnreachable) {
		t.Fatalf("want ErrServerUnreachable, got %v", err)
	}
	// initial attempt + MaxRetries
	if srv.object.calls != 4 {
		t.Fatalf("want 4 attempts, got %d", srv.object.calls)
	}
}

func TestCallRemoteFaultNotRetried(t *testing.T) {
	srv := newFakeServer(func(method string, args any) (any, error) {
		return nil, &xmlrpc.FaultError{Code: 2, String: "ValidationError: missing partner"}
	})
	c := newTestClient(t, srv)
	defer c.Close()

	_, err := c.Call(context.Background(), 0, "account.move", "create", []any{}, nil)
	var fault *RemoteFault
	if !errors.As(err, &fault) {
		t.Fatalf("want *RemoteFault, got %v", err)
	}
	if fault.Code != 2 || !strings.Contains(fault.Message, "ValidationError") {
		t.Fatalf("fault mangled: %+v", fault)
	}
	if srv.object.calls != 1 {
		t.Fatalf("business fault must not retry, got %d calls", srv.object.calls)
	}
}

func TestCallSessionExpiredReconnects(t *testing.T) {
	expired := true
	srv := newFakeServer(func(method string, args any) (any, error) {
		if expired {
			expired = false
			return nil, &xmlrpc.FaultError{Code: 100, String: "odoo.http.SessionExpiredException"}
		}
		return int64(1), nil
	})
	c := newTestClient(t, srv)
	defer c.Close()

	res, err := c.Call(context.Background(), 0, "res.partner", "search", []any{}, nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if Int64(res) != 1 {
		t.Fatalf("got %v", res)
	}
	// common dialed twice: once initially, once for the reconnect
	if srv.common.calls != 2 {
		t.Fatalf("want re-authentication after session expiry, got %d auth calls", srv.common.calls)
	}
}

func TestAuthenticationFailureIsFatal(t *testing.T) {
	srv := newFakeServer(func(method string, args any) (any, error) {
		return int64(1), nil
	})
	srv.authErr = true
	c := newTestClient(t, srv)
	defer c.Close()

	_, err := c.Call(context.Background(), 0, "res.partner", "search", []any{}, nil)
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("want ErrAuthenticationFailed, got %v", err)
	}
	if srv.common.calls != 1 {
		t.Fatalf("bad credentials must not retry, got %d auth attempts", srv.common.calls)
	}
}

func TestSessionRetiredAfterMaxCalls(t *testing.T) {
	srv := newFakeServer(func(method string, args any) (any, error) {
		return int64(1), nil
	})
	c, err := New(func() Options {
		o := testOptions()
		o.MaxCallsPerSession = 2
		return o
	}(), quietLogger(), srv.dialer())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := c.Call(ctx, 0, "res.partner", "search", []any{}, nil); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	// 5 calls at 2 per session = 3 sessions, each authenticating once.
	if srv.common.calls != 3 {
		t.Fatalf("want 3 sessions, authenticated %d times", srv.common.calls)
	}
}

func TestWorkersGetSeparateSessions(t *testing.T) {
	srv := newFakeServer(func(method string, args any) (any, error) {
		return int64(1), nil
	})
	c := newTestClient(t, srv)
	defer c.Close()

	ctx := context.Background()
	for w := 0; w < 3; w++ {
		if _, err := c.Call(ctx, w, "res.partner", "search", []any{}, nil); err != nil {
			t.Fatalf("worker %d: %v", w, err)
		}
	}
	if srv.common.calls != 3 {
		t.Fatalf("want one session per worker, got %d", srv.common.calls)
	}
	// second round reuses them
	for w := 0; w < 3; w++ {
		if _, err := c.Call(ctx, w, "res.partner", "search", []any{}, nil); err != nil {
			t.Fatalf("worker %d: %v", w, err)
		}
	}
	if srv.common.calls != 3 {
		t.Fatalf("sessions not reused, %d authentications", srv.common.calls)
	}
}

// Transient failures mark the session broken while other workers keep
// calling through the same pool; run with -race to check the session fields
// stay guarded.
func TestBrokenSessionReplacedUnderConcurrency(t *testing.T) {
	var n atomic.Int64
	srv := newFakeServer(func(method string, args any) (any, error) {
		if n.Add(1) <= 3 {
			return nil, errors.New("connection reset by peer")
		}
		return int64(1), nil
	})
	c := newTestClient(t, srv)
	defer c.Close()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				if _, err := c.Call(context.Background(), worker, "res.partner", "search", []any{}, nil); err != nil {
					t.Errorf("worker %d call %d: %v", worker, i, err)
				}
			}
		}(w)
	}
	wg.Wait()
}

func TestVersionPreflight(t *testing.T) {
	srv := newFakeServer(func(method string, args any) (any, error) {
		return nil, errors.New("object endpoint must not be hit")
	})
	c := newTestClient(t, srv)
	defer c.Close()

	v, err := c.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != "16.0" {
		t.Fatalf("got %q", v)
	}
}

func TestIsTransient(t *testing.T) {
	if !isTransient(errors.New("read tcp: connection reset by peer")) {
		t.Fatal("connection reset should be transient")
	}
	if !isTransient(context.DeadlineExceeded) {
		t.Fatal("deadline should be transient")
	}
	if isTransient(context.Canceled) {
		t.Fatal("cancellation is not transient")
	}
	if isTransient(&xmlrpc.FaultError{Code: 1, String: "boom"}) {
		t.Fatal("server faults are final")
	}
}
