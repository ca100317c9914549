package erpclient

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kolo/xmlrpc"
)

// Transport is one XML-RPC endpoint. The real implementation wraps
// kolo/xmlrpc; tests substitute fakes.
type Transport interface {
	Call(serviceMethod string, args any, reply any) error
}

// Dialer builds a Transport for an endpoint URL. Swappable for tests.
type Dialer func(endpoint string, callTimeout time.Duration) (Transport, error)

// timeoutTransport enforces the per-call timeout at the HTTP layer, so a
// stalled server surfaces as a transient deadline error subject to retry.
type timeoutTransport struct {
	base    http.RoundTripper
	timeout time.Duration
}

func (t *timeoutTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(req.Context(), t.timeout)
	resp, err := t.base.RoundTrip(req.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelBody struct {
	ReadCloser interface {
		Read([]byte) (int, error)
		Close() error
	}
	cancel context.CancelFunc
}

func (b *cancelBody) Read(p []byte) (int, error) { return b.ReadCloser.Read(p) }

func (b *cancelBody) Close() error {
	b.cancel()
	return b.ReadCloser.Close()
}

// DialXMLRPC is the production dialer.
func DialXMLRPC(endpoint string, callTimeout time.Duration) (Transport, error) {
	return xmlrpc.NewClient(endpoint, &timeoutTransport{
		base:    http.DefaultTransport,
		timeout: callTimeout,
	})
}

// endpointURL joins the server base URL with the RPC service path
// ("common" or "object").
func endpointURL(serverURL, service string) string {
	return strings.TrimRight(serverURL, "/") + "/xmlrpc/2/" + service
}
