package erpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/kolo/xmlrpc"
)

// ErrAuthenticationFailed means the server rejected the credentials. Fatal;
// never retried.
var ErrAuthenticationFailed = errors.New("erp authentication failed")

// ErrServerUnreachable is returned once transport errors have exhausted the
// retry budget.
var ErrServerUnreachable = errors.New("erp server unreachable")

// RemoteFault is a business-logic rejection from the server (permission,
// validation, locked record). Re-raised to the caller, never retried.
type RemoteFault struct {
	Code    int
	Message string
}

func (f *RemoteFault) Error() string {
	return fmt.Sprintf("remote fault %d: %s", f.Code, f.Message)
}

// asFault extracts the server fault from an xmlrpc error, if any.
func asFault(err error) (*RemoteFault, bool) {
	var fe *xmlrpc.FaultError
	if errors.As(err, &fe) {
		return &RemoteFault{Code: fe.Code, Message: strings.TrimSpace(fe.String)}, true
	}
	var fv xmlrpc.FaultError
	if errors.As(err, &fv) {
		return &RemoteFault{Code: fv.Code, Message: strings.TrimSpace(fv.String)}, true
	}
	return nil, false
}

// isSessionExpired recognizes the server-side session expiry fault. It
// triggers an immediate reconnect and does not consume the retry budget.
func isSessionExpired(err error) bool {
	f, ok := asFault(err)
	if !ok {
		return false
	}
	msg := strings.ToLower(f.Message)
	return strings.Contains(msg, "sessionexpired") || strings.Contains(msg, "session expired")
}

// isTransient reports whether the error is a transport-level failure worth
// retrying. Server faults are business errors and are final.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if _, fault := asFault(err); fault {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"eof",
		"timeout",
		"temporary failure",
		"no such host",
		"bad gateway",
		"service unavailable",
		"gateway timeout",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
