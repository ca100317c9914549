package erpclient

import (
	"fmt"
	"time"
)

// session is one authenticated connection. A session is retired once it has
// served too many calls, lived too long, or sat idle past the configured
// interval; the next Call on it reconnects transparently.
type session struct {
	id       int64
	object   Transport
	uid      int64
	created  time.Time
	lastUsed time.Time
	calls    int
	broken   bool
}

func (s *session) overused(maxCalls int, maxAge, maxIdle time.Duration, now time.Time) bool {
	if s.broken {
		return true
	}
	if maxCalls > 0 && s.calls >= maxCalls {
		return true
	}
	if maxAge > 0 && now.Sub(s.created) >= maxAge {
		return true
	}
	if maxIdle > 0 && !s.lastUsed.IsZero() && now.Sub(s.lastUsed) >= maxIdle {
		return true
	}
	return false
}

// execute issues one execute_kw call on this session.
func (s *session) execute(database, password, model, method string, args []any, kw map[string]any) (any, error) {
	if kw == nil {
		kw = map[string]any{}
	}
	params := []any{database, s.uid, password, model, method, args, kw}
	var reply any
	if err := s.object.Call("execute_kw", params, &reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// authenticate resolves the integer user id on the common endpoint. The
// server answers false (not a fault) on bad credentials.
func authenticate(common Transport, database, username, password string) (int64, error) {
	var reply any
	err := common.Call("authenticate", []any{database, username, password, map[string]any{}}, &reply)
	if err != nil {
		return 0, err
	}
	switch v := reply.(type) {
	case int64:
		if v > 0 {
			return v, nil
		}
	case int:
		if v > 0 {
			return int64(v), nil
		}
	case bool:
		// false: rejected credentials
	}
	return 0, fmt.Errorf("%w: server returned %v", ErrAuthenticationFailed, reply)
}
