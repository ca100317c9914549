package erpclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/erp_importer/config"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

// Caller is the call primitive the rest of the engine depends on. The
// worker index keys the session pool so that each logical worker keeps its
// own session. Tests substitute fakes.
type Caller interface {
	Call(ctx context.Context, worker int, model, method string, args []any, kw map[string]any) (any, error)
}

// Options is the session manager configuration.
type Options struct {
	ServerURL string
	Database  string
	Username  string
	Password  string

	PoolSize           int
	MaxCallsPerSession int
	MaxSessionAge      time.Duration
	MaxSessionIdle     time.Duration
	MaxRetries         int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	ReconnectCooldown  time.Duration
	CallTimeout        time.Duration
}

// OptionsFromSettings lifts the relevant runtime settings.
func OptionsFromSettings(s config.Settings) Options {
	return Options{
		ServerURL:          s.ServerURL,
		Database:           s.Database,
		Username:           s.Username,
		Password:           s.Password,
		PoolSize:           s.PoolSize,
		MaxCallsPerSession: s.MaxCallsPerSession,
		MaxSessionAge:      s.MaxSessionAge,
		MaxSessionIdle:     s.MaxSessionIdle,
		MaxRetries:         s.MaxRetries,
		RetryBaseDelay:     s.RetryBaseDelay,
		RetryMaxDelay:      s.RetryMaxDelay,
		ReconnectCooldown:  s.ReconnectCooldown,
		CallTimeout:        s.CallTimeout,
	}
}

// Client maintains authenticated sessions to the ERP, hiding reconnects and
// transient failures behind Call.
type Client struct {
	opt  Options
	dial Dialer
	log  *logrus.Logger

	mu          sync.Mutex
	pool        *lru.Cache[int, *session]
	lastFailure time.Time
	seq         int64
}

// New builds the client. dial may be nil to use the XML-RPC dialer.
func New(opt Options, log *logrus.Logger, dial Dialer) (*Client, error) {
	if dial == nil {
		dial = DialXMLRPC
	}
	if log == nil {
		log = config.GetLogger()
	}
	size := opt.PoolSize
	if size <= 0 {
		size = 8
	}
	pool, err := lru.NewWithEvict[int, *session](size, func(worker int, s *session) {
		log.WithFields(logrus.Fields{"worker": worker, "session": s.id}).Debug("evicting least-recently-used session")
	})
	if err != nil {
		return nil, err
	}
	return &Client{opt: opt, dial: dial, log: log, pool: pool}, nil
}

// Version asks the common endpoint for the server version. Used as the
// connection preflight before a run starts.
func (c *Client) Version(ctx context.Context) (string, error) {
	common, err := c.dial(endpointURL(c.opt.ServerURL, "common"), c.opt.CallTimeout)
	if err != nil {
		return "", err
	}
	var reply any
	if err := common.Call("version", []any{}, &reply); err != nil {
		return "", err
	}
	if m, ok := reply.(map[string]any); ok {
		if v, ok := m["server_version"].(string); ok {
			return v, nil
		}
	}
	return fmt.Sprintf("%v", reply), nil
}

// Call issues execute_kw with transparent reconnect and retry. Business
// faults from the server are returned as *RemoteFault and never retried; a
// session-expired fault reconnects immediately without consuming the retry
// budget; transport errors retry with exponential backoff until the budget
// is exhausted, then surface as ErrServerUnreachable.
func (c *Client) Call(ctx context.Context, worker int, model, method string, args []any, kw map[string]any) (any, error) {
	backoff := retry.WithMaxRetries(uint64(c.opt.MaxRetries),
		retry.WithJitter(500*time.Millisecond,
			retry.WithCappedDuration(c.opt.RetryMaxDelay,
				retry.NewExponential(c.opt.RetryBaseDelay))))

	var result any
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		s, err := c.sessionFor(ctx, worker)
		if err != nil {
			if errors.Is(err, ErrAuthenticationFailed) {
				return err
			}
			return c.markRetry(worker, attempt, err)
		}

		res, err := s.execute(c.opt.Database, c.opt.Password, model, method, args, kw)
		if err == nil {
			c.touch(s)
			result = res
			return nil
		}

		if isSessionExpired(err) {
			c.log.WithFields(logrus.Fields{"worker": worker, "session": s.id}).Warn("session expired, reconnecting")
			c.invalidate(worker)
			s2, rerr := c.sessionFor(ctx, worker)
			if rerr != nil {
				if errors.Is(rerr, ErrAuthenticationFailed) {
					return rerr
				}
				return c.markRetry(worker, attempt, rerr)
			}
			res, err = s2.execute(c.opt.Database, c.opt.Password, model, method, args, kw)
			if err == nil {
				c.touch(s2)
				result = res
				return nil
			}
			s = s2
		}

		if fault, ok := asFault(err); ok {
			return fault
		}
		if !isTransient(err) {
			return err
		}

		c.markBroken(s)
		return c.markRetry(worker, attempt, err)
	})

	if err != nil {
		var fault *RemoteFault
		if errors.As(err, &fault) {
			return nil, fault
		}
		if errors.Is(err, ErrAuthenticationFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w after %d attempt(s): %v", ErrServerUnreachable, attempt, err)
	}
	return result, nil
}

// Close drains the pool. Sessions are stateless HTTP, so draining is just
// dropping them.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pool.Purge()
}

func (c *Client) touch(s *session) {
	c.mu.Lock()
	s.calls++
	s.lastUsed = time.Now()
	c.mu.Unlock()
}

// markBroken flags the session so the next sessionFor replaces it. Session
// fields are only ever touched under c.mu.
func (c *Client) markBroken(s *session) {
	c.mu.Lock()
	s.broken = true
	c.mu.Unlock()
}

func (c *Client) invalidate(worker int) {
	c.mu.Lock()
	c.pool.Remove(worker)
	c.mu.Unlock()
}

// sessionFor returns the worker's pooled session, reconnecting when it is
// missing, broken, expired, or over-used.
func (c *Client) sessionFor(ctx context.Context, worker int) (*session, error) {
	c.mu.Lock()
	if s, ok := c.pool.Get(worker); ok {
		if !s.overused(c.opt.MaxCallsPerSession, c.opt.MaxSessionAge, c.opt.MaxSessionIdle, time.Now()) {
			c.mu.Unlock()
			return s, nil
		}
		c.log.WithFields(logrus.Fields{"worker": worker, "session": s.id, "calls": s.calls}).Info("retiring over-used session")
		c.pool.Remove(worker)
	}
	c.mu.Unlock()

	s, err := c.connect(ctx, worker)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.pool.Add(worker, s)
	c.mu.Unlock()
	return s, nil
}

// connect dials and authenticates a fresh session. After a failed connect,
// further attempts wait out the cooldown to avoid hammering a failing
// server.
func (c *Client) connect(ctx context.Context, worker int) (*session, error) {
	c.mu.Lock()
	wait := time.Duration(0)
	if !c.lastFailure.IsZero() {
		if since := time.Since(c.lastFailure); since < c.opt.ReconnectCooldown {
			wait = c.opt.ReconnectCooldown - since
		}
	}
	c.mu.Unlock()

	if wait > 0 {
		c.log.WithFields(logrus.Fields{"worker": worker, "cooldown": wait.String()}).Info("reconnect cooldown in effect")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	common, err := c.dial(endpointURL(c.opt.ServerURL, "common"), c.opt.CallTimeout)
	if err != nil {
		c.noteFailure()
		return nil, err
	}
	uid, err := authenticate(common, c.opt.Database, c.opt.Username, c.opt.Password)
	if err != nil {
		if !errors.Is(err, ErrAuthenticationFailed) {
			c.noteFailure()
		}
		return nil, err
	}
	object, err := c.dial(endpointURL(c.opt.ServerURL, "object"), c.opt.CallTimeout)
	if err != nil {
		c.noteFailure()
		return nil, err
	}

	c.mu.Lock()
	c.seq++
	s := &session{id: c.seq, object: object, uid: uid, created: time.Now()}
	c.lastFailure = time.Time{}
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"worker": worker, "session": s.id, "uid": uid}).Info("connected to erp")
	return s, nil
}

func (c *Client) noteFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
}

// markRetry logs the retry with its attempt number and the backoff the
// policy will apply (modulo jitter), then marks the error retryable.
func (c *Client) markRetry(worker, attempt int, err error) error {
	delay := c.opt.RetryBaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.opt.RetryMaxDelay {
			delay = c.opt.RetryMaxDelay
			break
		}
	}
	c.log.WithFields(logrus.Fields{
		"worker":  worker,
		"attempt": attempt,
		"backoff": delay.String(),
	}).Warn(fmt.Sprintf("transient rpc failure: %v", err))
	return retry.RetryableError(err)
}
