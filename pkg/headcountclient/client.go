// Package headcountclient consumes the live headcount stream and reconnects after
// transport failures.
package headcountclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultRetryDelay is the fixed wait between reconnect attempts.
const DefaultRetryDelay = 5 * time.Second

// State is the connection state of a Client.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// allowed lists the legal transitions. Disconnected is reachable from every state through Close.
var allowed = map[State][]State{
	Disconnected: {Connecting},
	Connecting:   {Connected, Reconnecting},
	Connected:    {Reconnecting},
	Reconnecting: {Connecting},
}

// StatusError reports a non-200 response from the stream endpoint.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stream responded %d %s", e.Code, http.StatusText(e.Code))
}

// Options configures a Client.
type Options struct {
	// BaseURL is the API origin, e.g. http://localhost:8080.
	BaseURL string
	Token   string
	// Date selects the day to watch (YYYY-MM-DD). Empty means the server's today.
	Date string
	Team string
	// RetryDelay overrides DefaultRetryDelay. A retry field sent by the server replaces it.
	RetryDelay time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger

	// OnEvent receives every event, including heartbeats.
	OnEvent func(Event)
	// OnState receives each state change.
	OnState func(State)
	// OnError receives the error that ended a connection attempt.
	OnError func(error)
}

// Client is a reconnecting SSE consumer of /api/stream/headcount.
type Client struct {
	opts     Options
	endpoint string
	http     *http.Client
	logger   *zap.Logger

	mu     sync.Mutex
	state  State
	retry  time.Duration
	cancel context.CancelFunc
	done   chan struct{}
}

// New validates opts and returns a disconnected client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}
	if opts.Token == "" {
		return nil, errors.New("token is required")
	}
	endpoint := base.JoinPath("/api/stream/headcount")
	q := endpoint.Query()
	q.Set("token", opts.Token)
	if opts.Date != "" {
		q.Set("date", opts.Date)
	}
	if opts.Team != "" {
		q.Set("team", opts.Team)
	}
	endpoint.RawQuery = q.Encode()

	c := &Client{
		opts:     opts,
		endpoint: endpoint.String(),
		http:     opts.HTTPClient,
		logger:   opts.Logger,
		retry:    opts.RetryDelay,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.retry <= 0 {
		c.retry = DefaultRetryDelay
	}
	return c, nil
}

// State returns the current state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start connects in the background. A client runs at most once.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Disconnected || c.done != nil {
		c.mu.Unlock()
		return errors.New("client already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.run(ctx)
	return nil
}

// Close moves the client to Disconnected from any state, aborts the open
// connection, drops any pending reconnect and waits for the loop to exit.
func (c *Client) Close() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	changed := c.state != Disconnected
	c.state = Disconnected
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if changed && c.opts.OnState != nil {
		c.opts.OnState(Disconnected)
	}
}

// transition applies a legal state change. It returns false once the client is closed.
func (c *Client) transition(ctx context.Context, to State) bool {
	c.mu.Lock()
	if ctx.Err() != nil || c.cancel == nil {
		c.mu.Unlock()
		return false
	}
	legal := false
	for _, s := range allowed[c.state] {
		if s == to {
			legal = true
			break
		}
	}
	if !legal {
		from := c.state
		c.mu.Unlock()
		c.logger.Error("illegal state transition", zap.Stringer("from", from), zap.Stringer("to", to))
		return false
	}
	c.state = to
	c.mu.Unlock()

	c.logger.Debug("stream state", zap.Stringer("state", to))
	if c.opts.OnState != nil {
		c.opts.OnState(to)
	}
	return true
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	for {
		if !c.transition(ctx, Connecting) {
			return
		}
		err := c.connect(ctx)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("stream interrupted", zap.Error(err), zap.Duration("retry_in", c.retryDelay()))
		if c.opts.OnError != nil {
			c.opts.OnError(err)
		}
		if !c.transition(ctx, Reconnecting) {
			return
		}
		timer := time.NewTimer(c.retryDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (c *Client) retryDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retry
}

// connect opens one stream and reads it until it fails. It always returns a non-nil error.
func (c *Client) connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode}
	}
	if !c.transition(ctx, Connected) {
		return context.Canceled
	}

	r := newReader(resp.Body)
	for {
		ev, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return fmt.Errorf("read: %w", err)
		}
		if ev.Retry > 0 && c.opts.RetryDelay <= 0 {
			c.mu.Lock()
			c.retry = ev.Retry
			c.mu.Unlock()
		}
		if c.opts.OnEvent != nil {
			c.opts.OnEvent(ev)
		}
	}
}
