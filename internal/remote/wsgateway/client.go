// Package wsgateway maintains a persistent WebSocket connection to the
// remote service's install-request channel, reconnecting with exponential
// backoff on failure. It is the Go translation of WebSocketClient in the
// original spelunkyfyi::web_socket module: github.com/coder/websocket takes
// the place of tokio-tungstenite, and ctx cancellation takes the place of
// tokio_graceful_shutdown's on_shutdown_requested.
package wsgateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/coder/websocket"

	"mlcore/internal/domain"
	"mlcore/internal/modmanager"
)

const (
	DefaultMinPingInterval = 15 * time.Second
	DefaultMaxPingInterval = 25 * time.Second
	DefaultPongTimeout     = 10 * time.Second

	initialBackoff    = time.Second
	maxBackoff        = time.Minute
	backoffMultiplier = 2
	outboundQueueSize = 2
)

// errPongTimeout marks a handleMessages return as "no pong arrived in
// time", distinguishing it (via errors.Is, not string-matching) from an
// ordinary read/write failure so classify can treat it as a restart.
var errPongTimeout = errors.New("pong timeout")

// Installer is the subset of *modmanager.Manager a Client needs to act on
// an inbound install request.
type Installer interface {
	Install(ctx context.Context, source modmanager.ModSource) (domain.Mod, error)
}

// Client holds a single persistent gateway connection, reconnecting for as
// long as Run's context stays alive.
type Client struct {
	serviceURL string
	authHeader string
	installer  Installer

	minPingInterval time.Duration
	maxPingInterval time.Duration
	pongTimeout     time.Duration

	log *slog.Logger
}

// Option configures a Client at construction time.
type Option func(*Client)

func WithPingInterval(min, max time.Duration) Option {
	return func(c *Client) { c.minPingInterval, c.maxPingInterval = min, max }
}

func WithPongTimeout(d time.Duration) Option {
	return func(c *Client) { c.pongTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New builds a Client targeting serviceRoot's gateway endpoint
// (ws(s)://.../ws/gateway/ml/, derived from serviceRoot's own scheme and
// path the same way root_to_service_uri does in the original).
func New(serviceRoot, authToken string, installer Installer, opts ...Option) (*Client, error) {
	wsURL, err := gatewayURL(serviceRoot)
	if err != nil {
		return nil, err
	}
	if authToken == "" {
		return nil, fmt.Errorf("%w: empty auth token", domain.ErrInvalidToken)
	}

	c := &Client{
		serviceURL:      wsURL,
		authHeader:      "Token " + authToken,
		installer:       installer,
		minPingInterval: DefaultMinPingInterval,
		maxPingInterval: DefaultMaxPingInterval,
		pongTimeout:     DefaultPongTimeout,
		log:             slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func gatewayURL(serviceRoot string) (string, error) {
	u, err := url.Parse(serviceRoot)
	if err != nil {
		return "", fmt.Errorf("%w: invalid service root %q", domain.ErrInvalidURI, serviceRoot)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("%w: unknown service scheme %q", domain.ErrInvalidURI, u.Scheme)
	}
	u.Path = path.Join(u.Path, "ws/gateway/ml/")
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String(), nil
}

// Run connects, reconnecting whenever the connection drops, until ctx is
// cancelled or a permanent error (bad auth) is hit, in which case Run
// returns that error and the component is expected to stop for good.
func (c *Client) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return nil
		}

		err := c.connectAndRun(ctx)
		switch {
		case err == nil:
			backoff = initialBackoff
			continue
		case errors.Is(err, context.Canceled):
			return nil
		}

		switch classify(err) {
		case outcomePermanent:
			c.log.Error("authorization failed, incorrect token?", "error", err)
			return fmt.Errorf("gateway rejected connection: %w", err)

		case outcomeRestart:
			c.log.Debug("gateway connection closed, reconnecting", "error", err)
			backoff = initialBackoff
			continue

		default: // outcomeTransient
			wait := backoff
			c.log.Warn("gateway connection dropped, reconnecting", "error", err, "wait", wait)
			backoff = min(backoff*backoffMultiplier, maxBackoff)

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

// connOutcome is how Run should react to a dropped connection: grow the
// backoff and retry (transient), reset the backoff and retry immediately
// (restart), or give up entirely (permanent).
type connOutcome int

const (
	outcomeTransient connOutcome = iota
	outcomeRestart
	outcomePermanent
)

// classify maps a connectAndRun error onto the three outcomes above. A
// close frame from the server (any code except the two explicitly
// overloaded/restarting ones) and a missed pong are both "the connection
// ended cleanly, reconnect now" - a normal part of the gateway's own
// lifecycle, not a fault. A 403/Forbidden response to the handshake is the
// one case Run can't recover from by retrying at all. Everything else
// (dial failures, 429/503/504, network blips) grows the backoff.
func classify(err error) connOutcome {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.StatusTryAgainLater, websocket.StatusServiceRestart:
			return outcomeTransient
		default:
			return outcomeRestart
		}
	}
	if errors.Is(err, errPongTimeout) {
		return outcomeRestart
	}
	if strings.Contains(err.Error(), "403") || strings.Contains(err.Error(), "Forbidden") {
		return outcomePermanent
	}
	return outcomeTransient
}

func (c *Client) connectAndRun(ctx context.Context) error {
	header := http.Header{}
	header.Set("Authorization", c.authHeader)

	conn, _, err := websocket.Dial(ctx, c.serviceURL, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return fmt.Errorf("dialing gateway: %w", err)
	}
	defer conn.CloseNow()

	c.log.Debug("gateway connected", "url", c.serviceURL)
	return c.handleMessages(ctx, conn)
}

func (c *Client) pingJitter() time.Duration {
	if c.maxPingInterval <= c.minPingInterval {
		return c.minPingInterval
	}
	spread := c.maxPingInterval - c.minPingInterval
	return c.minPingInterval + time.Duration(rand.Int64N(int64(spread)))
}

type readResult struct {
	typ  websocket.MessageType
	data []byte
	err  error
}

// handleMessages runs the read/ping loop for one connection, returning
// when the connection closes, a ping times out, or ctx is cancelled.
func (c *Client) handleMessages(ctx context.Context, conn *websocket.Conn) error {
	outbound := make(chan []byte, outboundQueueSize)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range outbound {
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}()
	defer func() {
		close(outbound)
		<-writerDone
	}()

	reads := make(chan readResult)
	go func() {
		for {
			typ, data, err := conn.Read(ctx)
			select {
			case reads <- readResult{typ, data, err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	pingTimer := time.NewTimer(c.pingJitter())
	defer pingTimer.Stop()
	pingResult := make(chan error, 1)
	pingInFlight := false

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return nil

		case <-pingTimer.C:
			if pingInFlight {
				continue
			}
			pingInFlight = true
			go func() {
				pctx, cancel := context.WithTimeout(ctx, c.pongTimeout)
				defer cancel()
				pingResult <- conn.Ping(pctx)
			}()

		case err := <-pingResult:
			pingInFlight = false
			if err != nil {
				return fmt.Errorf("%w: %v", errPongTimeout, err)
			}
			pingTimer.Reset(c.pingJitter())

		case res := <-reads:
			if res.err != nil {
				return res.err
			}
			if res.typ == websocket.MessageText || res.typ == websocket.MessageBinary {
				if err := c.handleFrame(ctx, outbound, res.data); err != nil {
					return err
				}
			}
		}
	}
}
