package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sealdice/cqsocket/cqcode"
	"github.com/sealdice/cqsocket/events"
)

const (
	defaultSendTimeout = 15 * time.Second
	defaultAttempts    = 10
	defaultDelay       = time.Second
)

// Reconnection controls automatic redial after an abnormal close (1006).
type Reconnection struct {
	Enabled  bool          `json:"enabled" yaml:"enabled" env:"ENABLED"`
	Attempts int           `json:"attempts" yaml:"attempts" env:"ATTEMPTS"`
	Delay    time.Duration `json:"delay" yaml:"delay" env:"DELAY"`
}

// Options configures a Client. BaseURL wins over Protocol/Host/Port.
type Options struct {
	BaseURL     string        `json:"base_url" yaml:"base_url" env:"BASE_URL"`
	Protocol    string        `json:"protocol" yaml:"protocol" env:"PROTOCOL"`
	Host        string        `json:"host" yaml:"host" env:"HOST"`
	Port        int           `json:"port" yaml:"port" env:"PORT"`
	AccessToken string        `json:"access_token" yaml:"access_token" env:"ACCESS_TOKEN"`
	SendTimeout time.Duration `json:"send_timeout" yaml:"send_timeout" env:"SEND_TIMEOUT"`

	// RateLimit caps outgoing API calls per second; zero disables it.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst int     `json:"rate_burst" yaml:"rate_burst" env:"RATE_BURST"`

	Reconnection Reconnection `json:"reconnection" yaml:"reconnection" envPrefix:"RECONNECTION_"`

	// Debug logs every raw frame.
	Debug bool `json:"debug" yaml:"debug" env:"DEBUG"`

	Logger *zap.Logger `json:"-" yaml:"-"`
}

// DefaultOptions mirrors a stock go-cqhttp forward websocket setup.
func DefaultOptions() Options {
	return Options{
		Protocol:    "ws",
		Host:        "127.0.0.1",
		Port:        6700,
		SendTimeout: defaultSendTimeout,
		Reconnection: Reconnection{
			Enabled:  true,
			Attempts: defaultAttempts,
			Delay:    defaultDelay,
		},
	}
}

func (o Options) baseURL() string {
	if o.BaseURL != "" {
		return strings.TrimRight(o.BaseURL, "/")
	}
	proto := o.Protocol
	if proto == "" {
		proto = "ws"
	}
	host := o.Host
	if host == "" {
		host = "127.0.0.1"
	}
	if o.Port == 0 {
		return proto + "://" + host
	}
	return proto + "://" + host + ":" + strconv.Itoa(o.Port)
}

func (o Options) channelURL(ch Channel) (string, error) {
	u, err := url.Parse(o.baseURL() + "/" + string(ch))
	if err != nil {
		return "", fmt.Errorf("cqsocket: bad base url: %w", err)
	}
	if o.AccessToken != "" {
		q := u.Query()
		q.Set("access_token", o.AccessToken)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// session wraps one websocket connection.
type session struct {
	ch        Channel
	url       string
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	manual    atomic.Bool
}

func (s *session) write(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// shutdown closes the connection on our initiative; no reconnect follows.
func (s *session) shutdown() {
	s.manual.Store(true)
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
}

func (s *session) drop() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
	})
}

// Client speaks OneBot 11 over the /api and /event websocket pair and
// publishes everything it receives on an events.Bus.
type Client struct {
	opts    Options
	bus     *events.Bus
	parser  *cqcode.Parser
	limiter *rate.Limiter
	dialer  *websocket.Dialer

	apiSession   atomic.Pointer[session]
	eventSession atomic.Pointer[session]
	pending      sync.Map // map[string]chan *APIResponse

	selfID atomic.Int64
	status atomic.Pointer[map[string]any]

	runMu  sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

// NewClient creates a client. A nil bus gets a fresh one sharing the
// client's logger.
func NewClient(opts Options, bus *events.Bus) *Client {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if opts.Reconnection.Attempts <= 0 {
		opts.Reconnection.Attempts = defaultAttempts
	}
	if opts.Reconnection.Delay <= 0 {
		opts.Reconnection.Delay = defaultDelay
	}
	if bus == nil {
		bus = events.NewBus(events.WithLogger(opts.Logger))
	}

	c := &Client{
		opts:   opts,
		bus:    bus,
		parser: cqcode.NewParser(opts.Logger),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(opts.RateBurst, 1))
	}
	return c
}

func (c *Client) log() *zap.SugaredLogger {
	if c.opts.Logger != nil {
		return c.opts.Logger.Sugar()
	}
	return zap.L().Named("adapter").Sugar()
}

// Bus returns the bus events are published on.
func (c *Client) Bus() *events.Bus { return c.bus }

// On is a shortcut for c.Bus().On.
func (c *Client) On(path string, h events.Handler) (events.Handle, error) {
	return c.bus.On(path, h)
}

func (c *Client) Once(path string, h events.Handler) (events.Handle, error) {
	return c.bus.Once(path, h)
}

func (c *Client) Off(path string, handle events.Handle) bool {
	return c.bus.Off(path, handle)
}

// Bind registers a handler group on the client's bus, see events.BindMode.
func (c *Client) Bind(mode events.BindMode, handlers map[string]events.Handler) (map[string]events.Handle, error) {
	return c.bus.Bind(mode, handlers)
}

func (c *Client) Unbind(handles map[string]events.Handle) int {
	return c.bus.Unbind(handles)
}

// IsAlive reports whether both sockets are open.
func (c *Client) IsAlive() bool {
	return c.apiSession.Load() != nil && c.eventSession.Load() != nil
}

// SelfID is the bot account reported by the last lifecycle meta event.
func (c *Client) SelfID() int64 { return c.selfID.Load() }

// Status is the status object of the last heartbeat, or nil.
func (c *Client) Status() map[string]any {
	if p := c.status.Load(); p != nil {
		return *p
	}
	return nil
}

// Connect dials both sockets. A failed dial is returned, and when
// reconnection is enabled it keeps retrying in the background.
func (c *Client) Connect(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.runMu.Lock()
	if c.ctx == nil || c.ctx.Err() != nil {
		c.ctx, c.cancel = context.WithCancel(context.Background())
	}
	runCtx := c.ctx
	c.runMu.Unlock()
	c.closed.Store(false)

	var errs []error
	for _, ch := range []Channel{ChannelAPI, ChannelEvent} {
		if err := c.open(ctx, runCtx, ch, 0); err != nil {
			errs = append(errs, err)
			if c.opts.Reconnection.Enabled {
				go c.reconnect(runCtx, ch)
			}
		}
	}
	return errors.Join(errs...)
}

// Reconnect closes both sockets and dials them again.
func (c *Client) Reconnect(ctx context.Context) error {
	c.shutdownSessions()
	return c.Connect(ctx)
}

// Close shuts both sockets down and fails every pending call with ErrClosed.
func (c *Client) Close() {
	c.closed.Store(true)

	c.runMu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.runMu.Unlock()

	c.shutdownSessions()
	c.failPending(ErrClosed)
}

func (c *Client) shutdownSessions() {
	if s := c.apiSession.Swap(nil); s != nil {
		s.shutdown()
	}
	if s := c.eventSession.Swap(nil); s != nil {
		s.shutdown()
	}
}

func (c *Client) slot(ch Channel) *atomic.Pointer[session] {
	if ch == ChannelAPI {
		return &c.apiSession
	}
	return &c.eventSession
}

func (c *Client) emitSocket(ctx context.Context, kind string, evt *SocketEvent) {
	c.bus.HandleSegments(ctx, []string{"socket", kind, string(evt.Channel)}, evt)
}

func (c *Client) open(dialCtx, runCtx context.Context, ch Channel, attempt int) error {
	target, err := c.opts.channelURL(ch)
	if err != nil {
		return err
	}

	c.emitSocket(runCtx, "connecting", &SocketEvent{Channel: ch, URL: target, Attempt: attempt})

	header := http.Header{}
	header.Set("User-Agent", UserAgent())
	if c.opts.AccessToken != "" {
		header.Set("Authorization", "Bearer "+c.opts.AccessToken)
	}

	conn, _, err := c.dialer.DialContext(dialCtx, target, header)
	if err != nil {
		c.emitSocket(runCtx, "error", &SocketEvent{Channel: ch, URL: target, Err: err, Attempt: attempt})
		return fmt.Errorf("cqsocket: dial %s: %w", ch, err)
	}

	s := &session{ch: ch, url: target, conn: conn}
	if old := c.slot(ch).Swap(s); old != nil {
		old.shutdown()
	}
	c.log().Infof("%s socket connected: %s", ch, redact(target))
	c.emitSocket(runCtx, "open", &SocketEvent{Channel: ch, URL: target, Attempt: attempt})

	go c.serve(runCtx, s)
	return nil
}

func (c *Client) serve(ctx context.Context, s *session) {
	err := c.readLoop(ctx, s)

	c.slot(s.ch).CompareAndSwap(s, nil)
	s.drop()
	if s.ch == ChannelAPI {
		c.failPending(fmt.Errorf("cqsocket: api socket closed: %w", err))
	}

	code, reason := closeInfo(err)
	evt := &SocketEvent{Channel: s.ch, URL: s.url, Code: code, Reason: reason, Err: err}
	if s.manual.Load() || c.closed.Load() {
		evt.Err = nil
		c.emitSocket(ctx, "close", evt)
		return
	}

	if code == websocket.CloseAbnormalClosure {
		c.log().Warnf("%s socket closed abnormally: %v", s.ch, err)
		c.emitSocket(ctx, "error", evt)
	}
	c.emitSocket(ctx, "close", evt)

	if code == websocket.CloseAbnormalClosure && c.opts.Reconnection.Enabled {
		c.reconnect(ctx, s.ch)
	}
}

func (c *Client) reconnect(ctx context.Context, ch Channel) {
	rc := c.opts.Reconnection
	for attempt := 1; attempt <= rc.Attempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(rc.Delay):
		}
		if c.closed.Load() {
			return
		}

		err := c.open(ctx, ctx, ch, attempt)
		if err == nil {
			return
		}
		c.log().Warnf("%s socket reconnect %d/%d failed: %v", ch, attempt, rc.Attempts, err)
	}
	c.log().Errorf("%s socket: giving up after %d reconnect attempts", ch, rc.Attempts)
}

func (c *Client) readLoop(ctx context.Context, s *session) error {
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		if c.opts.Debug {
			c.log().Debugf("%s frame: %s", s.ch, payload)
		}

		if s.ch == ChannelAPI {
			c.resolveResponse(payload)
			continue
		}
		c.route(ctx, payload)
	}
}

func closeInfo(err error) (int, string) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text
	}
	if err == nil {
		return websocket.CloseNormalClosure, ""
	}
	return websocket.CloseAbnormalClosure, err.Error()
}

func redact(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Query().Get("access_token") == "" {
		return target
	}
	q := u.Query()
	q.Set("access_token", "***")
	u.RawQuery = q.Encode()
	return u.String()
}
