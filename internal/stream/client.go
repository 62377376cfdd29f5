package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wonny/riskdash/internal/contracts"
	"github.com/wonny/riskdash/internal/normalize"
	"github.com/wonny/riskdash/internal/store"
	"github.com/wonny/riskdash/pkg/logger"
	"github.com/wonny/riskdash/pkg/metrics"
)

// Defaults
const (
	DefaultReconnectDelay = 5 * time.Second
	DefaultPingInterval   = 30 * time.Second
	HandshakeTimeout      = 10 * time.Second
	writeWait             = 10 * time.Second
)

// Message dispositions (metrics label)
const (
	dispositionAccepted = "accepted"
	dispositionDropped  = "dropped"
	dispositionUpstream = "upstream_error"
)

// Config holds the stream settings
type Config struct {
	URL            string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
}

// Status is a point-in-time view of the connection
type Status struct {
	State       contracts.ConnectionState `json:"state"`
	URL         string                    `json:"url"`
	ConnID      string                    `json:"conn_id,omitempty"`
	ConnectedAt *time.Time                `json:"connected_at,omitempty"`
	Reconnects  int                       `json:"reconnects"`
	Accepted    int                       `json:"accepted"`
	Dropped     int                       `json:"dropped"`
}

// Client keeps a push-stream connection alive and feeds accepted
// snapshots into the store.
// State machine: Connecting → Open → Closed → Reconnecting → Connecting
type Client struct {
	cfg     Config
	store   *store.Store
	metrics *metrics.Recorder
	logger  *logger.Logger
	dialer  websocket.Dialer

	mu          sync.Mutex
	state       contracts.ConnectionState
	conn        *websocket.Conn
	connID      string
	connectedAt time.Time
	timer       *time.Timer // pending reconnect, owned by the client
	timerSeq    uint64
	started     bool
	closed      bool
	cancel      context.CancelFunc
	ctx         context.Context
	reconnects  int
	accepted    int
	dropped     int

	obsMu      sync.Mutex
	onSnapshot []func(*contracts.CurrentSnapshot)
	onState    []func(contracts.ConnectionState)

	wg sync.WaitGroup
}

// NewClient creates a stream client. rec may be nil.
func NewClient(cfg Config, st *store.Store, log *logger.Logger, rec *metrics.Recorder) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	return &Client{
		cfg:     cfg,
		store:   st,
		metrics: rec,
		logger:  log.WithComponent("stream"),
		dialer: websocket.Dialer{
			HandshakeTimeout: HandshakeTimeout,
		},
		state: contracts.StateClosed,
	}
}

// OnSnapshot registers a callback for accepted snapshots
func (c *Client) OnSnapshot(fn func(*contracts.CurrentSnapshot)) {
	c.obsMu.Lock()
	c.onSnapshot = append(c.onSnapshot, fn)
	c.obsMu.Unlock()
}

// OnStateChange registers a callback for state transitions
func (c *Client) OnStateChange(fn func(contracts.ConnectionState)) {
	c.obsMu.Lock()
	c.onState = append(c.onState, fn)
	c.obsMu.Unlock()
}

// Start begins connecting in the background. Calling it twice is a no-op.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	c.mu.Unlock()

	go c.connect()
}

// Close tears the connection down. No reconnect happens afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	conn := c.conn
	c.conn = nil
	c.connID = ""
	c.state = contracts.StateClosed
	c.mu.Unlock()

	var err error
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = conn.Close()
	}

	c.wg.Wait()
	c.announce(contracts.StateClosed)
	c.logger.Info("Risk stream closed")
	return err
}

// State returns the current connection state
func (c *Client) State() contracts.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns connection details for the status endpoint
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		State:      c.state,
		URL:        c.cfg.URL,
		ConnID:     c.connID,
		Reconnects: c.reconnects,
		Accepted:   c.accepted,
		Dropped:    c.dropped,
	}
	if c.state == contracts.StateOpen {
		at := c.connectedAt
		s.ConnectedAt = &at
	}
	return s
}

// connect dials once. Failure goes through the normal close path.
// The caller has already done wg.Add(1).
func (c *Client) connect() {
	defer c.wg.Done()

	if !c.transition(contracts.StateConnecting) {
		return
	}

	conn, _, err := c.dialer.DialContext(c.ctx, c.cfg.URL, nil)
	if err != nil {
		c.logger.WithError(err).WithField("url", c.cfg.URL).Warn("Risk stream dial failed")
		c.handleClose(nil, err)
		return
	}

	// pong 또는 메시지가 pongWait 안에 없으면 read가 실패하고 재연결
	wait := c.pongWait()
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})

	id := uuid.NewString()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.connID = id
	c.connectedAt = time.Now()
	c.state = contracts.StateOpen
	c.wg.Add(2)
	c.mu.Unlock()

	c.store.ClearError()
	c.announce(contracts.StateOpen)
	c.logger.WithFields(map[string]interface{}{
		"url":     c.cfg.URL,
		"conn_id": id,
	}).Info("Risk stream connected")

	stop := make(chan struct{})
	go c.readLoop(conn, stop)
	go c.pingLoop(conn, stop)
}

// readLoop handles incoming messages until the connection drops
func (c *Client) readLoop(conn *websocket.Conn, stop chan struct{}) {
	defer c.wg.Done()
	defer close(stop)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(c.pongWait()))
		c.handleMessage(data)
	}
}

// pingLoop sends keepalive pings
func (c *Client) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.WithError(err).Warn("Risk stream ping failed")
				c.handleClose(conn, err)
				return
			}
		}
	}
}

// pongWait is how long a silent peer is tolerated: two ping intervals
func (c *Client) pongWait() time.Duration {
	return 2 * c.cfg.PingInterval
}

// handleMessage decodes one frame and applies it
func (c *Client) handleMessage(data []byte) {
	snap, err := normalize.Snapshot(data)
	if err != nil {
		var sde *contracts.StreamDecodeError
		if errors.As(err, &sde) && sde.IsUpstream() {
			// 업스트림 에러 메시지: 다음 정상 스냅샷에서 해제
			c.store.SetError(err)
			c.metrics.RecordStreamMessage(dispositionUpstream)
			c.logger.WithError(err).Warn("Risk stream reported an error")
			return
		}

		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
		c.metrics.RecordStreamMessage(dispositionDropped)
		c.logger.WithError(err).Debug("Dropped risk stream message")
		return
	}

	c.store.ReplaceSnapshot(snap)

	c.mu.Lock()
	c.accepted++
	c.mu.Unlock()

	c.metrics.RecordStreamMessage(dispositionAccepted)
	if snap.SystemicRisk != nil {
		c.metrics.SetSystemicRisk(*snap.SystemicRisk)
	}
	if snap.RegimeDetails != nil {
		c.metrics.SetRegimeScore(snap.RegimeDetails.RegimeScore)
	}

	c.obsMu.Lock()
	fns := append([]func(*contracts.CurrentSnapshot){}, c.onSnapshot...)
	c.obsMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// handleClose moves Closed → Reconnecting and schedules the next dial.
// conn is the connection that failed (nil for a dial failure); a stale
// conn is ignored.
func (c *Client) handleClose(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.closed || (conn != nil && c.conn != conn) {
		c.mu.Unlock()
		return
	}
	if conn != nil {
		conn.Close()
		c.conn = nil
	}
	c.connID = ""
	c.state = contracts.StateClosed
	c.mu.Unlock()

	if cause != nil && !websocket.IsCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.WithError(cause).Debug("Risk stream connection lost")
	}
	c.announce(contracts.StateClosed)

	c.scheduleReconnect()
}

// scheduleReconnect arms the fixed-delay reconnect timer
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.timerSeq++
	seq := c.timerSeq
	c.state = contracts.StateReconnecting
	c.reconnects++
	c.mu.Unlock()

	c.metrics.RecordReconnect()
	c.announce(contracts.StateReconnecting)
	c.logger.Infof("Risk stream reconnect in %s", c.cfg.ReconnectDelay)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.timerSeq != seq {
		return
	}
	c.timer = time.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.mu.Lock()
		if c.closed || c.timerSeq != seq {
			c.mu.Unlock()
			return
		}
		c.timer = nil
		c.wg.Add(1)
		c.mu.Unlock()

		c.connect()
	})
}

// transition sets state unless the client is closed
func (c *Client) transition(s contracts.ConnectionState) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.state = s
	c.mu.Unlock()

	c.announce(s)
	return true
}

func (c *Client) announce(s contracts.ConnectionState) {
	c.metrics.SetStreamState(s.String())

	c.obsMu.Lock()
	fns := append([]func(contracts.ConnectionState){}, c.onState...)
	c.obsMu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}
