// Package wstransport implements livefeed.Transport over the hosted
// platform's phoenix-style realtime websocket protocol. Each channel
// dials its own connection, joins its topic, forwards postgres_changes
// frames as raw payloads and reports channel health through the status
// callback.
package wstransport

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"

	"github.com/planline/livefeed"
)

const (
	defaultJoinTimeout = 10 * time.Second
	defaultHeartbeat   = 30 * time.Second

	eventJoin      = "phx_join"
	eventLeave     = "phx_leave"
	eventReply     = "phx_reply"
	eventError     = "phx_error"
	eventHeartbeat = "heartbeat"
	eventChanges   = "postgres_changes"
)

var errJoinRejected = errors.New("realtime channel join rejected", j.C("ERR_5f3a9c41d02b77e8"))

var _ livefeed.Transport = (*Transport)(nil)

// Transport dials the realtime endpoint and speaks its channel protocol.
type Transport struct {
	url         string
	apiKey      string
	joinTimeout time.Duration
	heartbeat   time.Duration
}

// Option defines a functional option that configures a Transport.
type Option func(*Transport)

// WithAPIKey provides an option to authenticate the websocket handshake.
func WithAPIKey(key string) Option {
	return func(t *Transport) {
		t.apiKey = key
	}
}

// WithJoinTimeout provides an option to bound the channel join handshake.
func WithJoinTimeout(d time.Duration) Option {
	return func(t *Transport) {
		t.joinTimeout = d
	}
}

// WithHeartbeat provides an option to override the heartbeat interval.
func WithHeartbeat(d time.Duration) Option {
	return func(t *Transport) {
		t.heartbeat = d
	}
}

// New returns a Transport for the given realtime endpoint URL.
func New(url string, opts ...Option) *Transport {
	t := &Transport{
		url:         url,
		joinTimeout: defaultJoinTimeout,
		heartbeat:   defaultHeartbeat,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OpenChannel creates a channel for the topic. Nothing is dialled until
// Subscribe is called; the handshake outcome arrives asynchronously on the
// status callback.
func (t *Transport) OpenChannel(topic string) livefeed.Channel {
	return &channel{
		t:      t,
		topic:  topic,
		closed: make(chan struct{}),
	}
}

// RemoveChannel releases the channel: a best-effort leave frame followed
// by closing the connection. The leave acknowledgement is not awaited.
func (t *Transport) RemoveChannel(ch livefeed.Channel) {
	if c, ok := ch.(*channel); ok {
		c.close()
	}
}

type channel struct {
	t     *Transport
	topic string

	mu       sync.Mutex
	onChange func(livefeed.Payload)
	onStatus func(livefeed.ChannelStatus)
	conn     *websocket.Conn

	ref       atomic.Int64
	closed    chan struct{}
	closeOnce sync.Once
}

func (c *channel) OnChange(fn func(livefeed.Payload)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Subscribe registers the status callback and starts the dial/join
// handshake on its own goroutine.
func (c *channel) Subscribe(fn func(livefeed.ChannelStatus)) {
	c.mu.Lock()
	c.onStatus = fn
	c.mu.Unlock()

	go c.run()
}

func (c *channel) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = writeJSON(ctx, conn, message{
				Topic: c.topic,
				Event: eventLeave,
				Ref:   c.nextRef(),
			})
		}
		close(c.closed)
	})
}

func (c *channel) run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.closed
		cancel()
	}()

	conn, err := c.dial(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Error(ctx, errors.Wrap(err, "realtime dial failed"))
			c.emitStatus(livefeed.StatusChannelError)
		}
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := writeJSON(ctx, conn, c.joinMessage()); err != nil {
		if ctx.Err() == nil {
			log.Error(ctx, errors.Wrap(err, "realtime join write failed"))
			c.emitStatus(livefeed.StatusChannelError)
		}
		return
	}

	if err := c.awaitJoin(ctx, conn); err != nil {
		if ctx.Err() != nil {
			return // closed locally
		}
		if errors.Is(err, context.DeadlineExceeded) {
			c.emitStatus(livefeed.StatusTimedOut)
		} else {
			log.Error(ctx, errors.Wrap(err, "realtime join failed"))
			c.emitStatus(livefeed.StatusChannelError)
		}
		return
	}
	c.emitStatus(livefeed.StatusSubscribed)

	go c.heartbeatLoop(ctx, conn)

	for {
		m, ok, err := readMessage(ctx, conn)
		if err != nil {
			if ctx.Err() == nil {
				c.emitStatus(livefeed.StatusClosed)
			}
			return
		}
		if !ok {
			continue // undecodable frame, traffic noise
		}
		c.handleMessage(m)
	}
}

func (c *channel) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.t.joinTimeout)
	defer cancel()

	url := c.t.url
	if c.t.apiKey != "" {
		url += "?apikey=" + c.t.apiKey
	}
	conn, _, err := websocket.Dial(dialCtx, url, &websocket.DialOptions{})
	return conn, err
}

// awaitJoin reads frames until the join reply arrives or the join timeout
// expires. Change frames that race ahead of the reply are forwarded.
func (c *channel) awaitJoin(ctx context.Context, conn *websocket.Conn) error {
	joinCtx, cancel := context.WithTimeout(ctx, c.t.joinTimeout)
	defer cancel()

	for {
		m, ok, err := readMessage(joinCtx, conn)
		if err != nil {
			if ctx.Err() == nil && joinCtx.Err() != nil {
				return context.DeadlineExceeded
			}
			return err
		}
		if !ok {
			continue
		}
		switch m.Event {
		case eventReply:
			if !replyOK(m.Payload) {
				return errJoinRejected
			}
			return nil
		default:
			c.handleMessage(m)
		}
	}
}

func (c *channel) handleMessage(m message) {
	switch m.Event {
	case eventChanges:
		p, ok := decodeChange(m.Payload)
		if !ok {
			return
		}
		c.emitChange(p)
	case eventError:
		c.emitStatus(livefeed.StatusChannelError)
	}
}

func (c *channel) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.t.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := message{Topic: "phoenix", Event: eventHeartbeat, Ref: c.nextRef()}
			if err := writeJSON(ctx, conn, m); err != nil {
				return
			}
		}
	}
}

func (c *channel) emitChange(p livefeed.Payload) {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(p)
	}
}

func (c *channel) emitStatus(s livefeed.ChannelStatus) {
	c.mu.Lock()
	fn := c.onStatus
	c.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}

func (c *channel) nextRef() string {
	return strconv.FormatInt(c.ref.Add(1), 10)
}

func (c *channel) joinMessage() message {
	payload, _ := json.Marshal(joinPayload{
		Config: joinConfig{
			PostgresChanges: []changeFilter{{Event: "*", Schema: "public"}},
		},
	})
	return message{
		Topic:   c.topic,
		Event:   eventJoin,
		Payload: payload,
		Ref:     c.nextRef(),
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, m message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// readMessage reads one frame. The middle return is false for frames that
// are not decodable as protocol messages; those are skipped by callers.
func readMessage(ctx context.Context, conn *websocket.Conn) (message, bool, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return message{}, false, err
	}
	var m message
	if err := json.Unmarshal(data, &m); err != nil {
		return message{}, false, nil
	}
	return m, true, nil
}
