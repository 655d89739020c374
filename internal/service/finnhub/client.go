package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"PriceLens/internal/domain/models"
	drepo "PriceLens/internal/domain/repository"
	"PriceLens/pkg/logger"
)

const source = "finnhub"

// Client implements a MarketStream backed by the Finnhub WebSocket.
type Client struct {
	apiKey         string
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *logger.Logger
	dialer         *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool
	dropped   atomic.Int64
}

var _ drepo.MarketStream = (*Client)(nil)

// New creates a new Finnhub MarketStream.
func New(apiKey, websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log.With(logger.String("component", "finnhub_ws")),
		dialer:         websocket.DefaultDialer,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.websocketURL)
	if err != nil {
		return fmt.Errorf("finnhub url: %w", err)
	}
	q := u.Query()
	q.Set("token", c.apiKey)
	u.RawQuery = q.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("finnhub connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)
	c.log.Info("connected", logger.String("url", c.websocketURL))
	return nil
}

// Subscribe subscribes to configured symbols.
func (c *Client) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected.Load() {
		return errors.New("finnhub not connected")
	}
	for _, s := range c.symbols {
		if err := c.conn.WriteJSON(map[string]string{"type": "subscribe", "symbol": s}); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
	}
	c.log.Info("subscribed", logger.Strings("symbols", c.symbols))
	return nil
}

type wsTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type wsMessage struct {
	Type string    `json:"type"`
	Data []wsTrade `json:"data"`
}

// decode turns one frame into ticks. Non-trade frames yield nothing.
func decode(b []byte, received time.Time) ([]*models.Tick, error) {
	var m wsMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if m.Type != "trade" {
		return nil, nil
	}
	out := make([]*models.Tick, 0, len(m.Data))
	for _, d := range m.Data {
		if d.S == "" || d.T <= 0 {
			continue
		}
		out = append(out, &models.Tick{
			Symbol:    d.S,
			Timestamp: d.T,
			Price:     d.P,
			Volume:    d.V,
			Source:    source,
			EventID:   fmt.Sprintf("%s-%d-%g", d.S, d.T, d.P),
			Received:  received,
		})
	}
	return out, nil
}

// Read streams ticks until ctx ends or the connection fails. Ticks are
// dropped when the consumer falls behind.
func (c *Client) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	ticks := make(chan *models.Tick, 1024)
	errs := make(chan error, 1)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		errs <- errors.New("finnhub conn nil")
		close(ticks)
		close(errs)
		return ticks, errs
	}

	go c.pingLoop(ctx, conn)

	go func() {
		defer close(ticks)
		defer close(errs)
		var seq uint64
		for {
			if ctx.Err() != nil {
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("finnhub read: %w", err)
				}
				return
			}
			batch, err := decode(b, time.Now())
			if err != nil {
				c.log.Debug("skip frame", logger.Error(err))
				continue
			}
			for _, t := range batch {
				seq++
				t.Seq = seq
				select {
				case ticks <- t:
				case <-ctx.Done():
					return
				default:
					if n := c.dropped.Add(1); n%1000 == 1 {
						c.log.Warn("tick channel full, dropping", logger.Int64("dropped", n))
					}
				}
			}
		}
	}()

	return ticks, errs
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	if c.pingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Reconnect closes, waits reconnectDelay and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected.Store(false)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected.Load() }

// Dropped is the number of ticks discarded under backpressure.
func (c *Client) Dropped() int64 { return c.dropped.Load() }
