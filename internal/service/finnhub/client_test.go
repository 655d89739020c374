package finnhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	drepo "PriceLens/internal/domain/repository"
)

func TestDecode(t *testing.T) {
	now := time.Now()
	ticks, err := decode([]byte(`{"type":"trade","data":[{"s":"AAPL","p":189.5,"v":10,"t":1712000000000},{"s":"","p":1,"t":1}]}`), now)
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, "AAPL", ticks[0].Symbol)
	assert.Equal(t, int64(1712000000000), ticks[0].Timestamp)
	assert.Equal(t, source, ticks[0].Source)
	assert.NotEmpty(t, ticks[0].EventID)

	ticks, err = decode([]byte(`{"type":"ping"}`), now)
	require.NoError(t, err)
	assert.Empty(t, ticks)

	_, err = decode([]byte(`not json`), now)
	assert.Error(t, err)
}

func TestStreamSubscribesAndReads(t *testing.T) {
	subscribed := make(chan string, 4)
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var msg map[string]string
		if conn.ReadJSON(&msg) != nil {
			return
		}
		subscribed <- msg["symbol"]
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"trade","data":[{"s":"MSFT","p":410.2,"v":3,"t":1712000000000}]}`))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := New("secret", wsURL, []string{"MSFT"}, time.Millisecond, 0, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Subscribe(ctx))
	assert.True(t, c.IsConnected())
	assert.Equal(t, "MSFT", <-subscribed)

	ticks, _ := c.Read(ctx)
	tick := <-ticks
	require.NotNil(t, tick)
	assert.Equal(t, 410.2, tick.Price)
	assert.EqualValues(t, 1, tick.Seq)

	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())

	bad := New("wrong", wsURL, nil, time.Millisecond, 0, nil)
	assert.Error(t, bad.Connect(ctx))
}

func TestCandleClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stock/candle", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-Finnhub-Token"))
		switch r.URL.Query().Get("symbol") {
		case "AAPL":
			assert.Equal(t, "60", r.URL.Query().Get("resolution"))
			_, _ = w.Write([]byte(`{"s":"ok","c":[1.5,1.6],"t":[1712000000,1712003600]}`))
		case "NONE":
			_, _ = w.Write([]byte(`{"s":"no_data"}`))
		default:
			_, _ = w.Write([]byte(`{"s":"ok","c":[1],"t":[]}`))
		}
	}))
	defer srv.Close()

	c := NewCandleClient(srv.URL+"/", "key", nil)
	from := time.Unix(1711990000, 0)
	to := time.Unix(1712010000, 0)

	pts, err := c.GetSeries(context.Background(), "AAPL", from, to, 4*time.Hour)
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.Equal(t, time.Unix(1712003600, 0).UTC(), pts[1].Time)
	assert.Equal(t, 1.6, pts[1].Price)

	_, err = c.GetSeries(context.Background(), "NONE", from, to, time.Hour)
	assert.ErrorIs(t, err, drepo.ErrNoSeries)

	_, err = c.GetSeries(context.Background(), "BAD", from, to, time.Hour)
	assert.Error(t, err)
}

func TestResolution(t *testing.T) {
	assert.Equal(t, "5", Resolution(5*time.Minute))
	assert.Equal(t, "60", Resolution(4*time.Hour))
	assert.Equal(t, "D", Resolution(24*time.Hour))
	assert.Equal(t, "1", Resolution(time.Second))
}
