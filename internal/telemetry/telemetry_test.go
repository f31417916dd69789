package telemetry

import (
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LineBot/internal/barcode"
	"LineBot/internal/model"
	"LineBot/internal/parser"
)

type recorder struct {
	mu        sync.Mutex
	got       []model.Telemetry
	connected bool
}

func (r *recorder) Publish(t model.Telemetry) {
	r.mu.Lock()
	r.got = append(r.got, t)
	r.mu.Unlock()
}

func (r *recorder) IsConnected() bool { return r.connected }

func TestMultiSkipsDisconnected(t *testing.T) {
	up := &recorder{connected: true}
	down := &recorder{}
	m := Multi{up, down}

	m.Publish(model.Telemetry{State: "LINE"})
	assert.Len(t, up.got, 1)
	assert.Empty(t, down.got)
	assert.True(t, m.IsConnected())
	assert.False(t, Multi{down, Discard{}}.IsConnected())
}

func TestQueueDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	var seen []int
	q := startQueue(1, func(v int) {
		<-block
		seen = append(seen, v)
	})
	q.offer(1) // taken by the worker, which then blocks
	require.Eventually(t, func() bool { return len(q.ch) == 0 }, time.Second, time.Millisecond)
	assert.True(t, q.offer(2))
	assert.False(t, q.offer(3))
	close(block)
	q.close()
	assert.Equal(t, []int{1, 2}, seen)
	assert.EqualValues(t, 1, q.dropped.Load())
	assert.False(t, q.offer(4))
}

type fakeLine struct {
	mu     sync.Mutex
	lines  []string
	closed bool
}

func (f *fakeLine) ReadLine(time.Duration) (string, error) { return "", io.EOF }
func (f *fakeLine) WriteLine(s string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, s)
	return nil
}
func (f *fakeLine) Close() error { f.closed = true; return nil }

func TestLoRaWritesCSV(t *testing.T) {
	line := &fakeLine{}
	l := NewLoRa(line, parser.NewCSVParser(), nil, zerolog.Nop())
	l.Publish(model.Telemetry{Speed: 1, Distance: 2, IMU: model.IMUReading{Yaw: 3}, Range: 4, State: "LINE"})
	require.NoError(t, l.Close())

	assert.Equal(t, []string{"1.00,2.00,3.0,4.0,LINE"}, line.lines)
	assert.True(t, line.closed)
	assert.False(t, l.IsConnected())
	assert.EqualValues(t, 1, l.Sent())
}

func testLoRaWAN() model.LoRaWANConfig {
	return model.LoRaWANConfig{
		Enabled: true,
		DevAddr: "26011bda",
		NwkSKey: "2b7e151628aed2a6abf7158809cf4f3c",
		AppSKey: "000102030405060708090a0b0c0d0e0f",
		FPort:   10,
	}
}

func TestFramerRoundTrip(t *testing.T) {
	f, err := NewFramer(testLoRaWAN())
	require.NoError(t, err)

	b, err := f.Uplink([]byte("12.00,3.00,140.0,-1.0,LINE"))
	require.NoError(t, err)
	assert.NotContains(t, string(b), "LINE")
	assert.EqualValues(t, 1, f.FCnt())

	payload, fCnt, err := f.OpenUplink(b)
	require.NoError(t, err)
	assert.Equal(t, "12.00,3.00,140.0,-1.0,LINE", string(payload))
	assert.EqualValues(t, 0, fCnt)

	b[len(b)-1] ^= 0xff
	_, _, err = f.OpenUplink(b)
	assert.Error(t, err)
}

func TestFramerRejectsBadKeys(t *testing.T) {
	cfg := testLoRaWAN()
	cfg.AppSKey = "zz"
	_, err := NewFramer(cfg)
	assert.Error(t, err)
}

func TestLoRaFramedLines(t *testing.T) {
	f, err := NewFramer(testLoRaWAN())
	require.NoError(t, err)
	line := &fakeLine{}
	l := NewLoRa(line, parser.NewJSONParser(), f, zerolog.Nop())
	l.Publish(model.Telemetry{State: "SCAN"})
	l.Publish(model.Telemetry{State: "WAIT"})
	require.NoError(t, l.Close())
	require.Len(t, line.lines, 2)

	for i, want := range []string{"SCAN", "WAIT"} {
		b, err := hex.DecodeString(line.lines[i])
		require.NoError(t, err)
		payload, fCnt, err := f.OpenUplink(b)
		require.NoError(t, err)
		assert.EqualValues(t, i, fCnt)
		assert.Contains(t, string(payload), want)
	}
}

func TestJournalLatest(t *testing.T) {
	j, err := OpenJournal(filepath.Join(t.TempDir(), "db", "telemetry.db"), zerolog.Nop())
	require.NoError(t, err)
	defer j.Close()

	_, _, err = j.Latest()
	assert.ErrorIs(t, err, ErrEmpty)

	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return fixed }
	require.NoError(t, j.Append(model.Telemetry{State: "LINE"}))
	require.NoError(t, j.Append(model.Telemetry{State: "AVOID"}))

	got, key, err := j.Latest()
	require.NoError(t, err)
	assert.Equal(t, "AVOID", got.State)
	assert.Equal(t, "2025-01-01T00:00:00.000000001Z", key)
	assert.Equal(t, 2, j.Count())
}

func TestJournalPublishFlushesOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.db")
	j, err := OpenJournal(path, zerolog.Nop())
	require.NoError(t, err)
	j.Publish(model.Telemetry{State: "TURN"})
	require.NoError(t, j.Close())

	j, err = OpenJournal(path, zerolog.Nop())
	require.NoError(t, err)
	defer j.Close()
	got, _, err := j.Latest()
	require.NoError(t, err)
	assert.Equal(t, "TURN", got.State)
}

func TestHubBroadcast(t *testing.T) {
	h := NewHub("", zerolog.Nop())
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()
	defer h.Stop()

	resp, err := http.Get(srv.URL + "/api/latest")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 5*time.Millisecond)

	h.Publish(model.Telemetry{State: "WAIT", Range: 12})
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"speed":0,"distance":0,"imu":{"yaw":0},"ultra_cm":12,"state":"WAIT"}`, string(msg))

	resp, err = http.Get(srv.URL + "/api/latest")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"state":"WAIT"`)
}

func TestHubPublishIgnoresStalledViewer(t *testing.T) {
	h := NewHub("", zerolog.Nop())
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()
	defer h.Stop()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	stalled, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer stalled.Close()
	viewer, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer viewer.Close()
	require.Eventually(t, func() bool { return h.Clients() == 2 }, time.Second, 5*time.Millisecond)

	var received atomic.Int64
	go func() {
		for {
			if _, _, err := viewer.ReadMessage(); err != nil {
				return
			}
			received.Add(1)
		}
	}()

	big := strings.Repeat("x", 64<<10)
	var worst time.Duration
	for i := 0; i < 300; i++ {
		start := time.Now()
		h.Publish(model.Telemetry{State: big, Speed: float64(i)})
		worst = max(worst, time.Since(start))
		time.Sleep(2 * time.Millisecond)
	}
	assert.Less(t, worst, 50*time.Millisecond)

	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, 299.0, latest.Speed)
	assert.Eventually(t, func() bool { return received.Load() > 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubCommand(t *testing.T) {
	h := NewHub("", zerolog.Nop())
	defer h.Stop()
	var got barcode.Command
	h.OnCommand = func(cmd barcode.Command, _ string) { got = cmd }

	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader("left\n")))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, barcode.CmdLeft, got)

	rec = httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader("jump")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/command", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestMQTTCommandAndTopics(t *testing.T) {
	cfg := model.DefaultConfig().Telemetry.MQTT
	cfg.BaseTopic = "robot/alpha/"
	m := NewMQTT(cfg, zerolog.Nop())
	assert.Equal(t, Topics{Telemetry: "robot/alpha/telemetry", Command: "robot/alpha/cmd", Diag: "robot/alpha/diag"}, m.Topics())

	var cmds []barcode.Command
	m.OnCommand = func(cmd barcode.Command, _ string) { cmds = append(cmds, cmd) }
	m.handleCommand(nil, fakeMessage{topic: "robot/alpha/cmd", payload: []byte(" RIGHT ")})
	m.handleCommand(nil, fakeMessage{topic: "robot/alpha/cmd", payload: []byte("stop")})
	assert.Equal(t, []barcode.Command{barcode.CmdRight, barcode.CmdStop}, cmds)

	assert.False(t, m.IsConnected())
	m.Publish(model.Telemetry{State: "LINE"}) // dropped while offline
	m.Close()
}

// stalledClient is an open connection whose publishes hang until released.
type stalledClient struct {
	mqtt.Client
	release   chan struct{}
	published atomic.Int64
}

func (c *stalledClient) IsConnected() bool      { return false }
func (c *stalledClient) IsConnectionOpen() bool { return true }

func (c *stalledClient) Publish(string, byte, bool, interface{}) mqtt.Token {
	<-c.release
	c.published.Add(1)
	return nil
}

func TestMQTTPublishDoesNotWaitOnBroker(t *testing.T) {
	m := NewMQTT(model.DefaultConfig().Telemetry.MQTT, zerolog.Nop())
	c := &stalledClient{release: make(chan struct{})}
	m.client = c

	start := time.Now()
	for i := 0; i < 100; i++ {
		m.Publish(model.Telemetry{State: "LINE", Speed: float64(i)})
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Positive(t, m.q.dropped.Load())

	close(c.release)
	require.Eventually(t, func() bool { return c.published.Load() >= 1 }, time.Second, 5*time.Millisecond)
	m.Close()
}
