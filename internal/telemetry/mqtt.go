package telemetry

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"LineBot/internal/barcode"
	"LineBot/internal/model"
	"LineBot/internal/parser"
)

// Topics derived from the base topic.
type Topics struct {
	Telemetry string
	Command   string
	Diag      string
}

// TopicsFor returns the topic set under base.
func TopicsFor(base string) Topics {
	base = strings.TrimRight(base, "/")
	return Topics{
		Telemetry: base + "/telemetry",
		Command:   base + "/cmd",
		Diag:      base + "/diag",
	}
}

// CommandHandler receives remote commands from the command topic.
type CommandHandler func(cmd barcode.Command, raw string)

// MQTT publishes telemetry to a broker.
type MQTT struct {
	cfg    model.MQTTConfig
	topics Topics
	client mqtt.Client
	enc    parser.Parser
	log    zerolog.Logger
	q      *queue[model.Telemetry]
	closed atomic.Bool

	// OnCommand, when set, receives messages from the command topic.
	OnCommand CommandHandler
}

// writeTimeout bounds how long a publish may wait on a stalled connection.
const writeTimeout = 2 * time.Second

func clientOptions(cfg model.MQTTConfig, clientID string) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetWriteTimeout(writeTimeout)
	return opts
}

// NewMQTT builds the client. Connect must be called before anything is sent.
func NewMQTT(cfg model.MQTTConfig, log zerolog.Logger) *MQTT {
	m := &MQTT{cfg: cfg, topics: TopicsFor(cfg.BaseTopic), enc: parser.NewJSONParser(), log: log}
	opts := clientOptions(cfg, cfg.ClientID)
	opts.OnConnect = m.onConnect
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		m.log.Warn().Err(err).Msg("mqtt connection lost")
	}
	opts.OnReconnecting = func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		m.log.Info().Msg("mqtt reconnecting")
	}
	m.client = mqtt.NewClient(opts)
	m.q = startQueue(16, m.send)
	return m
}

// Topics returns the topics in use.
func (m *MQTT) Topics() Topics { return m.topics }

// Connect starts the connection. With connect-retry enabled the client keeps
// trying in the background after a timeout, so a timeout is not fatal.
func (m *MQTT) Connect() error {
	token := m.client.Connect()
	if !token.WaitTimeout(m.cfg.ConnectTimeout) {
		m.log.Warn().Str("broker", m.cfg.Broker).Msg("mqtt connect pending, retrying in background")
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", m.cfg.Broker, err)
	}
	return nil
}

func (m *MQTT) onConnect(c mqtt.Client) {
	m.log.Info().Str("broker", m.cfg.Broker).Msg("mqtt connected")
	c.Subscribe(m.topics.Command, 0, m.handleCommand)
	b, _ := json.Marshal(model.Diag{Hello: "linebot-online"})
	c.Publish(m.topics.Diag, 0, true, b)
}

func (m *MQTT) handleCommand(_ mqtt.Client, msg mqtt.Message) {
	raw := strings.TrimSpace(string(msg.Payload()))
	cmd := barcode.ParseCommand(raw)
	m.log.Info().Str("topic", msg.Topic()).Str("raw", raw).Stringer("cmd", cmd).Msg("remote command")
	if m.OnCommand != nil {
		m.OnCommand(cmd, raw)
	}
}

// IsConnected implements Publisher.
func (m *MQTT) IsConnected() bool { return m.client.IsConnectionOpen() }

// Publish implements Publisher. Snapshots are handed to a worker, so a
// stalled connection costs dropped telemetry, never a blocked caller.
func (m *MQTT) Publish(t model.Telemetry) {
	if !m.IsConnected() {
		return
	}
	m.q.offer(t)
}

// send runs on the queue worker. The publish token is not awaited.
func (m *MQTT) send(t model.Telemetry) {
	if m.closed.Load() || !m.IsConnected() {
		return
	}
	s, err := m.enc.EncodeTelemetry(t)
	if err != nil {
		m.log.Error().Err(err).Msg("encode telemetry")
		return
	}
	m.client.Publish(m.topics.Telemetry, m.cfg.QoS, false, s)
}

// Close discards queued snapshots and disconnects, allowing in-flight
// messages 250ms.
func (m *MQTT) Close() {
	m.closed.Store(true)
	m.q.close()
	if m.client.IsConnected() {
		m.client.Disconnect(250)
	}
}

// Subscribe connects a separate monitoring client and calls fn for every
// telemetry message under base. The returned function disconnects it.
func Subscribe(cfg model.MQTTConfig, fn func(topic string, t model.Telemetry), log zerolog.Logger) (func(), error) {
	topics := TopicsFor(cfg.BaseTopic)
	dec := parser.NewJSONParser()
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		t, err := dec.DecodeTelemetry(string(msg.Payload()))
		if err != nil {
			log.Warn().Err(err).Str("topic", msg.Topic()).Msg("bad telemetry")
			return
		}
		fn(msg.Topic(), t)
	}
	opts := clientOptions(cfg, cfg.ClientID+"-monitor")
	opts.OnConnect = func(c mqtt.Client) {
		c.Subscribe(topics.Telemetry, cfg.QoS, handler)
		log.Info().Str("topic", topics.Telemetry).Msg("subscribed")
	}
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	return func() { client.Disconnect(250) }, nil
}
