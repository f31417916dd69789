package telemetry

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/brocaar/lorawan"
	"github.com/rs/zerolog"

	"LineBot/internal/device"
	"LineBot/internal/model"
	"LineBot/internal/parser"
)

// Framer wraps payloads in LoRaWAN 1.0 unconfirmed data uplinks.
type Framer struct {
	mu      sync.Mutex
	devAddr lorawan.DevAddr
	nwkSKey lorawan.AES128Key
	appSKey lorawan.AES128Key
	fPort   uint8
	fCnt    uint32
}

// NewFramer parses the hex encoded address and session keys.
func NewFramer(cfg model.LoRaWANConfig) (*Framer, error) {
	f := &Framer{fPort: cfg.FPort}
	if f.fPort == 0 {
		f.fPort = 10
	}
	if err := f.devAddr.UnmarshalText([]byte(cfg.DevAddr)); err != nil {
		return nil, fmt.Errorf("lorawan dev_addr: %w", err)
	}
	if err := f.nwkSKey.UnmarshalText([]byte(cfg.NwkSKey)); err != nil {
		return nil, fmt.Errorf("lorawan nwk_s_key: %w", err)
	}
	if err := f.appSKey.UnmarshalText([]byte(cfg.AppSKey)); err != nil {
		return nil, fmt.Errorf("lorawan app_s_key: %w", err)
	}
	return f, nil
}

// FCnt returns the next frame counter.
func (f *Framer) FCnt() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fCnt
}

// Uplink encrypts payload, signs the frame and returns the PHY bytes.
func (f *Framer) Uplink(payload []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	port := f.fPort
	phy := lorawan.PHYPayload{
		MHDR: lorawan.MHDR{
			MType: lorawan.UnconfirmedDataUp,
			Major: lorawan.LoRaWANR1,
		},
		MACPayload: &lorawan.MACPayload{
			FHDR: lorawan.FHDR{
				DevAddr: f.devAddr,
				FCnt:    f.fCnt,
			},
			FPort:      &port,
			FRMPayload: []lorawan.Payload{&lorawan.DataPayload{Bytes: payload}},
		},
	}
	if err := phy.EncryptFRMPayload(f.appSKey); err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	if err := phy.SetUplinkDataMIC(lorawan.LoRaWAN1_0, 0, 0, 0, f.nwkSKey, f.nwkSKey); err != nil {
		return nil, fmt.Errorf("mic: %w", err)
	}
	b, err := phy.MarshalBinary()
	if err != nil {
		return nil, err
	}
	f.fCnt++
	return b, nil
}

// OpenUplink verifies and decrypts a frame produced by Uplink.
func (f *Framer) OpenUplink(b []byte) (payload []byte, fCnt uint32, err error) {
	var phy lorawan.PHYPayload
	if err := phy.UnmarshalBinary(b); err != nil {
		return nil, 0, err
	}
	ok, err := phy.ValidateUplinkDataMIC(lorawan.LoRaWAN1_0, 0, 0, 0, f.nwkSKey, f.nwkSKey)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, errors.New("lorawan: invalid mic")
	}
	if err := phy.DecryptFRMPayload(f.appSKey); err != nil {
		return nil, 0, err
	}
	mac, ok := phy.MACPayload.(*lorawan.MACPayload)
	if !ok || len(mac.FRMPayload) == 0 {
		return nil, 0, errors.New("lorawan: no payload")
	}
	data, ok := mac.FRMPayload[0].(*lorawan.DataPayload)
	if !ok {
		return nil, 0, errors.New("lorawan: unexpected payload type")
	}
	return data.Bytes, mac.FHDR.FCnt, nil
}

// LoRa writes telemetry lines to a serial LoRa modem. With a Framer set each
// line is a hex encoded LoRaWAN uplink instead of the bare wire format.
type LoRa struct {
	line   device.Line
	enc    parser.Parser
	framer *Framer
	log    zerolog.Logger
	q      *queue[model.Telemetry]
	closed atomic.Bool
	sent   atomic.Int64
}

// NewLoRa starts the writer. framer may be nil.
func NewLoRa(line device.Line, enc parser.Parser, framer *Framer, log zerolog.Logger) *LoRa {
	l := &LoRa{line: line, enc: enc, framer: framer, log: log}
	l.q = startQueue(8, l.send)
	return l
}

// Encode renders one snapshot as the line that goes on the air.
func (l *LoRa) Encode(t model.Telemetry) (string, error) {
	s, err := l.enc.EncodeTelemetry(t)
	if err != nil {
		return "", err
	}
	if l.framer == nil {
		return s, nil
	}
	b, err := l.framer.Uplink([]byte(s))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (l *LoRa) send(t model.Telemetry) {
	s, err := l.Encode(t)
	if err != nil {
		l.log.Error().Err(err).Msg("lora encode")
		return
	}
	if err := l.line.WriteLine(s); err != nil {
		l.log.Warn().Err(err).Msg("lora write")
		return
	}
	l.sent.Add(1)
}

// Publish implements Publisher.
func (l *LoRa) Publish(t model.Telemetry) { l.q.offer(t) }

// IsConnected implements Publisher.
func (l *LoRa) IsConnected() bool { return !l.closed.Load() }

// Sent returns the number of lines written.
func (l *LoRa) Sent() int64 { return l.sent.Load() }

// Close flushes queued snapshots and closes the line.
func (l *LoRa) Close() error {
	if l.closed.Swap(true) {
		return nil
	}
	l.q.close()
	return l.line.Close()
}
