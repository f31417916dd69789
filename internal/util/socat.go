package util

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// VirtualSerial is a socat-created pty pair, used to stand in for the LoRa
// modem when running without hardware. Each end is a symlink to a pty.
type VirtualSerial struct {
	Local, Peer string

	mu     sync.Mutex
	cmd    *exec.Cmd
	closed bool
	log    zerolog.Logger
}

// OpenVirtualSerial starts socat linking local and peer and waits up to two
// seconds for both links to appear.
func OpenVirtualSerial(local, peer string, log zerolog.Logger) (*VirtualSerial, error) {
	cmd := exec.Command("socat", "-d", "-d",
		fmt.Sprintf("pty,raw,echo=0,link=%s", local),
		fmt.Sprintf("pty,raw,echo=0,link=%s", peer),
	)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start socat: %w", err)
	}
	v := &VirtualSerial{Local: local, Peer: peer, cmd: cmd, log: log}
	log.Info().Int("pid", cmd.Process.Pid).Str("local", local).Str("peer", peer).Msg("virtual serial started")

	deadline := time.Now().Add(2 * time.Second)
	for !linked(local) || !linked(peer) {
		if time.Now().After(deadline) {
			_ = v.Close()
			return nil, errors.New("socat did not create the pty links")
		}
		time.Sleep(20 * time.Millisecond)
	}
	return v, nil
}

func linked(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Close kills socat and removes the links.
func (v *VirtualSerial) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	if v.cmd.Process != nil {
		_ = v.cmd.Process.Kill()
		_, _ = v.cmd.Process.Wait()
	}
	for _, p := range []string{v.Local, v.Peer} {
		if linked(p) {
			_ = os.Remove(p)
		}
	}
	v.log.Info().Msg("virtual serial closed")
	return nil
}
