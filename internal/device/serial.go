package device

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	serial "go.bug.st/serial"
)

var (
	// ErrTimeout is returned by ReadLine when no line arrived in time.
	ErrTimeout = errors.New("device: read timeout")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("device: serial port closed")
)

type lineResult struct {
	line string
	err  error
}

// SerialDevice is a Line on a serial port, typically a LoRa modem in
// transparent mode. A single reader goroutine feeds ReadLine so a timed out
// read does not leave a blocked reader behind.
type SerialDevice struct {
	port serial.Port
	dev  string

	mu     sync.Mutex
	lines  chan lineResult
	closed bool
}

// NewSerialDevice opens dev at baud.
func NewSerialDevice(dev string, baud int) (*SerialDevice, error) {
	p, err := serial.Open(dev, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", dev, err)
	}
	s := &SerialDevice{port: p, dev: dev, lines: make(chan lineResult, 16)}
	go s.readLoop()
	return s, nil
}

func (s *SerialDevice) readLoop() {
	r := bufio.NewReader(s.port)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			s.lines <- lineResult{err: err}
			close(s.lines)
			return
		}
		s.lines <- lineResult{line: strings.TrimRight(line, "\r\n")}
	}
}

// ReadLine returns the next line without its terminator. A zero timeout waits
// indefinitely.
func (s *SerialDevice) ReadLine(timeout time.Duration) (string, error) {
	var after <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		after = t.C
	}
	select {
	case res, ok := <-s.lines:
		if !ok {
			return "", ErrClosed
		}
		return res.line, res.err
	case <-after:
		return "", ErrTimeout
	}
}

// WriteLine writes line followed by '\n'.
func (s *SerialDevice) WriteLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	_, err := s.port.Write(append([]byte(line), '\n'))
	return err
}

// Close closes the port, which also ends the reader.
func (s *SerialDevice) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.port.Close()
}

func (s *SerialDevice) String() string { return s.dev }
