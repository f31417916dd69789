// Package telemetry publishes robot state snapshots over MQTT, a LoRa serial
// link, a websocket live view and a local bbolt journal. Every sink is fire and
// forget: Publish never blocks the caller and silently drops when a sink is
// disconnected or its queue is full.
package telemetry

import (
	"sync"
	"sync/atomic"

	"LineBot/internal/model"
)

// Publisher is a telemetry sink.
type Publisher interface {
	Publish(t model.Telemetry)
	IsConnected() bool
}

// Multi fans a snapshot out to every connected sink.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(t model.Telemetry) {
	for _, p := range m {
		if p.IsConnected() {
			p.Publish(t)
		}
	}
}

// IsConnected reports whether any sink is connected.
func (m Multi) IsConnected() bool {
	for _, p := range m {
		if p.IsConnected() {
			return true
		}
	}
	return false
}

// Discard drops everything.
type Discard struct{}

func (Discard) Publish(model.Telemetry) {}
func (Discard) IsConnected() bool       { return false }

// queue hands values to a single worker goroutine without blocking producers.
type queue[T any] struct {
	ch      chan T
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	dropped atomic.Int64
}

func startQueue[T any](size int, fn func(T)) *queue[T] {
	q := &queue[T]{ch: make(chan T, size), done: make(chan struct{})}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case v := <-q.ch:
				fn(v)
			case <-q.done:
				for {
					select {
					case v := <-q.ch:
						fn(v)
					default:
						return
					}
				}
			}
		}
	}()
	return q
}

// offer enqueues v, dropping it if the queue is full or closed.
func (q *queue[T]) offer(v T) bool {
	select {
	case <-q.done:
		return false
	default:
	}
	select {
	case q.ch <- v:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// close stops the worker after draining what is queued.
func (q *queue[T]) close() {
	q.once.Do(func() { close(q.done) })
	q.wg.Wait()
}
