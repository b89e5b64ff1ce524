package engine

import (
	"context"
	"sync"
)

// Emitter serializes outbound frames onto a Conn from a single goroutine.
type Emitter struct {
	conn  FrameWriter
	queue chan string
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// NewEmitter creates an Emitter writing to conn with a queue of bufSize frames.
func NewEmitter(conn FrameWriter, bufSize int) *Emitter {
	return &Emitter{
		conn:  conn,
		queue: make(chan string, bufSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Submit queues frame for writing. It blocks while the queue is full.
func (e *Emitter) Submit(frame string) error {
	select {
	case <-e.quit:
		return ErrEmitterClosed
	case <-e.done:
		return ErrEmitterClosed
	default:
	}
	select {
	case <-e.quit:
		return ErrEmitterClosed
	case <-e.done:
		return ErrEmitterClosed
	case e.queue <- frame:
		return nil
	}
}

// TrySubmit queues frame unless the queue is full, in which case the frame
// is dropped and ErrQueueFull returned.
func (e *Emitter) TrySubmit(frame string) error {
	select {
	case <-e.quit:
		return ErrEmitterClosed
	case <-e.done:
		return ErrEmitterClosed
	default:
	}
	select {
	case e.queue <- frame:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run writes queued frames until ctx is done, a write fails, or Shutdown is called.
// On Shutdown the frames already queued are written before Run returns nil.
func (e *Emitter) Run(ctx context.Context) error {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame := <-e.queue:
			if err := e.conn.WriteMessage(frame); err != nil {
				return err
			}
		case <-e.quit:
			for {
				select {
				case frame := <-e.queue:
					if err := e.conn.WriteMessage(frame); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		}
	}
}

// Shutdown stops accepting frames and waits for Run to flush and return.
// It gives up when ctx is done; Run then keeps writing until the connection is closed.
func (e *Emitter) Shutdown(ctx context.Context) error {
	e.once.Do(func() { close(e.quit) })
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once Run has returned.
func (e *Emitter) Done() <-chan struct{} {
	return e.done
}
