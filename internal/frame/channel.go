package frame

import (
	"sync"
	"sync/atomic"
	"time"
)

// Frame is one encoded image as received from the transport. Data stays
// compressed until the detection stage actually takes the frame, so dropped
// frames never pay decode cost.
type Frame struct {
	Data       []byte
	Seq        uint64
	ReceivedAt time.Time
}

// Channel is a single-slot, latest-wins hand-off between the transport and
// the detection stage. Submit never blocks; an unconsumed frame is replaced,
// not queued, so the detection stage only ever sees the newest frame.
type Channel struct {
	mu      sync.Mutex
	pending *Frame
	notify  chan struct{}
	done    chan struct{}
	closed  bool
	seq     uint64

	submitted uint64
	dropped   uint64
}

func NewChannel() *Channel {
	return &Channel{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Submit hands a new frame to the channel, replacing any pending one.
func (c *Channel) Submit(data []byte) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.pending != nil {
		atomic.AddUint64(&c.dropped, 1)
	}
	c.seq++
	c.pending = &Frame{Data: data, Seq: c.seq, ReceivedAt: time.Now()}
	atomic.AddUint64(&c.submitted, 1)
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// TakeLatest returns the pending frame, waiting up to timeout for one to
// arrive. A (nil, true) return means the wait timed out; (nil, false) means
// the channel was closed and the caller should terminate.
func (c *Channel) TakeLatest(timeout time.Duration) (*Frame, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		c.mu.Lock()
		if f := c.pending; f != nil {
			c.pending = nil
			c.mu.Unlock()
			return f, true
		}
		closed := c.closed
		c.mu.Unlock()

		if closed {
			return nil, false
		}

		select {
		case <-c.notify:
		case <-c.done:
		case <-deadline.C:
			return nil, true
		}
	}
}

// Close wakes any waiting consumer and makes further Submit calls no-ops.
// A frame already pending is still delivered before TakeLatest reports
// closure.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.done)
}

// Stats returns the number of frames submitted and dropped so far.
func (c *Channel) Stats() (submitted, dropped uint64) {
	return atomic.LoadUint64(&c.submitted), atomic.LoadUint64(&c.dropped)
}
