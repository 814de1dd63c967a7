package httpclient

import "sync/atomic"

// call adapts one in-flight request to dispatch.Call: a cancel flag plus
// the host the dispatcher groups admission by.
type call struct {
	host      string
	cancelled int32
	cancel    func()
}

func (c *call) Cancel() {
	if atomic.CompareAndSwapInt32(&c.cancelled, 0, 1) && c.cancel != nil {
		c.cancel()
	}
}

func (c *call) Host() string { return c.host }
