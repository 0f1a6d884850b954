package tracker

import (
	"fmt"

	"github.com/user/webmonitor/pkg/beacon"
)

const (
	rejectionType     = "Promise Rejection"
	rejectionFilename = "Unknown"
)

// ErrorCapturer records uncaught errors and unhandled rejections. Every
// capture is flushed immediately; near-duplicates are left to the server.
type ErrorCapturer struct {
	env *env
}

func (c *ErrorCapturer) Install(h Host) {
	h.OnError(func(ev ErrorEvent) {
		c.env.safe("errors", func() { c.captureError(ev) })
	})
	h.OnUnhandledRejection(func(ev RejectionEvent) {
		c.env.safe("errors", func() { c.captureRejection(ev) })
	})
}

func (c *ErrorCapturer) captureError(ev ErrorEvent) {
	if ev.Error == nil {
		return
	}
	typ := ev.Error.Name
	if typ == "" {
		typ = "Error"
	}
	c.env.buf.AddError(beacon.ErrorRecord{
		Type:      typ,
		Message:   ev.Error.Message,
		Filename:  ev.Filename,
		Lineno:    ev.Line,
		Timestamp: beacon.At(c.env.now()),
	})
	c.env.flush()
}

func (c *ErrorCapturer) captureRejection(ev RejectionEvent) {
	c.env.buf.AddError(beacon.ErrorRecord{
		Type:      rejectionType,
		Message:   reasonMessage(ev.Reason),
		Filename:  rejectionFilename,
		Lineno:    0,
		Timestamp: beacon.At(c.env.now()),
	})
	c.env.flush()
}

// reasonMessage prefers the reason's own message and falls back to its
// string form.
func reasonMessage(reason any) string {
	switch r := reason.(type) {
	case nil:
		return "undefined"
	case error:
		return r.Error()
	case *ThrownError:
		if r.Message != "" {
			return r.Message
		}
		return r.Name
	case map[string]any:
		if msg, ok := r["message"].(string); ok && msg != "" {
			return msg
		}
		return formatArg(r)
	case string:
		return r
	default:
		return fmt.Sprint(r)
	}
}
