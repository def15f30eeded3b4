// Package stream consumes the chunk stream a runtime produces for one run and
// classifies it into elements. Each chunk is tried as a structured payload
// first; anything that fails validation is free text and accumulates until a
// payload or the end of the stream flushes the buffer.
package stream

import (
	"context"
	"strings"

	"github.com/petparlor/triage/core"
	"github.com/petparlor/triage/logging"
	"github.com/petparlor/triage/runtime"
)

// Result is the classified output of one run.
type Result struct {
	Elements []core.Element
}

// Text concatenates the free-text elements in order.
func (r Result) Text() string {
	var b strings.Builder
	for _, el := range r.Elements {
		if t, ok := el.(core.TextElement); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// Payloads returns the structured payloads in emission order.
func (r Result) Payloads() []*core.Schedule {
	var out []*core.Schedule
	for _, el := range r.Elements {
		if p, ok := el.(core.PayloadElement); ok {
			out = append(out, p.Schedule)
		}
	}
	return out
}

// Aggregator classifies runtime chunk streams.
type Aggregator struct {
	logger logging.Logger
}

// New creates an aggregator.
func New(logger logging.Logger) *Aggregator {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Aggregator{logger: logger}
}

// Collect drains the chunk stream into classified elements. A chunk that
// validates as a schedule payload flushes the pending free text first, so
// element order mirrors chunk order. Cancellation stops consumption
// immediately; whatever was classified so far is returned with ctx's error.
func (a *Aggregator) Collect(ctx context.Context, chunks <-chan runtime.Chunk, errs <-chan error) (Result, error) {
	var res Result
	var buf strings.Builder

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		res.Elements = append(res.Elements, core.TextElement{Text: buf.String()})
		buf.Reset()
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return res, ctx.Err()
		case c, ok := <-chunks:
			if !ok {
				flush()
				return res, drainErr(errs)
			}
			if sched, err := core.ParseSchedule(c.Text); err == nil {
				flush()
				res.Elements = append(res.Elements, core.PayloadElement{Schedule: sched})
				a.logger.Debug("structured payload emitted", "bookings", len(sched.Bookings))
				continue
			}
			buf.WriteString(c.Text)
		}
	}
}

// drainErr returns the first error the runtime reported, if any. The error
// channel is closed together with the chunk channel.
func drainErr(errs <-chan error) error {
	if errs == nil {
		return nil
	}
	select {
	case err, ok := <-errs:
		if ok && err != nil {
			return err
		}
	default:
	}
	return nil
}
