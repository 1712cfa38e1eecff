package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Stage string

const (
	StageMail     Stage = "mail"
	StageDispatch Stage = "dispatch"
)

type EventType string

const (
	EventTypeCycle          EventType = "cycle"
	EventTypeSkippedSender  EventType = "skipped_sender"
	EventTypeParsed         EventType = "parsed"
	EventTypeParseFailed    EventType = "parse_failed"
	EventTypeDispatched     EventType = "dispatched"
	EventTypeDispatchFailed EventType = "dispatch_failed"
	EventTypeMarkedSeen     EventType = "marked_seen"
	EventTypeError          EventType = "error"
)

type Event struct {
	Stage  Stage
	Type   EventType
	UID    uint32
	Err    error
	Detail string
}

type Summary struct {
	Cycles           int
	SkippedSender    int
	Parsed           int
	ParseFailures    int
	Dispatched       int
	DispatchFailures int
	MarkedSeen       int
	Errors           int
	LastError        error
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"cycles", s.Cycles,
		"skippedSender", s.SkippedSender,
		"parsed", s.Parsed,
		"parseFailures", s.ParseFailures,
		"dispatched", s.Dispatched,
		"dispatchFailures", s.DispatchFailures,
		"markedSeen", s.MarkedSeen,
		"errors", s.Errors,
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

type Collector struct {
	mu      sync.Mutex
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			c.apply(evt)
		}
	}
}

func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	summary := c.summary
	c.mu.Unlock()
	return summary
}

func (c *Collector) apply(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt.Type {
	case EventTypeCycle:
		c.summary.Cycles++
	case EventTypeSkippedSender:
		c.summary.SkippedSender++
	case EventTypeParsed:
		c.summary.Parsed++
	case EventTypeParseFailed:
		c.summary.ParseFailures++
	case EventTypeDispatched:
		c.summary.Dispatched++
	case EventTypeDispatchFailed:
		c.summary.DispatchFailures++
	case EventTypeMarkedSeen:
		c.summary.MarkedSeen++
	case EventTypeError:
		c.summary.Errors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}

type EventStream interface {
	SubscribeStats(name string, fn func(context.Context, <-chan Event) error)
}

type Reporter struct {
	collector *Collector
	logger    *slog.Logger
	started   time.Time
}

func NewReporter(stream EventStream, logger *slog.Logger) *Reporter {
	reporter := &Reporter{
		collector: NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}
	stream.SubscribeStats("stats-reporter", reporter.consume)
	return reporter
}

func (r *Reporter) consume(ctx context.Context, events <-chan Event) error {
	r.collector.Run(ctx, events)
	summary := r.collector.Snapshot()
	attrs := append(summary.LogAttrs(), "duration", time.Since(r.started))
	if r.logger != nil {
		r.logger.Info("stats summary", attrs...)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

func (r *Reporter) Summary() Summary {
	return r.collector.Snapshot()
}
