package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/circuitsaga/payvoice/model"
	"github.com/circuitsaga/payvoice/parse"
	"github.com/circuitsaga/payvoice/stats"
)

// Session is one mail-transport connection, opened fresh every cycle.
type Session interface {
	UnseenUIDs(ctx context.Context) ([]uint32, error)
	Fetch(ctx context.Context, uid uint32) (model.InboxMessage, error)
	MarkSeen(ctx context.Context, uid uint32) error
	Close() error
}

// Mailbox dials sessions against the watched account.
type Mailbox interface {
	Dial(ctx context.Context) (Session, error)
}

// MailboxFunc adapts a dial function to the Mailbox interface.
type MailboxFunc func(ctx context.Context) (Session, error)

func (f MailboxFunc) Dial(ctx context.Context) (Session, error) {
	return f(ctx)
}

// Dispatcher turns a parsed payment event into an outbound notification.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt model.PaymentEvent) error
}

// EventSink receives stats events emitted during a cycle.
type EventSink interface {
	EmitEvent(evt stats.Event)
}

// SelectionPolicy decides which of the unread messages a cycle inspects.
// UIDs arrive in transport order, oldest first.
type SelectionPolicy func(uids []uint32) []uint32

// LatestOnly keeps only the most recently arrived unread message. An older
// unread message is never revisited once a newer one supersedes it, so
// bursty arrivals can lose events. Behavior kept for parity with the
// upstream watcher; swap in AllUnread to process every unread message.
func LatestOnly(uids []uint32) []uint32 {
	if len(uids) == 0 {
		return nil
	}
	return uids[len(uids)-1:]
}

// AllUnread inspects every unread message, oldest first.
func AllUnread(uids []uint32) []uint32 {
	return uids
}

// FailureKind categorizes what went wrong during a cycle.
type FailureKind string

const (
	FailureNone     FailureKind = ""
	FailureSession  FailureKind = "session"
	FailureFetch    FailureKind = "fetch"
	FailureParse    FailureKind = "parse"
	FailureDispatch FailureKind = "dispatch"
	FailureMarkSeen FailureKind = "mark_seen"
)

// Result describes a single poll cycle. When several things go wrong in
// one cycle, Failure and Err report the last of them.
type Result struct {
	Checked    int // unread messages inspected
	Skipped    int // inspected but from the wrong sender
	Dispatched int
	Failure    FailureKind
	Err        error
}

type Options struct {
	// Interval is the gap between the end of one cycle and the start of
	// the next.
	Interval time.Duration
	// SenderToken is the substring the From address must contain.
	SenderToken string
}

type Watcher struct {
	opts       Options
	mailbox    Mailbox
	dispatcher Dispatcher
	events     EventSink
	logger     *slog.Logger
	policy     SelectionPolicy
	sleep      func(ctx context.Context, d time.Duration) error
}

func New(opts Options, mailbox Mailbox, dispatcher Dispatcher, events EventSink, logger *slog.Logger) (*Watcher, error) {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.SenderToken == "" {
		return nil, fmt.Errorf("sender token is empty")
	}
	if mailbox == nil {
		return nil, fmt.Errorf("mailbox must not be nil")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher must not be nil")
	}

	return &Watcher{
		opts:       opts,
		mailbox:    mailbox,
		dispatcher: dispatcher,
		events:     events,
		logger:     logger,
		policy:     LatestOnly,
		sleep:      sleepContext,
	}, nil
}

// SetPolicy replaces the unread-message selection policy.
func (w *Watcher) SetPolicy(policy SelectionPolicy) {
	if policy != nil {
		w.policy = policy
	}
}

// Run polls until ctx is canceled. Every cycle failure is logged and
// absorbed; the loop never stops on its own.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watcher started", "interval", w.opts.Interval, "sender", w.opts.SenderToken)

	for {
		result := w.Cycle(ctx)
		if result.Err != nil && ctx.Err() == nil {
			w.logger.Error("poll cycle failed", "kind", string(result.Failure), "err", result.Err)
		}

		if err := w.sleep(ctx, w.opts.Interval); err != nil {
			return err
		}
	}
}

// Cycle runs one poll pass: dial, pick unread, filter by sender, extract,
// dispatch, mark seen. A message whose extraction succeeded is marked seen
// even when dispatch fails: at-most-once delivery is preferred over
// retrying a possibly malformed message forever.
func (w *Watcher) Cycle(ctx context.Context) Result {
	w.emit(stats.Event{Stage: stats.StageMail, Type: stats.EventTypeCycle})

	session, err := w.mailbox.Dial(ctx)
	if err != nil {
		err = fmt.Errorf("dial: %w", err)
		w.emit(stats.Event{Stage: stats.StageMail, Type: stats.EventTypeError, Err: err})
		return Result{Failure: FailureSession, Err: err}
	}
	defer func() {
		if cerr := session.Close(); cerr != nil && w.logger != nil {
			w.logger.Debug("session close", "err", cerr)
		}
	}()

	uids, err := session.UnseenUIDs(ctx)
	if err != nil {
		err = fmt.Errorf("search unseen: %w", err)
		w.emit(stats.Event{Stage: stats.StageMail, Type: stats.EventTypeError, Err: err})
		return Result{Failure: FailureSession, Err: err}
	}
	if len(uids) == 0 {
		return Result{}
	}

	var result Result
	for _, uid := range w.policy(uids) {
		result.Checked++
		w.inspect(ctx, session, uid, &result)
	}
	return result
}

func (w *Watcher) inspect(ctx context.Context, session Session, uid uint32, result *Result) {
	msg, err := session.Fetch(ctx, uid)
	if err != nil {
		result.Failure = FailureFetch
		result.Err = fmt.Errorf("fetch %d: %w", uid, err)
		w.emit(stats.Event{Stage: stats.StageMail, Type: stats.EventTypeError, UID: uid, Err: err})
		return
	}

	if !strings.Contains(msg.From, w.opts.SenderToken) {
		result.Skipped++
		w.emit(stats.Event{Stage: stats.StageMail, Type: stats.EventTypeSkippedSender, UID: uid})
		w.logger.Debug("not a payment notification, skipping", "uid", uid, "from", msg.From)
		return
	}

	evt, found := parse.Extract(msg.Body)
	if !found {
		// Left unread so a later cycle may retry, subject to the
		// latest-only selection.
		result.Failure = FailureParse
		w.emit(stats.Event{Stage: stats.StageMail, Type: stats.EventTypeParseFailed, UID: uid})
		w.logger.Warn("could not extract payment details", "uid", uid, "subject", msg.Subject)
		return
	}
	w.emit(stats.Event{Stage: stats.StageMail, Type: stats.EventTypeParsed, UID: uid})
	w.logger.Info("payment received", "amount", evt.Amount, "from", evt.Sender)

	if err := w.dispatcher.Dispatch(ctx, evt); err != nil {
		result.Failure = FailureDispatch
		result.Err = err
		w.emit(stats.Event{Stage: stats.StageDispatch, Type: stats.EventTypeDispatchFailed, UID: uid, Err: err})
		w.logger.Error("dispatch failed", "uid", uid, "err", err)
	} else {
		result.Dispatched++
		w.emit(stats.Event{Stage: stats.StageDispatch, Type: stats.EventTypeDispatched, UID: uid})
	}

	if err := session.MarkSeen(ctx, uid); err != nil {
		result.Failure = FailureMarkSeen
		result.Err = fmt.Errorf("mark seen %d: %w", uid, err)
		w.emit(stats.Event{Stage: stats.StageMail, Type: stats.EventTypeError, UID: uid, Err: err})
		w.logger.Error("mark seen failed", "uid", uid, "err", err)
		return
	}
	w.emit(stats.Event{Stage: stats.StageMail, Type: stats.EventTypeMarkedSeen, UID: uid})
}

func (w *Watcher) emit(evt stats.Event) {
	if w.events != nil {
		w.events.EmitEvent(evt)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
