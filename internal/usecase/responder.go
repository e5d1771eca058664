package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lead-responder/internal/domain"
)

// Messenger is the messaging provider: conversation listing, history and
// reply dispatch.
type Messenger interface {
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	ListMessages(ctx context.Context, conversationID domain.ID) ([]domain.Message, error)
	SendReply(ctx context.Context, conversationID domain.ID, text string) error
}

// Completer generates reply text for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// SeenStore records the last processed message id per conversation.
type SeenStore interface {
	LastSeen(ctx context.Context, conversationID domain.ID) (domain.ID, bool, error)
	MarkSeen(ctx context.Context, conversationID, messageID domain.ID) error
}

// TickObserver receives the result of every tick.
type TickObserver interface {
	ObserveTick(result domain.TickResult)
}

// Responder polls conversations and answers new lead messages. At most one
// Tick runs at a time; overlapping calls are reported as skipped.
type Responder struct {
	messenger    Messenger
	llm          Completer
	seen         SeenStore
	counterparty domain.Sender
	logger       *slog.Logger
	observers    []TickObserver
	now          func() time.Time
	newID        func() string

	busy sync.Mutex
}

type Option func(*Responder)

// WithCounterparty sets the sender classification that is answered.
func WithCounterparty(sender domain.Sender) Option {
	return func(r *Responder) {
		if s := strings.TrimSpace(string(sender)); s != "" {
			r.counterparty = domain.Sender(s)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Responder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver adds a sink for tick results.
func WithObserver(o TickObserver) Option {
	return func(r *Responder) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

func NewResponder(m Messenger, llm Completer, seen SeenStore, opts ...Option) (*Responder, error) {
	if m == nil {
		return nil, errors.New("usecase: messenger must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: completer must not be nil")
	}
	if seen == nil {
		return nil, errors.New("usecase: seen store must not be nil")
	}
	r := &Responder{
		messenger:    m,
		llm:          llm,
		seen:         seen,
		counterparty: domain.SenderLead,
		logger:       slog.Default(),
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Tick runs one polling cycle. It never returns an error: failures abort the
// rest of the cycle and are reported through the result.
func (r *Responder) Tick(ctx context.Context) domain.TickResult {
	res := domain.TickResult{ID: r.newID(), StartedAt: r.now()}
	log := r.logger.With("tick_id", res.ID)

	if !r.busy.TryLock() {
		res.Status = domain.TickSkipped
		res.Reason = "tick_in_progress"
		res.FinishedAt = r.now()
		log.Warn("previous tick still running; skipping")
		r.publish(res)
		return res
	}
	defer r.busy.Unlock()

	if err := r.safeRun(ctx, log, &res); err != nil {
		res.Status = domain.TickPartialFailure
		res.Reason = reasonOf(err)
		res.Err = err
	} else {
		res.Status = domain.TickSuccess
	}
	res.FinishedAt = r.now()

	attrs := []any{
		"status", res.Status,
		"conversations", res.Conversations,
		"new_messages", res.NewMessages,
		"replies", res.Replies,
		"duration_ms", res.Duration().Milliseconds(),
	}
	switch {
	case res.Failed():
		log.Error("polling error", append(attrs, "reason", res.Reason, "error", res.Err)...)
	case res.NewMessages > 0:
		log.Info("tick completed", attrs...)
	default:
		log.Debug("tick completed", attrs...)
	}
	r.publish(res)
	return res
}

func (r *Responder) publish(res domain.TickResult) {
	for _, o := range r.observers {
		o.ObserveTick(res)
	}
}

func (r *Responder) safeRun(ctx context.Context, log *slog.Logger, res *domain.TickResult) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = newError(ErrorInternal, "tick_panic", fmt.Errorf("panic: %v", p))
		}
	}()
	return r.run(ctx, log, res)
}

func (r *Responder) run(ctx context.Context, log *slog.Logger, res *domain.TickResult) error {
	convs, err := r.messenger.ListConversations(ctx)
	if err != nil {
		return upstreamError("list_conversations", err)
	}
	res.Conversations = len(convs)

	for _, conv := range convs {
		if conv.ID.Empty() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return newError(ErrorTimeout, "tick_deadline_exceeded", err)
		}
		if err := r.processConversation(ctx, log, conv, res); err != nil {
			return err
		}
	}
	return nil
}

func (r *Responder) processConversation(ctx context.Context, log *slog.Logger, conv domain.Conversation, res *domain.TickResult) error {
	log = log.With("conversation_id", conv.ID.String())
	log.Debug("checking contact", "contact", conv.FullName, "phone", conv.Phone)

	history, err := r.messenger.ListMessages(ctx, conv.ID)
	if err != nil {
		return upstreamError("list_messages", err)
	}
	last, ok := domain.LastMessage(history)
	if !ok {
		res.EmptyHistories++
		return nil
	}
	res.Evaluated++
	if last.ID.Empty() {
		log.Warn("newest message has no id; cannot deduplicate")
		return nil
	}

	seenID, found, err := r.seen.LastSeen(ctx, conv.ID)
	if err != nil {
		return newError(ErrorInternal, "seen_store_read_error", err)
	}
	if found && seenID == last.ID {
		return nil
	}
	// Recorded before any reply work so a message is never answered twice,
	// even if the completion or dispatch below fails.
	if err := r.seen.MarkSeen(ctx, conv.ID, last.ID); err != nil {
		return newError(ErrorInternal, "seen_store_write_error", err)
	}
	res.NewMessages++

	log = log.With("message_id", last.ID.String())
	if !last.FromCounterparty(r.counterparty) {
		log.Debug("newest message is not from the lead; no reply", "sender", string(last.Sender))
		return nil
	}
	prompt := promptFor(last.Text)
	if prompt == "" {
		log.Info("lead message has no text; no reply")
		return nil
	}

	reply, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		return upstreamError("completion", err)
	}
	if strings.TrimSpace(reply) == "" {
		res.EmptyCompletions++
		log.Warn("completion returned no text; reply not sent")
		return nil
	}

	if err := r.messenger.SendReply(ctx, conv.ID, reply); err != nil {
		return upstreamError("dispatch", err)
	}
	res.Replies++
	log.Info("reply dispatched", "contact", conv.FullName, "reply_length", len(reply))
	return nil
}
