package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"lead-responder/internal/domain"
	"lead-responder/internal/usecase"
)

// ErrTickSkipped is returned when another tick held the responder.
var ErrTickSkipped = errors.New("handler: tick skipped; previous tick still running")

// deadlineMargin is reserved from the invocation deadline so the summary is
// returned before Lambda kills the function.
const deadlineMargin = 2 * time.Second

type Ticker interface {
	Tick(ctx context.Context) domain.TickResult
}

type Handler struct {
	ticker Ticker
	logger *slog.Logger
}

type Summary struct {
	TickID           string `json:"tickId"`
	EventID          string `json:"eventId,omitempty"`
	Status           string `json:"status"`
	Code             string `json:"code,omitempty"`
	Reason           string `json:"reason,omitempty"`
	Conversations    int    `json:"conversations"`
	NewMessages      int    `json:"newMessages"`
	Replies          int    `json:"replies"`
	EmptyCompletions int    `json:"emptyCompletions"`
	DurationMS       int64  `json:"durationMs"`
}

func NewHandler(t Ticker, logger *slog.Logger) (*Handler, error) {
	if t == nil {
		return nil, errors.New("handler: ticker must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{ticker: t, logger: logger}, nil
}

// Handle runs one tick per scheduled event. It errors on skipped or failed
// ticks so the invocation is counted as failed.
func (h *Handler) Handle(ctx context.Context, ev events.CloudWatchEvent) (Summary, error) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) > 2*deadlineMargin {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline.Add(-deadlineMargin))
		defer cancel()
	}

	res := h.ticker.Tick(ctx)
	out := Summary{
		TickID:           res.ID,
		EventID:          ev.ID,
		Status:           string(res.Status),
		Reason:           res.Reason,
		Conversations:    res.Conversations,
		NewMessages:      res.NewMessages,
		Replies:          res.Replies,
		EmptyCompletions: res.EmptyCompletions,
		DurationMS:       res.Duration().Milliseconds(),
	}
	log := h.logger.With("event_id", ev.ID, "tick_id", res.ID, "source", ev.Source)

	switch res.Status {
	case domain.TickSkipped:
		log.Warn("scheduled tick skipped")
		return out, ErrTickSkipped
	case domain.TickPartialFailure:
		var ue *usecase.Error
		if errors.As(res.Err, &ue) {
			out.Code = string(ue.Code)
		} else {
			out.Code = string(usecase.ErrorInternal)
		}
		log.Error("scheduled tick failed", "code", out.Code, "reason", res.Reason, "error", res.Err)
		return out, fmt.Errorf("handler: tick %s failed (%s): %w", res.ID, res.Reason, res.Err)
	}
	log.Info("scheduled tick completed", "replies", res.Replies, "new_messages", res.NewMessages)
	return out, nil
}
