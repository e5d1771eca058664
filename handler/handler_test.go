package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"lead-responder/internal/domain"
	"lead-responder/internal/usecase"
)

type stubTicker struct {
	res      domain.TickResult
	deadline time.Time
	calls    int
}

func (s *stubTicker) Tick(ctx context.Context) domain.TickResult {
	s.calls++
	s.deadline, _ = ctx.Deadline()
	return s.res
}

func makeEvent() events.CloudWatchEvent {
	return events.CloudWatchEvent{
		ID:         "evt-1",
		DetailType: "Scheduled Event",
		Source:     "aws.events",
		Time:       time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil, nil)
	require.Error(t, err)
}

func TestHandle_HappyPath(t *testing.T) {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tk := &stubTicker{res: domain.TickResult{
		ID:            "tick-1",
		Status:        domain.TickSuccess,
		StartedAt:     start,
		FinishedAt:    start.Add(750 * time.Millisecond),
		Conversations: 4,
		NewMessages:   2,
		Replies:       1,
	}}
	h, err := NewHandler(tk, nil)
	require.NoError(t, err)

	out, err := h.Handle(context.Background(), makeEvent())
	require.NoError(t, err)
	require.Equal(t, 1, tk.calls)
	require.Equal(t, Summary{
		TickID:        "tick-1",
		EventID:       "evt-1",
		Status:        "success",
		Conversations: 4,
		NewMessages:   2,
		Replies:       1,
		DurationMS:    750,
	}, out)
}

func TestHandle_Skipped(t *testing.T) {
	h, err := NewHandler(&stubTicker{res: domain.TickResult{ID: "t", Status: domain.TickSkipped, Reason: "tick_in_progress"}}, nil)
	require.NoError(t, err)

	out, err := h.Handle(context.Background(), makeEvent())
	require.ErrorIs(t, err, ErrTickSkipped)
	require.Equal(t, "skipped", out.Status)
}

func TestHandle_MapsFailureCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
	}{
		{name: "rate limited", err: &usecase.Error{Code: usecase.ErrorRateLimited, Reason: "completion_rate_limited"}, code: string(usecase.ErrorRateLimited)},
		{name: "upstream", err: &usecase.Error{Code: usecase.ErrorUpstream, Reason: "dispatch_error"}, code: string(usecase.ErrorUpstream)},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "seen_store_write_error"}, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), code: string(usecase.ErrorInternal)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tk := &stubTicker{res: domain.TickResult{ID: "t", Status: domain.TickPartialFailure, Reason: "r", Err: tc.err}}
			h, err := NewHandler(tk, nil)
			require.NoError(t, err)

			out, err := h.Handle(context.Background(), makeEvent())
			require.Error(t, err)
			require.ErrorIs(t, err, tc.err)
			require.Equal(t, tc.code, out.Code)
			require.Equal(t, "partial_failure", out.Status)
		})
	}
}

func TestHandle_ReservesDeadlineMargin(t *testing.T) {
	tk := &stubTicker{res: domain.TickResult{Status: domain.TickSuccess}}
	h, err := NewHandler(tk, nil)
	require.NoError(t, err)

	deadline := time.Now().Add(time.Minute)
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	_, err = h.Handle(ctx, makeEvent())
	require.NoError(t, err)
	require.Equal(t, deadline.Add(-deadlineMargin), tk.deadline)
}
