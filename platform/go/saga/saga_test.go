package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/requesttrace"
)

func TestRunCompleted(t *testing.T) {
	var order []string
	step := func(name string) Step {
		return Step{Name: name, Do: func(context.Context) error { order = append(order, name); return nil }}
	}

	res := Run(context.Background(), zaptest.NewLogger(t), step("a"), step("b"))
	require.Equal(t, OutcomeCompleted, res.Outcome)
	require.NoError(t, res.Err())
	require.Equal(t, []string{"a", "b"}, order)
}

func TestRunFirstStepFails(t *testing.T) {
	boom := errors.New("boom")
	res := Run(context.Background(), zaptest.NewLogger(t), Step{Name: "a", Do: func(context.Context) error { return boom }})

	require.Equal(t, OutcomeFailed, res.Outcome)
	require.ErrorIs(t, res.Err(), boom)
	require.Equal(t, "a", res.FailedStep)
}

func TestRunCompensatesInReverse(t *testing.T) {
	boom := errors.New("boom")
	var undone []string
	undo := func(name string) func(context.Context) error {
		return func(context.Context) error { undone = append(undone, name); return nil }
	}
	ok := func(context.Context) error { return nil }

	res := Run(context.Background(), zaptest.NewLogger(t),
		Step{Name: "a", Do: ok, Compensate: undo("a")},
		Step{Name: "b", Do: ok, Compensate: undo("b")},
		Step{Name: "c", Do: func(context.Context) error { return boom }, Compensate: undo("c")},
	)

	require.Equal(t, OutcomeCompensated, res.Outcome)
	require.Equal(t, []string{"b", "a"}, undone)
	require.ErrorIs(t, res.Err(), boom)
	require.False(t, NeedsCleanup(res.Err()))
}

func TestRunCleanupRequired(t *testing.T) {
	boom := errors.New("boom")
	ok := func(context.Context) error { return nil }

	res := Run(context.Background(), zaptest.NewLogger(t),
		Step{Name: "identity", Do: ok, Compensate: func(context.Context) error { return errors.New("provider down") }},
		Step{Name: "link", Do: ok},
		Step{Name: "profile", Do: func(context.Context) error { return boom }},
	)

	require.Equal(t, OutcomeCleanupRequired, res.Outcome)
	require.ElementsMatch(t, []string{"identity", "link"}, res.Uncompensated)
	require.True(t, NeedsCleanup(res.Err()))

	var sagaErr *Error
	require.ErrorAs(t, res.Err(), &sagaErr)
	require.Equal(t, "profile", sagaErr.Result.FailedStep)
}

func TestPartialStateIsLoggedWithActor(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	userID := "6f1c1f7e-2a43-4d0e-9c55-0f2a8a1b7c11"
	ctx := requesttrace.IntoContext(context.Background(), requesttrace.AuditInfo{
		ActorKind: requesttrace.ActorKindUser,
		UserID:    &userID,
	})

	Run(ctx, zap.New(core),
		Step{Name: "upload", Do: func(context.Context) error { return nil }, Compensate: func(context.Context) error { return errors.New("bucket down") }},
		Step{Name: "insert", Do: func(context.Context) error { return errors.New("boom") }},
	)

	entries := logs.FilterMessage("saga left partial state").All()
	require.Len(t, entries, 1)
	require.Equal(t, userID, entries[0].ContextMap()["user_id"])
	require.Equal(t, "user", entries[0].ContextMap()["actor_kind"])
}

func TestCompensationIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var compensatedErr error

	res := Run(ctx, zaptest.NewLogger(t),
		Step{Name: "a", Do: func(context.Context) error { return nil }, Compensate: func(c context.Context) error {
			compensatedErr = c.Err()
			return nil
		}},
		Step{Name: "b", Do: func(context.Context) error { cancel(); return context.Canceled }},
	)

	require.Equal(t, OutcomeCompensated, res.Outcome)
	require.NoError(t, compensatedErr)
}
