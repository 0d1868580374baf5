package coach_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ayusman/formcoach/internal/apperr"
	"github.com/ayusman/formcoach/internal/classifier"
	"github.com/ayusman/formcoach/internal/coach"
	"github.com/ayusman/formcoach/internal/coach/coachmock"
	"github.com/ayusman/formcoach/internal/counter"
)

func sampleRep(n uint32, score float64, metrics ...classifier.Metric) counter.RepetitionData {
	return counter.RepetitionData{
		RepNumber:   n,
		FormScore:   score,
		Quality:     counter.QualityGood,
		Duration:    1500 * time.Millisecond,
		FormMetrics: metrics,
	}
}

var sagging = classifier.Metric{Name: "body_alignment", Score: 0.4, Threshold: 0.7, Message: "Keep your hips up, avoid sagging"}

func TestNewMessage(t *testing.T) {
	history := []counter.RepetitionData{sampleRep(1, 9.1), sampleRep(2, 8.7)}

	t.Run("count carries only the number", func(t *testing.T) {
		msg := coach.NewMessage(coach.KindCount, "s1", "Push-Ups", sampleRep(3, 8.0), history)

		assert.Equal(t, "3", msg.Text)
		assert.Equal(t, uint32(3), msg.RepNumber)
		assert.Nil(t, msg.Rep)
		assert.Empty(t, msg.History)
		assert.Empty(t, msg.Issues)
		assert.NotEmpty(t, msg.ID)
	})

	t.Run("corrective carries the analysis", func(t *testing.T) {
		rep := sampleRep(3, 5.2, classifier.Metric{Name: classifier.OverallVisibility, Score: 1, Threshold: 0.6}, sagging)
		msg := coach.NewMessage(coach.KindCorrective, "s1", "Push-Ups", rep, history)

		require.NotNil(t, msg.Rep)
		assert.Equal(t, uint32(3), msg.Rep.RepNumber)
		assert.Len(t, msg.History, 2)
		require.Len(t, msg.Issues, 1)
		assert.Equal(t, "body_alignment", msg.Issues[0].Name)

		assert.Contains(t, msg.Text, "Exercise: Push-Ups")
		assert.Contains(t, msg.Text, "rep 1, form 9.1/10")
		assert.Contains(t, msg.Text, "Current repetition: rep 3, form 5.2/10 (good), 1.5s")
		assert.Contains(t, msg.Text, "body_alignment: 0.40")
		assert.Contains(t, msg.Text, "- Keep your hips up, avoid sagging")
	})

	t.Run("history is copied", func(t *testing.T) {
		h := []counter.RepetitionData{sampleRep(1, 9)}
		msg := coach.NewMessage(coach.KindPraise, "s1", "Squats", sampleRep(2, 9.5), h)
		h[0].RepNumber = 42
		assert.Equal(t, uint32(1), msg.History[0].RepNumber)
	})
}

func TestBuildSummary(t *testing.T) {
	praise := coach.BuildSummary(coach.KindPraise, "Squats", sampleRep(4, 9.6), nil)
	assert.NotContains(t, praise, "Recent repetitions")
	assert.Contains(t, praise, "Form is excellent")
	assert.False(t, strings.HasSuffix(praise, "\n"))

	corrective := coach.BuildSummary(coach.KindCorrective, "Squats", sampleRep(4, 4, sagging), []counter.RepetitionData{sampleRep(3, 7)})
	assert.Contains(t, corrective, "Recent repetitions:\n- rep 3")
	assert.Contains(t, corrective, "Form issues:")
	assert.NotContains(t, corrective, "Form is excellent")
}

func TestMultiDispatcher(t *testing.T) {
	ctx := context.Background()
	msg := coach.NewMessage(coach.KindCount, "s1", "Crunches", sampleRep(1, 8), nil)

	t.Run("delivers to every dispatcher", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		a, b := coachmock.NewMockDispatcher(ctrl), coachmock.NewMockDispatcher(ctrl)
		a.EXPECT().Dispatch(gomock.Any(), msg).Return(nil)
		b.EXPECT().Dispatch(gomock.Any(), msg).Return(nil)

		require.NoError(t, coach.MultiDispatcher{a, b}.Dispatch(ctx, msg))
	})

	t.Run("partial failure still succeeds", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		a, b := coachmock.NewMockDispatcher(ctrl), coachmock.NewMockDispatcher(ctrl)
		a.EXPECT().Dispatch(gomock.Any(), msg).Return(errors.New("offline"))
		b.EXPECT().Dispatch(gomock.Any(), msg).Return(nil)

		assert.NoError(t, coach.MultiDispatcher{a, b}.Dispatch(ctx, msg))
	})

	t.Run("combines errors when nothing is delivered", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		a, b := coachmock.NewMockDispatcher(ctrl), coachmock.NewMockDispatcher(ctrl)
		a.EXPECT().Dispatch(gomock.Any(), msg).Return(coach.ErrBusy)
		b.EXPECT().Dispatch(gomock.Any(), msg).Return(errors.New("offline"))

		err := coach.MultiDispatcher{a, b}.Dispatch(ctx, msg)
		require.Error(t, err)
		assert.ErrorIs(t, err, coach.ErrBusy)
		assert.Contains(t, err.Error(), "offline")
		assert.True(t, apperr.IsRetryable(err))
	})
}

func TestLogDispatcher(t *testing.T) {
	msg := coach.NewMessage(coach.KindCorrective, "s1", "Plank", sampleRep(1, 3, sagging), nil)
	assert.NoError(t, coach.NewLogDispatcher().Dispatch(context.Background(), msg))
}

func TestDispatcherFunc(t *testing.T) {
	var got coach.Message
	d := coach.DispatcherFunc(func(_ context.Context, m coach.Message) error {
		got = m
		return nil
	})
	msg := coach.NewMessage(coach.KindCount, "s1", "Superman", sampleRep(2, 8), nil)

	require.NoError(t, d.Dispatch(context.Background(), msg))
	assert.Equal(t, msg.ID, got.ID)
}

func TestNewEvent(t *testing.T) {
	msg := coach.NewMessage(coach.KindPraise, "session-7", "Squats", sampleRep(6, 9.4), nil)

	e, err := coach.NewEvent(coach.EventSource, msg)
	require.NoError(t, err)
	require.NoError(t, e.Validate())

	assert.Equal(t, msg.ID, e.ID())
	assert.Equal(t, "com.formcoach.feedback.praise", e.Type())
	assert.Equal(t, coach.EventSource, e.Source())
	assert.Equal(t, "session-7", e.Subject())

	var decoded coach.Message
	require.NoError(t, json.Unmarshal(e.Data(), &decoded))
	assert.Equal(t, msg.Text, decoded.Text)
	assert.Equal(t, uint32(6), decoded.RepNumber)
}
