package submission

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"precioverdadero/internal/connectivity"
	"precioverdadero/internal/metrics"
	"precioverdadero/internal/models"
	"precioverdadero/internal/notify"
	"precioverdadero/internal/offline"
	"precioverdadero/pkg/commentapi"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) Submit(ctx context.Context, in models.CommentInput, key string) error {
	return m.Called(ctx, in, key).Error(0)
}

type mockBoard struct {
	mock.Mock
}

func (m *mockBoard) Refresh(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type fixture struct {
	store   *offline.MemoryStore
	queue   *offline.Queue
	api     *mockAPI
	board   *mockBoard
	monitor *connectivity.Monitor
	surface *notify.Recorder
	flow    *Flow
}

func newFixture(state connectivity.State) *fixture {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	f := &fixture{
		store:   offline.NewMemoryStore(),
		api:     &mockAPI{},
		board:   &mockBoard{},
		monitor: connectivity.NewMonitor(state, logger),
		surface: &notify.Recorder{},
	}
	f.queue = offline.NewQueue(f.store, logger)
	f.flow = NewFlow(f.queue, f.api, f.board, f.monitor, f.surface, time.Second, logger)
	f.flow.metrics = metrics.NewRegistry()
	return f
}

func TestSubmit_OfflineQueuesWithoutNetwork(t *testing.T) {
	f := newFixture(connectivity.Offline)

	res := f.flow.Submit(context.Background(), "Ana", "a@b.com", "Hola")

	assert.Equal(t, OutcomeQueuedOffline, res.Outcome)
	assert.True(t, res.Outcome.ClearForm())
	require.NotNil(t, res.Pending)

	items := f.queue.List()
	require.Len(t, items, 1)
	assert.Equal(t, "Ana", items[0].Name)
	assert.Equal(t, "a@b.com", items[0].Email)
	assert.Equal(t, "Hola", items[0].Text)
	assert.Equal(t, models.StatusPending, items[0].Status)

	count, ok := f.surface.Pending()
	assert.True(t, ok)
	assert.Equal(t, 1, count)
	assert.Equal(t, "1 comentario(s) pendiente(s) de enviar", notify.IndicatorText(count))
	assert.Equal(t, notify.Info(notify.MsgSavedOffline), f.surface.Last())
	f.api.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmit_FieldsForwardedVerbatim(t *testing.T) {
	f := newFixture(connectivity.Offline)

	f.flow.Submit(context.Background(), "  Ana ", "a@b.com", " <b>Hola</b> ")

	items := f.queue.List()
	require.Len(t, items, 1)
	assert.Equal(t, "  Ana ", items[0].Name)
	assert.Equal(t, " <b>Hola</b> ", items[0].Text)
}

func TestSubmit_Invalid(t *testing.T) {
	tests := []struct {
		name, n, e, x string
		message       string
	}{
		{"blank name", " ", "a@b.com", "Hola", notify.MsgMissingFields},
		{"blank text", "Ana", "a@b.com", "", notify.MsgMissingFields},
		{"bad email", "Ana", "a@b", "Hola", notify.MsgInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, state := range []connectivity.State{connectivity.Online, connectivity.Offline} {
				f := newFixture(state)

				res := f.flow.Submit(context.Background(), tt.n, tt.e, tt.x)

				assert.Equal(t, OutcomeInvalid, res.Outcome)
				assert.False(t, res.Outcome.ClearForm())
				assert.Equal(t, tt.message, res.Message)
				assert.Equal(t, notify.Error(tt.message), f.surface.Last())
				assert.Zero(t, f.queue.Len())
				_, touched := f.surface.Pending()
				assert.False(t, touched)
				f.api.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestSubmit_OnlineSuccessRefreshes(t *testing.T) {
	f := newFixture(connectivity.Online)
	in := models.CommentInput{Name: "Ana", Email: "a@b.com", Text: "Hola"}
	f.api.On("Submit", mock.Anything, in, mock.AnythingOfType("string")).Return(nil).Once()
	f.board.On("Refresh", mock.Anything).Return(nil).Once()

	res := f.flow.Submit(context.Background(), "Ana", "a@b.com", "Hola")

	assert.Equal(t, OutcomeSent, res.Outcome)
	assert.True(t, res.Outcome.ClearForm())
	assert.Nil(t, res.Pending)
	assert.Zero(t, f.queue.Len())
	assert.Equal(t, notify.Success(notify.MsgSent), f.surface.Last())
	f.api.AssertExpectations(t)
	f.board.AssertExpectations(t)
}

func TestSubmit_RejectionQueues(t *testing.T) {
	f := newFixture(connectivity.Online)
	f.api.On("Submit", mock.Anything, mock.Anything, mock.AnythingOfType("string")).
		Return(&commentapi.RejectedError{StatusCode: 500, Message: "Error al guardar el comentario"}).Once()

	res := f.flow.Submit(context.Background(), "Ana", "a@b.com", "Hola")

	assert.Equal(t, OutcomeQueuedAfterRejection, res.Outcome)
	assert.True(t, commentapi.IsRejected(res.Err))
	assert.Equal(t, 1, f.queue.Len())
	assert.Equal(t, notify.Error(notify.MsgSavedAfterReject), f.surface.Last())
	f.board.AssertNotCalled(t, "Refresh", mock.Anything)
}

func TestSubmit_TransportFailureQueues(t *testing.T) {
	f := newFixture(connectivity.Online)
	f.api.On("Submit", mock.Anything, mock.Anything, mock.AnythingOfType("string")).
		Return(&commentapi.TransportError{Op: "submit", Err: context.DeadlineExceeded}).Once()

	res := f.flow.Submit(context.Background(), "Ana", "a@b.com", "Hola")

	assert.Equal(t, OutcomeQueuedAfterFailure, res.Outcome)
	assert.Equal(t, 1, f.queue.Len())
	assert.Equal(t, notify.Info(notify.MsgSavedAfterFailure), f.surface.Last())
	count, _ := f.surface.Pending()
	assert.Equal(t, 1, count)
}

func TestSubmit_QueuedAfterFailureKeepsAttemptKey(t *testing.T) {
	f := newFixture(connectivity.Online)
	var sentKey string
	f.api.On("Submit", mock.Anything, mock.Anything, mock.AnythingOfType("string")).
		Return(&commentapi.TransportError{Op: "submit", Err: context.DeadlineExceeded}).
		Run(func(args mock.Arguments) { sentKey = args.String(2) }).Once()

	res := f.flow.Submit(context.Background(), "Ana", "a@b.com", "Hola")

	require.NotNil(t, res.Pending)
	assert.NotEmpty(t, sentKey)
	assert.Equal(t, sentKey, res.Pending.ID)
	assert.Equal(t, sentKey, f.queue.List()[0].ID)
}

func TestSubmit_UnreadableQueueIsVisible(t *testing.T) {
	f := newFixture(connectivity.Offline)
	f.flow.Submit(context.Background(), "Ana", "a@b.com", "Hola")
	f.store.SetLoadError(stderrors.New("input/output error"))

	res := f.flow.Submit(context.Background(), "Beto", "b@b.com", "Hola")

	assert.Equal(t, OutcomeLost, res.Outcome)
	assert.Equal(t, notify.Error(notify.MsgLocalSaveFailed), f.surface.Last())
	f.store.SetLoadError(nil)
	assert.Equal(t, 1, f.queue.Len())
}

func TestSubmit_AttemptIsBounded(t *testing.T) {
	f := newFixture(connectivity.Online)
	f.flow.timeout = 20 * time.Millisecond
	f.api.On("Submit", mock.Anything, mock.Anything, mock.AnythingOfType("string")).Return(nil).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		_, ok := ctx.Deadline()
		assert.True(t, ok)
	}).Once()
	f.board.On("Refresh", mock.Anything).Return(nil)

	f.flow.Submit(context.Background(), "Ana", "a@b.com", "Hola")
	f.api.AssertExpectations(t)
}

func TestSubmit_LocalSaveFailureIsVisible(t *testing.T) {
	f := newFixture(connectivity.Offline)
	f.store.SetSaveError(stderrors.New("disk full"))

	res := f.flow.Submit(context.Background(), "Ana", "a@b.com", "Hola")

	assert.Equal(t, OutcomeLost, res.Outcome)
	assert.False(t, res.Outcome.ClearForm())
	assert.Error(t, res.Err)
	assert.Equal(t, notify.Error(notify.MsgLocalSaveFailed), f.surface.Last())
	assert.Zero(t, f.queue.Len())
}

func TestSubmit_OfflineKeepsSubmissionOrder(t *testing.T) {
	f := newFixture(connectivity.Offline)
	f.flow.Submit(context.Background(), "Ana", "a@b.com", "Uno")
	f.flow.Submit(context.Background(), "Beto", "b@c.com", "Dos")

	items := f.queue.List()
	require.Len(t, items, 2)
	assert.Equal(t, "Uno", items[0].Text)
	assert.Equal(t, "Dos", items[1].Text)
	assert.NotEqual(t, items[0].ID, items[1].ID)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "queued_after_failure", OutcomeQueuedAfterFailure.String())
	assert.True(t, OutcomeQueuedAfterRejection.Queued())
	assert.False(t, OutcomeSent.Queued())
}
