package service

import (
	"context"
	"testing"
	"time"

	"htb_guild_backend/internal/model"
	"htb_guild_backend/internal/service/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestNotificationService_Notify(t *testing.T) {
	memberID := uuid.New()

	t.Run("writes an outbox row with serialized data", func(t *testing.T) {
		repo := &mocks.MockNotificationRepository{}
		repo.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n *model.Notification) bool {
			return n.MemberID == memberID &&
				n.Type == model.NotifyQuestAssigned &&
				n.DispatchedAt == nil &&
				len(n.Data) > 0
		})).Return(nil)

		service := NewNotificationService(repo)

		service.Notify(context.Background(), memberID, model.NotifyQuestAssigned,
			"New quest assigned", "Go get it",
			map[string]interface{}{"quest_id": uuid.New().String()})

		repo.AssertExpectations(t)
	})

	t.Run("storage failure does not propagate", func(t *testing.T) {
		repo := &mocks.MockNotificationRepository{}
		repo.On("CreateNotification", mock.Anything, mock.Anything).Return(assert.AnError)

		service := NewNotificationService(repo)

		// Must not panic or return anything; the caller never sees the error.
		service.Notify(context.Background(), memberID, model.NotifyPointsEarned,
			"Points earned", "+10", nil)

		repo.AssertExpectations(t)
	})
}

func TestDispatcher_DispatchOnce(t *testing.T) {
	pending := []*model.Notification{
		{ID: uuid.New(), MemberID: uuid.New(), Type: model.NotifyDuelWon},
		{ID: uuid.New(), MemberID: uuid.New(), Type: model.NotifyDuelLost},
	}

	t.Run("delivered rows are marked dispatched", func(t *testing.T) {
		repo := &mocks.MockNotificationRepository{}
		emitter := &mocks.MockEmitter{}

		repo.On("ListUndispatched", mock.Anything, dispatchBatchSize).Return(pending, nil)
		emitter.On("Emit", mock.Anything, pending[0]).Return(nil)
		emitter.On("Emit", mock.Anything, pending[1]).Return(nil)
		repo.On("MarkDispatched", mock.Anything, []uuid.UUID{pending[0].ID, pending[1].ID}).
			Return(nil)

		d := NewDispatcher(repo, emitter, time.Minute)
		d.dispatchOnce(context.Background())

		repo.AssertExpectations(t)
		emitter.AssertExpectations(t)
	})

	t.Run("failed emits stay in the outbox for retry", func(t *testing.T) {
		repo := &mocks.MockNotificationRepository{}
		emitter := &mocks.MockEmitter{}

		repo.On("ListUndispatched", mock.Anything, dispatchBatchSize).Return(pending, nil)
		emitter.On("Emit", mock.Anything, pending[0]).Return(assert.AnError)
		emitter.On("Emit", mock.Anything, pending[1]).Return(nil)
		repo.On("MarkDispatched", mock.Anything, []uuid.UUID{pending[1].ID}).Return(nil)

		d := NewDispatcher(repo, emitter, time.Minute)
		d.dispatchOnce(context.Background())

		repo.AssertExpectations(t)
		emitter.AssertExpectations(t)
	})

	t.Run("empty outbox does nothing", func(t *testing.T) {
		repo := &mocks.MockNotificationRepository{}
		emitter := &mocks.MockEmitter{}

		repo.On("ListUndispatched", mock.Anything, dispatchBatchSize).
			Return([]*model.Notification{}, nil)

		d := NewDispatcher(repo, emitter, time.Minute)
		d.dispatchOnce(context.Background())

		repo.AssertExpectations(t)
		repo.AssertNotCalled(t, "MarkDispatched", mock.Anything, mock.Anything)
	})
}
