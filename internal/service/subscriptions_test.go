package service

import (
	"database/sql"
	"testing"
	"time"

	"github.com/geoping/geoping-server/internal/database"
	"github.com/geoping/geoping-server/internal/inference"
	"github.com/geoping/geoping-server/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribe(t *testing.T) {
	dbRoom := database.Room{
		Id:         10,
		PublicId:   "room_abc123",
		Name:       "Office",
		AccessCode: "AB12CD34",
		CreatorId:  1,
	}

	t.Run("successful request", func(t *testing.T) {
		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)

		db.On("GetRoomByPublicId", "room_abc123").Return(dbRoom, nil).Once()
		db.On("GetSubscription", 2, 10).Return(database.Subscription{}, sql.ErrNoRows).Once()
		db.On("GetAccountById", 2).Return(database.User{Id: 2, Subscriptions: 4}, nil).Once()
		db.On("CreateSubscription", 2, 10).Return(database.Subscription{
			Id:           7,
			UserId:       2,
			RoomId:       10,
			Status:       database.SubStatusPending,
			SubscribedAt: time.Now(),
		}, nil).Once()

		svc := newTestService(t, db, &inference.MockOracle{}, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

		sub, err := svc.Subscribe(2, "room_abc123")
		require.NoError(t, err)
		assert.Equal(t, 7, sub.Id)
		assert.Equal(t, database.SubStatusPending, sub.Status)
		assert.Equal(t, "room_abc123", sub.RoomId)
	})

	t.Run("existing request wins over quota", func(t *testing.T) {
		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)

		db.On("GetRoomByPublicId", "room_abc123").Return(dbRoom, nil).Once()
		db.On("GetSubscription", 2, 10).Return(database.Subscription{
			Id:     7,
			Status: database.SubStatusRejected,
		}, nil).Once()

		svc := newTestService(t, db, &inference.MockOracle{}, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

		_, err := svc.Subscribe(2, "room_abc123")
		assert.Equal(t, KindConflict, KindOf(err))
	})

	t.Run("creator cannot subscribe to own room", func(t *testing.T) {
		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)

		db.On("GetRoomByPublicId", "room_abc123").Return(dbRoom, nil).Once()
		db.On("GetSubscription", 1, 10).Return(database.Subscription{}, sql.ErrNoRows).Once()

		svc := newTestService(t, db, &inference.MockOracle{}, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

		_, err := svc.Subscribe(1, "room_abc123")
		assert.Equal(t, KindInvalidInput, KindOf(err))
	})

	t.Run("quota exceeded", func(t *testing.T) {
		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)

		db.On("GetRoomByPublicId", "room_abc123").Return(dbRoom, nil).Once()
		db.On("GetSubscription", 2, 10).Return(database.Subscription{}, sql.ErrNoRows).Once()
		db.On("GetAccountById", 2).Return(database.User{Id: 2, Subscriptions: 10}, nil).Once()

		svc := newTestService(t, db, &inference.MockOracle{}, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

		_, err := svc.Subscribe(2, "room_abc123")
		assert.Equal(t, KindQuotaExceeded, KindOf(err))
	})

	t.Run("lost insert race", func(t *testing.T) {
		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)

		db.On("GetRoomByPublicId", "room_abc123").Return(dbRoom, nil).Once()
		db.On("GetSubscription", 2, 10).Return(database.Subscription{}, sql.ErrNoRows).Once()
		db.On("GetAccountById", 2).Return(database.User{Id: 2}, nil).Once()
		db.On("CreateSubscription", 2, 10).Return(database.Subscription{}, database.ErrDuplicate).Once()

		svc := newTestService(t, db, &inference.MockOracle{}, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

		_, err := svc.Subscribe(2, "room_abc123")
		assert.Equal(t, KindConflict, KindOf(err))
	})

	t.Run("room not found", func(t *testing.T) {
		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)

		db.On("GetRoomByPublicId", "room_zzz999").Return(database.Room{}, sql.ErrNoRows).Once()

		svc := newTestService(t, db, &inference.MockOracle{}, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

		_, err := svc.Subscribe(2, "room_zzz999")
		assert.Equal(t, KindNotFound, KindOf(err))
	})
}

func TestPendingSubscriptions(t *testing.T) {
	dbRoom := database.Room{Id: 10, PublicId: "room_abc123", CreatorId: 1}

	t.Run("creator lists pending", func(t *testing.T) {
		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)

		db.On("GetRoomByPublicId", "room_abc123").Return(dbRoom, nil).Once()
		db.On("ListPendingSubscriptions", 10).Return([]database.PendingSubscription{
			{Id: 7, UserId: 2, Username: "bob", Email: "bob@example.com"},
		}, nil).Once()

		svc := newTestService(t, db, &inference.MockOracle{}, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

		pending, err := svc.PendingSubscriptions(1, "room_abc123")
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "bob", pending[0].Username)
	})

	t.Run("non-creator is rejected", func(t *testing.T) {
		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)

		db.On("GetRoomByPublicId", "room_abc123").Return(dbRoom, nil).Once()

		svc := newTestService(t, db, &inference.MockOracle{}, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

		_, err := svc.PendingSubscriptions(2, "room_abc123")
		assert.Equal(t, KindNotAuthorized, KindOf(err))
	})
}

func TestDecide(t *testing.T) {
	pendingSub := database.Subscription{
		Id:          7,
		UserId:      2,
		RoomId:      10,
		RoomCreator: 1,
		AccessCode:  "AB12CD34",
		Status:      database.SubStatusPending,
	}

	t.Run("approve releases the access code", func(t *testing.T) {
		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)

		db.On("GetSubscriptionById", 7).Return(pendingSub, nil).Once()
		db.On("DecideSubscription", 7, true).Return(true, nil).Once()

		svc := newTestService(t, db, &inference.MockOracle{}, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

		accessCode, err := svc.Decide(1, 7, true)
		require.NoError(t, err)
		assert.Equal(t, "AB12CD34", accessCode)
	})

	t.Run("reject", func(t *testing.T) {
		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)

		db.On("GetSubscriptionById", 7).Return(pendingSub, nil).Once()
		db.On("DecideSubscription", 7, false).Return(true, nil).Once()

		svc := newTestService(t, db, &inference.MockOracle{}, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

		accessCode, err := svc.Decide(1, 7, false)
		require.NoError(t, err)
		assert.Empty(t, accessCode)
	})

	t.Run("non-creator is rejected", func(t *testing.T) {
		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)

		db.On("GetSubscriptionById", 7).Return(pendingSub, nil).Once()

		svc := newTestService(t, db, &inference.MockOracle{}, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

		_, err := svc.Decide(2, 7, true)
		assert.Equal(t, KindNotAuthorized, KindOf(err))
	})

	t.Run("already decided", func(t *testing.T) {
		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)

		decided := pendingSub
		decided.Status = database.SubStatusApproved
		db.On("GetSubscriptionById", 7).Return(decided, nil).Once()

		svc := newTestService(t, db, &inference.MockOracle{}, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

		_, err := svc.Decide(1, 7, true)
		assert.Equal(t, KindConflict, KindOf(err))
	})

	t.Run("lost decide race", func(t *testing.T) {
		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)

		db.On("GetSubscriptionById", 7).Return(pendingSub, nil).Once()
		db.On("DecideSubscription", 7, true).Return(false, nil).Once()

		svc := newTestService(t, db, &inference.MockOracle{}, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

		_, err := svc.Decide(1, 7, true)
		assert.Equal(t, KindConflict, KindOf(err))
	})

	t.Run("subscription not found", func(t *testing.T) {
		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)

		db.On("GetSubscriptionById", 99).Return(database.Subscription{}, sql.ErrNoRows).Once()

		svc := newTestService(t, db, &inference.MockOracle{}, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

		_, err := svc.Decide(1, 99, true)
		assert.Equal(t, KindNotFound, KindOf(err))
	})
}

func TestSetBlocked(t *testing.T) {
	dbRoom := database.Room{Id: 10, PublicId: "room_abc123", CreatorId: 1}

	t.Run("block approved member", func(t *testing.T) {
		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)

		db.On("GetRoomByPublicId", "room_abc123").Return(dbRoom, nil).Once()
		db.On("SetSubscriptionBlocked", 10, 2, true).Return(true, nil).Once()

		svc := newTestService(t, db, &inference.MockOracle{}, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

		assert.NoError(t, svc.SetBlocked(1, "room_abc123", 2, true))
	})

	t.Run("no approved subscription", func(t *testing.T) {
		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)

		db.On("GetRoomByPublicId", "room_abc123").Return(dbRoom, nil).Once()
		db.On("SetSubscriptionBlocked", 10, 2, true).Return(false, nil).Once()

		svc := newTestService(t, db, &inference.MockOracle{}, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

		err := svc.SetBlocked(1, "room_abc123", 2, true)
		assert.Equal(t, KindNotFound, KindOf(err))
	})

	t.Run("cannot block self", func(t *testing.T) {
		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)

		db.On("GetRoomByPublicId", "room_abc123").Return(dbRoom, nil).Once()

		svc := newTestService(t, db, &inference.MockOracle{}, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

		err := svc.SetBlocked(1, "room_abc123", 1, true)
		assert.Equal(t, KindInvalidInput, KindOf(err))
	})

	t.Run("non-creator is rejected", func(t *testing.T) {
		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)

		db.On("GetRoomByPublicId", "room_abc123").Return(dbRoom, nil).Once()

		svc := newTestService(t, db, &inference.MockOracle{}, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

		err := svc.SetBlocked(2, "room_abc123", 3, true)
		assert.Equal(t, KindNotAuthorized, KindOf(err))
	})
}
