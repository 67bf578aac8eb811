package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/geoping/geoping-server/internal/database"
	"github.com/geoping/geoping-server/internal/inference"
	"github.com/geoping/geoping-server/internal/stats"
	"github.com/geoping/geoping-server/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testScan = []types.WifiNetwork{
	{Bssid: "aa:bb:cc:dd:ee:01", Ssid: "office-wifi", Rssi: -42},
	{Bssid: "aa:bb:cc:dd:ee:02", Ssid: "office-guest", Rssi: -67},
}

func trainedRoom() database.Room {
	return database.Room{
		Id:           10,
		PublicId:     "room_abc123",
		WifiSsid:     "office-wifi",
		CreatorId:    1,
		ModelTrained: true,
	}
}

func TestReportPresence(t *testing.T) {
	t.Run("inside verdict is stored and published", func(t *testing.T) {
		seenAt := time.Now().UTC()

		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRoomByPublicId", "room_abc123").Return(trainedRoom(), nil).Once()
		db.On("UpsertPresence", 1, 10, true, 0.92).Return(seenAt, nil).Once()
		db.On("GetAccountById", 1).Return(database.User{Id: 1, Username: "alice"}, nil).Once()

		oracle := &inference.MockOracle{}
		defer oracle.AssertExpectations(t)
		oracle.On("Infer", mock.Anything, "office-wifi", testScan).Return(inference.Verdict{
			Inside:     true,
			Confidence: 0.92,
		}, nil).Once()

		pub := &mockPublisher{}
		defer pub.AssertExpectations(t)
		pub.On("Publish", "room_abc123", mock.Anything).Once()

		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("Incr", stats.PresenceUpdates).Once()

		svc := newTestService(t, db, oracle, pub, su, nil)

		verdict, err := svc.ReportPresence(context.Background(), 1, "room_abc123", testScan)
		require.NoError(t, err)
		assert.True(t, verdict.Inside)
		assert.Equal(t, 0.92, verdict.Confidence)
		assert.Equal(t, seenAt, verdict.LastSeenAt)
	})

	t.Run("outside verdict is stored but not published", func(t *testing.T) {
		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRoomByPublicId", "room_abc123").Return(trainedRoom(), nil).Once()
		db.On("UpsertPresence", 1, 10, false, 0.31).Return(time.Now(), nil).Once()

		oracle := &inference.MockOracle{}
		defer oracle.AssertExpectations(t)
		oracle.On("Infer", mock.Anything, "office-wifi", testScan).Return(inference.Verdict{
			Inside:     false,
			Confidence: 0.31,
		}, nil).Once()

		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("Incr", stats.PresenceUpdates).Once()

		pub := &mockPublisher{}
		defer pub.AssertExpectations(t)

		svc := newTestService(t, db, oracle, pub, su, nil)

		verdict, err := svc.ReportPresence(context.Background(), 1, "room_abc123", testScan)
		require.NoError(t, err)
		assert.False(t, verdict.Inside)
	})

	t.Run("untrained room", func(t *testing.T) {
		room := trainedRoom()
		room.ModelTrained = false

		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRoomByPublicId", "room_abc123").Return(room, nil).Once()

		svc := newTestService(t, db, &inference.MockOracle{}, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

		_, err := svc.ReportPresence(context.Background(), 1, "room_abc123", testScan)
		assert.Equal(t, KindInvalidInput, KindOf(err))
	})

	t.Run("inference timeout", func(t *testing.T) {
		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRoomByPublicId", "room_abc123").Return(trainedRoom(), nil).Once()

		oracle := &inference.MockOracle{}
		defer oracle.AssertExpectations(t)
		oracle.On("Infer", mock.Anything, "office-wifi", testScan).Return(inference.Verdict{}, inference.ErrTimeout).Once()

		svc := newTestService(t, db, oracle, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

		_, err := svc.ReportPresence(context.Background(), 1, "room_abc123", testScan)
		assert.Equal(t, KindInferenceTimeout, KindOf(err))
	})

	t.Run("inference unavailable", func(t *testing.T) {
		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRoomByPublicId", "room_abc123").Return(trainedRoom(), nil).Once()

		oracle := &inference.MockOracle{}
		defer oracle.AssertExpectations(t)
		oracle.On("Infer", mock.Anything, "office-wifi", testScan).Return(inference.Verdict{}, inference.ErrUnavailable).Once()

		svc := newTestService(t, db, oracle, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

		_, err := svc.ReportPresence(context.Background(), 1, "room_abc123", testScan)
		assert.Equal(t, KindInferenceFailure, KindOf(err))
	})

	t.Run("empty scan", func(t *testing.T) {
		svc := newTestService(t, &database.MockGeoPingRepository{}, &inference.MockOracle{}, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

		_, err := svc.ReportPresence(context.Background(), 1, "room_abc123", nil)
		assert.Equal(t, KindInvalidInput, KindOf(err))
	})

	t.Run("non-member is rejected", func(t *testing.T) {
		db := &database.MockGeoPingRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRoomByPublicId", "room_abc123").Return(trainedRoom(), nil).Once()
		db.On("GetSubscription", 5, 10).Return(database.Subscription{}, sql.ErrNoRows).Once()

		svc := newTestService(t, db, &inference.MockOracle{}, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

		_, err := svc.ReportPresence(context.Background(), 5, "room_abc123", testScan)
		assert.Equal(t, KindNotAuthorized, KindOf(err))
	})
}

func TestPresentUsers(t *testing.T) {
	db := &database.MockGeoPingRepository{}
	defer db.AssertExpectations(t)

	db.On("GetRoomByPublicId", "room_abc123").Return(trainedRoom(), nil).Once()
	db.On("ListPresentUsers", 10, 30*time.Second).Return([]database.PresentUser{
		{UserId: 2, Username: "bob", Confidence: 0.88, LastSeenAt: time.Now()},
	}, nil).Once()

	svc := newTestService(t, db, &inference.MockOracle{}, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

	users, err := svc.PresentUsers(1, "room_abc123")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].Username)
}

func TestPresentRooms(t *testing.T) {
	db := &database.MockGeoPingRepository{}
	defer db.AssertExpectations(t)

	db.On("ListPresentRooms", 1, 30*time.Second).Return([]database.PresentRoom{
		{RoomPublicId: "room_abc123", RoomName: "Office", WifiSsid: "office-wifi", Confidence: 0.9},
	}, nil).Once()

	svc := newTestService(t, db, &inference.MockOracle{}, &mockPublisher{}, &stats.MockStatsUpdater{}, nil)

	rooms, err := svc.PresentRooms(1)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "room_abc123", rooms[0].RoomId)
}
