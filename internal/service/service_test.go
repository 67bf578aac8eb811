package service

import (
	"testing"
	"time"

	"github.com/geoping/geoping-server/internal/config"
	"github.com/geoping/geoping-server/internal/database"
	"github.com/geoping/geoping-server/internal/inference"
	"github.com/geoping/geoping-server/internal/server"
	"github.com/geoping/geoping-server/internal/stats"
	"github.com/geoping/geoping-server/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(roomId string, msg *server.ServerMessage) {
	m.Called(roomId, msg)
}

func (m *mockPublisher) UnloadRoom(roomId string) {
	m.Called(roomId)
}

func testConfig() *config.Config {
	return &config.Config{
		InferenceTimeout:        time.Second,
		LivenessWindowList:      30 * time.Second,
		LivenessWindowDetail:    45 * time.Second,
		MaxRoomsPerUser:         3,
		MaxSubscriptionsPerUser: 10,
		MinTrainingSamples:      30,
	}
}

func newTestService(t *testing.T, db database.GeoPingRepository, oracle inference.Oracle, pub Publisher, su stats.StatsProvider, cfg *config.Config) *GeoPingService {
	if cfg == nil {
		cfg = testConfig()
	}

	return NewGeoPingService(testutil.TestLogger(t), db, oracle, pub, su, cfg)
}

func Test_newRoomId(t *testing.T) {
	id, err := newRoomId()
	assert.NoError(t, err)
	assert.True(t, len(id) > len("room_"), "expected id to carry a suffix")
	assert.Equal(t, "room_", id[:5], "expected room id prefix")

	other, err := newRoomId()
	assert.NoError(t, err)
	assert.NotEqual(t, id, other, "expected generated ids to differ")
}

func Test_newAccessCode(t *testing.T) {
	code, err := newAccessCode()
	assert.NoError(t, err)
	assert.Len(t, code, accessCodeLength)

	for _, c := range code {
		assert.Contains(t, accessCodeAlphabet, string(c), "expected only uppercase alphanumerics")
	}

	other, err := newAccessCode()
	assert.NoError(t, err)
	assert.NotEqual(t, code, other, "expected generated codes to differ")
}
