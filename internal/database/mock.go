package database

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type MockGeoPingRepository struct {
	mock.Mock
}

func (m *MockGeoPingRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockGeoPingRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGeoPingRepository) GetAccountById(id int) (User, error) {
	args := m.Called(id)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGeoPingRepository) GetAccountByUsername(username string) (User, error) {
	args := m.Called(username)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGeoPingRepository) UpdateAccount(params UpdateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGeoPingRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockGeoPingRepository) DeleteRoom(roomId, creatorId int) error {
	args := m.Called(roomId, creatorId)
	return args.Error(0)
}
func (m *MockGeoPingRepository) GetRoomByPublicId(publicId string) (Room, error) {
	args := m.Called(publicId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockGeoPingRepository) SearchRooms(query string, limit int) ([]Room, error) {
	args := m.Called(query, limit)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockGeoPingRepository) ListRoomsByCreator(creatorId int) ([]Room, error) {
	args := m.Called(creatorId)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockGeoPingRepository) GetRoomSubscribers(roomId int, window time.Duration) ([]RoomSubscriber, error) {
	args := m.Called(roomId, window)
	return args.Get(0).([]RoomSubscriber), args.Error(1)
}
func (m *MockGeoPingRepository) CreateSubscription(userId, roomId int) (Subscription, error) {
	args := m.Called(userId, roomId)
	return args.Get(0).(Subscription), args.Error(1)
}
func (m *MockGeoPingRepository) GetSubscription(userId, roomId int) (Subscription, error) {
	args := m.Called(userId, roomId)
	return args.Get(0).(Subscription), args.Error(1)
}
func (m *MockGeoPingRepository) GetSubscriptionById(id int) (Subscription, error) {
	args := m.Called(id)
	return args.Get(0).(Subscription), args.Error(1)
}
func (m *MockGeoPingRepository) ListPendingSubscriptions(roomId int) ([]PendingSubscription, error) {
	args := m.Called(roomId)
	return args.Get(0).([]PendingSubscription), args.Error(1)
}
func (m *MockGeoPingRepository) ListSubscriptionsByUser(userId int) ([]Subscription, error) {
	args := m.Called(userId)
	return args.Get(0).([]Subscription), args.Error(1)
}
func (m *MockGeoPingRepository) DecideSubscription(id int, approve bool) (bool, error) {
	args := m.Called(id, approve)
	return args.Bool(0), args.Error(1)
}
func (m *MockGeoPingRepository) SetSubscriptionBlocked(roomId, userId int, blocked bool) (bool, error) {
	args := m.Called(roomId, userId, blocked)
	return args.Bool(0), args.Error(1)
}
func (m *MockGeoPingRepository) UpsertPresence(userId, roomId int, isPresent bool, confidence float64) (time.Time, error) {
	args := m.Called(userId, roomId, isPresent, confidence)
	return args.Get(0).(time.Time), args.Error(1)
}
func (m *MockGeoPingRepository) ListPresentUsers(roomId int, window time.Duration) ([]PresentUser, error) {
	args := m.Called(roomId, window)
	return args.Get(0).([]PresentUser), args.Error(1)
}
func (m *MockGeoPingRepository) ListPresentRooms(userId int, window time.Duration) ([]PresentRoom, error) {
	args := m.Called(userId, window)
	return args.Get(0).([]PresentRoom), args.Error(1)
}
func (m *MockGeoPingRepository) IsUserPresent(userId, roomId int, window time.Duration) (bool, error) {
	args := m.Called(userId, roomId, window)
	return args.Bool(0), args.Error(1)
}
func (m *MockGeoPingRepository) CreateConversation(params CreateConversationParams) (Conversation, error) {
	args := m.Called(params)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockGeoPingRepository) GetConversationByPublicId(publicId string) (Conversation, error) {
	args := m.Called(publicId)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockGeoPingRepository) ListConversations(roomId int) ([]Conversation, error) {
	args := m.Called(roomId)
	return args.Get(0).([]Conversation), args.Error(1)
}
func (m *MockGeoPingRepository) CreateMessage(conversationId, senderId int, content string) (Message, error) {
	args := m.Called(conversationId, senderId, content)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockGeoPingRepository) ListMessages(conversationId, limit, offset int) ([]Message, error) {
	args := m.Called(conversationId, limit, offset)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockGeoPingRepository) InsertTrainingSample(params TrainingSampleParams) (int, error) {
	args := m.Called(params)
	return args.Int(0), args.Error(1)
}
func (m *MockGeoPingRepository) CountTrainingSamples(roomLabel string) (int, error) {
	args := m.Called(roomLabel)
	return args.Int(0), args.Error(1)
}
func (m *MockGeoPingRepository) MarkRoomTrained(roomId int) error {
	args := m.Called(roomId)
	return args.Error(0)
}
