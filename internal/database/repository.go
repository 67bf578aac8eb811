package database

import "time"

type GeoPingRepository interface {
	Ping() error

	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(id int) (User, error)
	GetAccountByUsername(username string) (User, error)
	UpdateAccount(params UpdateAccountParams) (User, error)

	CreateRoom(params CreateRoomParams) (Room, error)
	DeleteRoom(roomId, creatorId int) error
	GetRoomByPublicId(publicId string) (Room, error)
	SearchRooms(query string, limit int) ([]Room, error)
	ListRoomsByCreator(creatorId int) ([]Room, error)
	GetRoomSubscribers(roomId int, window time.Duration) ([]RoomSubscriber, error)

	CreateSubscription(userId, roomId int) (Subscription, error)
	GetSubscription(userId, roomId int) (Subscription, error)
	GetSubscriptionById(id int) (Subscription, error)
	ListPendingSubscriptions(roomId int) ([]PendingSubscription, error)
	ListSubscriptionsByUser(userId int) ([]Subscription, error)
	DecideSubscription(id int, approve bool) (bool, error)
	SetSubscriptionBlocked(roomId, userId int, blocked bool) (bool, error)

	UpsertPresence(userId, roomId int, isPresent bool, confidence float64) (time.Time, error)
	ListPresentUsers(roomId int, window time.Duration) ([]PresentUser, error)
	ListPresentRooms(userId int, window time.Duration) ([]PresentRoom, error)
	IsUserPresent(userId, roomId int, window time.Duration) (bool, error)

	CreateConversation(params CreateConversationParams) (Conversation, error)
	GetConversationByPublicId(publicId string) (Conversation, error)
	ListConversations(roomId int) ([]Conversation, error)
	CreateMessage(conversationId, senderId int, content string) (Message, error)
	ListMessages(conversationId, limit, offset int) ([]Message, error)

	InsertTrainingSample(params TrainingSampleParams) (int, error)
	CountTrainingSamples(roomLabel string) (int, error)
	MarkRoomTrained(roomId int) error
}
