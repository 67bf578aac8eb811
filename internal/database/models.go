package database

import "time"

const (
	SubStatusPending  = "pending"
	SubStatusApproved = "approved"
	SubStatusRejected = "rejected"
)

type User struct {
	Id            int
	Username      string
	Email         string
	PasswordHash  string
	RoomsCreated  int
	Subscriptions int
	CreatedAt     time.Time
}

type Room struct {
	Id            int
	PublicId      string
	Name          string
	WifiSsid      string
	AccessCode    string
	CreatorId     int
	CreatorName   string
	ModelTrained  bool
	ModelVersion  int
	LastTrainedAt *time.Time
	Subscribers   int
	Pending       int
	CreatedAt     time.Time
}

type Subscription struct {
	Id           int
	UserId       int
	RoomId       int
	RoomPublicId string
	RoomName     string
	RoomCreator  int
	AccessCode   string
	Status       string
	IsBlocked    bool
	SubscribedAt time.Time
	ApprovedAt   *time.Time
}

type PendingSubscription struct {
	Id           int
	UserId       int
	Username     string
	Email        string
	SubscribedAt time.Time
}

type RoomSubscriber struct {
	UserId     int
	Username   string
	IsBlocked  bool
	IsOnline   bool
	Confidence float64
	LastSeenAt *time.Time
}

type PresentUser struct {
	UserId     int
	Username   string
	Confidence float64
	LastSeenAt time.Time
}

type PresentRoom struct {
	RoomPublicId string
	RoomName     string
	WifiSsid     string
	Confidence   float64
	LastSeenAt   time.Time
}

type Conversation struct {
	Id           int
	PublicId     string
	RoomId       int
	RoomPublicId string
	CreatorId    int
	CreatorName  string
	Title        string
	Messages     int
	CreatedAt    time.Time
}

type Message struct {
	Id         int
	ConvoId    int
	SenderId   int
	SenderName string
	Content    string
	SentAt     time.Time
}

type CreateAccountParams struct {
	Username     string
	Email        string
	PasswordHash string
}

type UpdateAccountParams struct {
	UserId       int
	Username     string
	PasswordHash string
}

type CreateRoomParams struct {
	PublicId   string
	Name       string
	WifiSsid   string
	AccessCode string
	CreatorId  int
	// MaxRooms is the per-user creation cap enforced inside the creating
	// transaction.
	MaxRooms int
}

type CreateConversationParams struct {
	PublicId  string
	RoomId    int
	CreatorId int
	Title     string
}

type TrainingSampleParams struct {
	RoomLabel   string
	DeviceId    string
	Fingerprint []byte
}
