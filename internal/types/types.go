package types

import (
	"time"
)

type User struct {
	Id            int       `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email,omitempty"`
	RoomsCreated  int       `json:"rooms_created_count"`
	Subscriptions int       `json:"subscriptions_count"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

type Room struct {
	Id              int        `json:"-"`
	RoomId          string     `json:"room_id"`
	Name            string     `json:"room_name"`
	WifiSsid        string     `json:"wifi_ssid"`
	AccessCode      string     `json:"access_code,omitempty"`
	CreatorId       int        `json:"creator_id"`
	CreatorUsername string     `json:"creator_username,omitempty"`
	ModelTrained    bool       `json:"model_trained"`
	ModelVersion    int        `json:"model_version"`
	LastTrainedAt   *time.Time `json:"last_trained_at,omitempty"`
	SubscriberCount int        `json:"subscriber_count"`
	PendingCount    int        `json:"pending_count,omitempty"`
	CreatedAt       time.Time  `json:"created_at,omitempty"`
}

// RoomDetail is the management view of a room: the room itself plus
// every approved subscriber with a liveness-window online flag.
type RoomDetail struct {
	Room        Room             `json:"room"`
	Subscribers []RoomSubscriber `json:"subscribers"`
}

type RoomSubscriber struct {
	UserId     int        `json:"user_id"`
	Username   string     `json:"username"`
	IsBlocked  bool       `json:"is_blocked"`
	IsOnline   bool       `json:"is_online"`
	Confidence float64    `json:"confidence,omitempty"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

type Subscription struct {
	Id           int        `json:"id"`
	RoomId       string     `json:"room_id"`
	RoomName     string     `json:"room_name"`
	Status       string     `json:"status"`
	IsBlocked    bool       `json:"is_blocked"`
	SubscribedAt time.Time  `json:"subscribed_at"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
}

type PendingSubscription struct {
	Id           int       `json:"id"`
	UserId       int       `json:"user_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	SubscribedAt time.Time `json:"subscribed_at"`
}

// WifiNetwork is one entry of a live scan submitted for presence inference
// or training.
type WifiNetwork struct {
	Bssid string  `json:"bssid"`
	Ssid  string  `json:"ssid,omitempty"`
	Rssi  float64 `json:"rssi"`
}

// PresenceVerdict is the stored outcome of one inference round for a
// (user, room) pair.
type PresenceVerdict struct {
	RoomId     string    `json:"room_id"`
	Inside     bool      `json:"inside"`
	Confidence float64   `json:"confidence"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

type PresentUser struct {
	UserId     int       `json:"user_id"`
	Username   string    `json:"username"`
	Confidence float64   `json:"confidence"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

type PresentRoom struct {
	RoomId     string    `json:"room_id"`
	RoomName   string    `json:"room_name"`
	WifiSsid   string    `json:"wifi_ssid"`
	Confidence float64   `json:"confidence"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

type Conversation struct {
	ConversationId  string    `json:"conversation_id"`
	RoomId          string    `json:"room_id"`
	Title           string    `json:"title"`
	CreatorId       int       `json:"creator_id"`
	CreatorUsername string    `json:"creator_username"`
	MessageCount    int       `json:"message_count"`
	CreatedAt       time.Time `json:"created_at"`
}

type Message struct {
	Id             int       `json:"id"`
	ConversationId string    `json:"conversation_id"`
	SenderId       int       `json:"sender_id"`
	SenderUsername string    `json:"sender_username"`
	Content        string    `json:"content"`
	SentAt         time.Time `json:"sent_at"`
}

type TrainingStats struct {
	RoomLabel   string `json:"room_label"`
	SampleCount int    `json:"sample_count"`
	MinRequired int    `json:"min_required"`
	CanTrain    bool   `json:"can_train"`
}
