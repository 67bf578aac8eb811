package service

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/geoping/geoping-server/internal/database"
	"github.com/geoping/geoping-server/internal/types"
)

const (
	maxRoomNameLength = 100
	maxSsidLength     = 100
	searchLimit       = 20
)

// CreateRoom registers a new room backed by the given WiFi network and
// auto-subscribes the creator. The creator's quota and the SSID's uniqueness
// are both enforced in the creating transaction.
func (s *GeoPingService) CreateRoom(userId int, name, wifiSsid string) (types.Room, error) {
	name = strings.TrimSpace(name)
	wifiSsid = strings.TrimSpace(wifiSsid)

	if name == "" || len(name) > maxRoomNameLength {
		return types.Room{}, E(KindInvalidInput, "room name is required and must be at most 100 characters")
	}
	if wifiSsid == "" || len(wifiSsid) > maxSsidLength {
		return types.Room{}, E(KindInvalidInput, "wifi ssid is required and must be at most 100 characters")
	}

	publicId, err := newRoomId()
	if err != nil {
		return types.Room{}, wrapErr(KindInternal, "generate room id", err)
	}

	accessCode, err := newAccessCode()
	if err != nil {
		return types.Room{}, wrapErr(KindInternal, "generate access code", err)
	}

	dbRoom, err := s.db.CreateRoom(database.CreateRoomParams{
		PublicId:   publicId,
		Name:       name,
		WifiSsid:   wifiSsid,
		AccessCode: accessCode,
		CreatorId:  userId,
		MaxRooms:   s.cfg.MaxRoomsPerUser,
	})
	if err != nil {
		switch {
		case errors.Is(err, database.ErrQuotaExceeded):
			return types.Room{}, E(KindQuotaExceeded, "room creation limit reached")
		case errors.Is(err, database.ErrDuplicate):
			return types.Room{}, E(KindConflict, "a room already exists for this wifi network")
		default:
			return types.Room{}, dbErr(err, "room not found")
		}
	}

	s.log.Printf("user %d created room %q", userId, dbRoom.PublicId)

	room := roomToWire(dbRoom, true)
	return room, nil
}

// GetRoom returns the detail view of a room. Subscriber entries carry an
// online flag bounded by the detail liveness window; the access code is only
// visible to the creator.
func (s *GeoPingService) GetRoom(userId int, roomId string) (types.RoomDetail, error) {
	dbRoom, err := s.db.GetRoomByPublicId(roomId)
	if err != nil {
		return types.RoomDetail{}, dbErr(err, "room not found")
	}

	if err := s.requireMember(userId, dbRoom); err != nil {
		return types.RoomDetail{}, err
	}

	subs, err := s.db.GetRoomSubscribers(dbRoom.Id, s.cfg.LivenessWindowDetail)
	if err != nil {
		return types.RoomDetail{}, dbErr(err, "room not found")
	}

	detail := types.RoomDetail{
		Room:        roomToWire(dbRoom, userId == dbRoom.CreatorId),
		Subscribers: make([]types.RoomSubscriber, len(subs)),
	}
	for i, sub := range subs {
		detail.Subscribers[i] = types.RoomSubscriber{
			UserId:     sub.UserId,
			Username:   sub.Username,
			IsBlocked:  sub.IsBlocked,
			IsOnline:   sub.IsOnline,
			Confidence: sub.Confidence,
			LastSeenAt: sub.LastSeenAt,
		}
	}

	return detail, nil
}

// DeleteRoom removes a room and everything under it. Creator only. Clients
// joined to the room's channel are notified before the channel unloads.
func (s *GeoPingService) DeleteRoom(userId int, roomId string) error {
	dbRoom, err := s.db.GetRoomByPublicId(roomId)
	if err != nil {
		return dbErr(err, "room not found")
	}

	if dbRoom.CreatorId != userId {
		return E(KindNotAuthorized, "only the room creator can delete the room")
	}

	if err := s.db.DeleteRoom(dbRoom.Id, dbRoom.CreatorId); err != nil {
		return dbErr(err, "room not found")
	}

	s.log.Printf("user %d deleted room %q", userId, roomId)
	s.pub.UnloadRoom(roomId)

	return nil
}

// SearchRooms finds rooms by name or SSID fragment. Access codes are never
// included in search results.
func (s *GeoPingService) SearchRooms(query string) ([]types.Room, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, E(KindInvalidInput, "search query is required")
	}

	dbRooms, err := s.db.SearchRooms(query, searchLimit)
	if err != nil {
		return nil, dbErr(err, "room not found")
	}

	rooms := make([]types.Room, len(dbRooms))
	for i, r := range dbRooms {
		rooms[i] = roomToWire(r, false)
	}

	return rooms, nil
}

// MyRooms lists the rooms the user created, including pending-request counts
// and access codes.
func (s *GeoPingService) MyRooms(userId int) ([]types.Room, error) {
	dbRooms, err := s.db.ListRoomsByCreator(userId)
	if err != nil {
		return nil, dbErr(err, "room not found")
	}

	rooms := make([]types.Room, len(dbRooms))
	for i, r := range dbRooms {
		rooms[i] = roomToWire(r, true)
	}

	return rooms, nil
}

// requireMember checks the requester is the creator or an approved,
// unblocked subscriber of the room.
func (s *GeoPingService) requireMember(userId int, dbRoom database.Room) error {
	if userId == dbRoom.CreatorId {
		return nil
	}

	sub, err := s.db.GetSubscription(userId, dbRoom.Id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return E(KindNotAuthorized, "not subscribed to this room")
		}
		return wrapErr(KindInternal, "internal server error", err)
	}

	if sub.Status != database.SubStatusApproved {
		return E(KindNotAuthorized, "subscription is not approved")
	}
	if sub.IsBlocked {
		return E(KindNotAuthorized, "subscription is blocked")
	}

	return nil
}

func roomToWire(r database.Room, includeSecrets bool) types.Room {
	room := types.Room{
		Id:              r.Id,
		RoomId:          r.PublicId,
		Name:            r.Name,
		WifiSsid:        r.WifiSsid,
		CreatorId:       r.CreatorId,
		CreatorUsername: r.CreatorName,
		ModelTrained:    r.ModelTrained,
		ModelVersion:    r.ModelVersion,
		LastTrainedAt:   r.LastTrainedAt,
		SubscriberCount: r.Subscribers,
		CreatedAt:       r.CreatedAt,
	}

	if includeSecrets {
		room.AccessCode = r.AccessCode
		room.PendingCount = r.Pending
	}

	return room
}
