package service

import (
	"context"
	"errors"

	"github.com/geoping/geoping-server/internal/inference"
	"github.com/geoping/geoping-server/internal/server"
	"github.com/geoping/geoping-server/internal/stats"
	"github.com/geoping/geoping-server/internal/types"
)

// ReportPresence runs a WiFi scan through the classifier and records the
// verdict for the (user, room) pair. Verdicts overwrite each other by arrival
// order. Members joined to the room's channel see the flip as a presence
// event.
func (s *GeoPingService) ReportPresence(ctx context.Context, userId int, roomId string, scan []types.WifiNetwork) (types.PresenceVerdict, error) {
	if len(scan) == 0 {
		return types.PresenceVerdict{}, E(KindInvalidInput, "wifi scan results are required")
	}

	dbRoom, err := s.db.GetRoomByPublicId(roomId)
	if err != nil {
		return types.PresenceVerdict{}, dbErr(err, "room not found")
	}

	if err := s.requireMember(userId, dbRoom); err != nil {
		return types.PresenceVerdict{}, err
	}

	if !dbRoom.ModelTrained {
		return types.PresenceVerdict{}, E(KindInvalidInput, "room has no trained model")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.InferenceTimeout)
	defer cancel()

	verdict, err := s.oracle.Infer(ctx, dbRoom.WifiSsid, scan)
	if err != nil {
		switch {
		case errors.Is(err, inference.ErrTimeout):
			return types.PresenceVerdict{}, wrapErr(KindInferenceTimeout, "presence inference timed out", err)
		default:
			return types.PresenceVerdict{}, wrapErr(KindInferenceFailure, "presence inference failed", err)
		}
	}

	seenAt, err := s.db.UpsertPresence(userId, dbRoom.Id, verdict.Inside, verdict.Confidence)
	if err != nil {
		return types.PresenceVerdict{}, dbErr(err, "room not found")
	}

	s.stats.Incr(stats.PresenceUpdates)

	if verdict.Inside {
		if user, err := s.db.GetAccountById(userId); err == nil {
			s.pub.Publish(roomId, &server.ServerMessage{
				Notification: &server.Notification{
					Presence: &types.PresentUser{
						UserId:     userId,
						Username:   user.Username,
						Confidence: verdict.Confidence,
						LastSeenAt: seenAt,
					},
				},
			})
		}
	}

	return types.PresenceVerdict{
		RoomId:     roomId,
		Inside:     verdict.Inside,
		Confidence: verdict.Confidence,
		LastSeenAt: seenAt,
	}, nil
}

// PresentUsers lists the members currently considered inside the room, most
// recently seen first. A verdict older than the list window no longer counts.
func (s *GeoPingService) PresentUsers(userId int, roomId string) ([]types.PresentUser, error) {
	dbRoom, err := s.db.GetRoomByPublicId(roomId)
	if err != nil {
		return nil, dbErr(err, "room not found")
	}

	if err := s.requireMember(userId, dbRoom); err != nil {
		return nil, err
	}

	dbUsers, err := s.db.ListPresentUsers(dbRoom.Id, s.cfg.LivenessWindowList)
	if err != nil {
		return nil, dbErr(err, "room not found")
	}

	users := make([]types.PresentUser, len(dbUsers))
	for i, u := range dbUsers {
		users[i] = types.PresentUser{
			UserId:     u.UserId,
			Username:   u.Username,
			Confidence: u.Confidence,
			LastSeenAt: u.LastSeenAt,
		}
	}

	return users, nil
}

// PresentRooms lists the rooms the user is currently inside of.
func (s *GeoPingService) PresentRooms(userId int) ([]types.PresentRoom, error) {
	dbRooms, err := s.db.ListPresentRooms(userId, s.cfg.LivenessWindowList)
	if err != nil {
		return nil, dbErr(err, "account not found")
	}

	rooms := make([]types.PresentRoom, len(dbRooms))
	for i, r := range dbRooms {
		rooms[i] = types.PresentRoom{
			RoomId:     r.RoomPublicId,
			RoomName:   r.RoomName,
			WifiSsid:   r.WifiSsid,
			Confidence: r.Confidence,
			LastSeenAt: r.LastSeenAt,
		}
	}

	return rooms, nil
}
