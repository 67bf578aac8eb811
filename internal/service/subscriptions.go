package service

import (
	"database/sql"
	"errors"

	"github.com/geoping/geoping-server/internal/database"
	"github.com/geoping/geoping-server/internal/types"
)

// Subscribe files a pending subscription request for a room. The requester's
// subscription quota must have headroom; the slot itself is only consumed if
// the creator approves, and the room's access code is only released then.
func (s *GeoPingService) Subscribe(userId int, roomId string) (types.Subscription, error) {
	dbRoom, err := s.db.GetRoomByPublicId(roomId)
	if err != nil {
		return types.Subscription{}, dbErr(err, "room not found")
	}

	// An existing request of any status wins over every other failure.
	if _, err := s.db.GetSubscription(userId, dbRoom.Id); err == nil {
		return types.Subscription{}, E(KindConflict, "subscription already exists for this room")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return types.Subscription{}, dbErr(err, "room not found")
	}

	if dbRoom.CreatorId == userId {
		return types.Subscription{}, E(KindInvalidInput, "you are the creator of this room")
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		return types.Subscription{}, dbErr(err, "account not found")
	}
	if user.Subscriptions >= s.cfg.MaxSubscriptionsPerUser {
		return types.Subscription{}, E(KindQuotaExceeded, "subscription limit reached")
	}

	sub, err := s.db.CreateSubscription(userId, dbRoom.Id)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return types.Subscription{}, E(KindConflict, "subscription already exists for this room")
		}
		return types.Subscription{}, dbErr(err, "room not found")
	}

	s.log.Printf("user %d requested subscription %d to room %q", userId, sub.Id, roomId)

	return types.Subscription{
		Id:           sub.Id,
		RoomId:       dbRoom.PublicId,
		RoomName:     dbRoom.Name,
		Status:       sub.Status,
		SubscribedAt: sub.SubscribedAt,
	}, nil
}

// ListSubscriptions returns every subscription of the user, newest first,
// regardless of status.
func (s *GeoPingService) ListSubscriptions(userId int) ([]types.Subscription, error) {
	dbSubs, err := s.db.ListSubscriptionsByUser(userId)
	if err != nil {
		return nil, dbErr(err, "account not found")
	}

	subs := make([]types.Subscription, len(dbSubs))
	for i, sub := range dbSubs {
		subs[i] = types.Subscription{
			Id:           sub.Id,
			RoomId:       sub.RoomPublicId,
			RoomName:     sub.RoomName,
			Status:       sub.Status,
			IsBlocked:    sub.IsBlocked,
			SubscribedAt: sub.SubscribedAt,
			ApprovedAt:   sub.ApprovedAt,
		}
	}

	return subs, nil
}

// PendingSubscriptions lists the open requests on a room, oldest first.
// Creator only.
func (s *GeoPingService) PendingSubscriptions(userId int, roomId string) ([]types.PendingSubscription, error) {
	dbRoom, err := s.db.GetRoomByPublicId(roomId)
	if err != nil {
		return nil, dbErr(err, "room not found")
	}

	if dbRoom.CreatorId != userId {
		return nil, E(KindNotAuthorized, "only the room creator can view pending requests")
	}

	dbPending, err := s.db.ListPendingSubscriptions(dbRoom.Id)
	if err != nil {
		return nil, dbErr(err, "room not found")
	}

	pending := make([]types.PendingSubscription, len(dbPending))
	for i, p := range dbPending {
		pending[i] = types.PendingSubscription{
			Id:           p.Id,
			UserId:       p.UserId,
			Username:     p.Username,
			Email:        p.Email,
			SubscribedAt: p.SubscribedAt,
		}
	}

	return pending, nil
}

// Decide approves or rejects a pending subscription. Only the room creator
// may decide, and each request is decided exactly once: a concurrent decision
// on the same request surfaces as a conflict for the loser. Approval releases
// the room's access code to the requester.
func (s *GeoPingService) Decide(userId, subscriptionId int, approve bool) (string, error) {
	sub, err := s.db.GetSubscriptionById(subscriptionId)
	if err != nil {
		return "", dbErr(err, "subscription not found")
	}

	if sub.RoomCreator != userId {
		return "", E(KindNotAuthorized, "only the room creator can decide subscription requests")
	}
	if sub.Status != database.SubStatusPending {
		return "", E(KindConflict, "subscription request already decided")
	}

	won, err := s.db.DecideSubscription(subscriptionId, approve)
	if err != nil {
		return "", dbErr(err, "subscription not found")
	}
	if !won {
		return "", E(KindConflict, "subscription request already decided")
	}

	s.log.Printf("user %d decided subscription %d (approve=%t)", userId, subscriptionId, approve)

	if !approve {
		return "", nil
	}

	return sub.AccessCode, nil
}

// SetBlocked toggles the blocked flag on an approved subscription. Creator
// only; blocking silences the member without revoking the subscription.
func (s *GeoPingService) SetBlocked(userId int, roomId string, targetUserId int, blocked bool) error {
	dbRoom, err := s.db.GetRoomByPublicId(roomId)
	if err != nil {
		return dbErr(err, "room not found")
	}

	if dbRoom.CreatorId != userId {
		return E(KindNotAuthorized, "only the room creator can block members")
	}
	if targetUserId == userId {
		return E(KindInvalidInput, "cannot block yourself")
	}

	ok, err := s.db.SetSubscriptionBlocked(dbRoom.Id, targetUserId, blocked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return E(KindNotFound, "no approved subscription for this member")
		}
		return wrapErr(KindInternal, "internal server error", err)
	}
	if !ok {
		return E(KindNotFound, "no approved subscription for this member")
	}

	s.log.Printf("user %d set blocked=%t for user %d in room %q", userId, blocked, targetUserId, roomId)
	return nil
}
