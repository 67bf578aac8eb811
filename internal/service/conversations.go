package service

import (
	"strings"

	"github.com/geoping/geoping-server/internal/database"
	"github.com/geoping/geoping-server/internal/server"
	"github.com/geoping/geoping-server/internal/types"
	"github.com/google/uuid"
)

const (
	maxTitleLength   = 200
	maxContentLength = 4000
	defaultPageSize  = 50
	maxPageSize      = 200

	defaultConversationTitle = "New conversation"
)

// CreateConversation opens a new conversation in a room and announces it on
// the room's channel. When the presence gate is enabled, the caller must have
// a live inside-verdict for the room.
func (s *GeoPingService) CreateConversation(userId int, roomId, title string) (types.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultConversationTitle
	}
	if len(title) > maxTitleLength {
		return types.Conversation{}, E(KindInvalidInput, "title must be at most 200 characters")
	}

	dbRoom, err := s.db.GetRoomByPublicId(roomId)
	if err != nil {
		return types.Conversation{}, dbErr(err, "room not found")
	}

	if err := s.requireMember(userId, dbRoom); err != nil {
		return types.Conversation{}, err
	}
	if err := s.requirePresence(userId, dbRoom.Id); err != nil {
		return types.Conversation{}, err
	}

	convo, err := s.db.CreateConversation(database.CreateConversationParams{
		PublicId:  uuid.NewString(),
		RoomId:    dbRoom.Id,
		CreatorId: userId,
		Title:     title,
	})
	if err != nil {
		return types.Conversation{}, dbErr(err, "room not found")
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		return types.Conversation{}, dbErr(err, "account not found")
	}

	wire := types.Conversation{
		ConversationId:  convo.PublicId,
		RoomId:          dbRoom.PublicId,
		Title:           convo.Title,
		CreatorId:       userId,
		CreatorUsername: user.Username,
		CreatedAt:       convo.CreatedAt,
	}

	s.pub.Publish(roomId, &server.ServerMessage{
		Notification: &server.Notification{
			NewConversation: &wire,
		},
	})

	return wire, nil
}

// ListConversations returns the room's conversations, newest first.
func (s *GeoPingService) ListConversations(userId int, roomId string) ([]types.Conversation, error) {
	dbRoom, err := s.db.GetRoomByPublicId(roomId)
	if err != nil {
		return nil, dbErr(err, "room not found")
	}

	if err := s.requireMember(userId, dbRoom); err != nil {
		return nil, err
	}

	dbConvos, err := s.db.ListConversations(dbRoom.Id)
	if err != nil {
		return nil, dbErr(err, "room not found")
	}

	convos := make([]types.Conversation, len(dbConvos))
	for i, c := range dbConvos {
		convos[i] = types.Conversation{
			ConversationId:  c.PublicId,
			RoomId:          dbRoom.PublicId,
			Title:           c.Title,
			CreatorId:       c.CreatorId,
			CreatorUsername: c.CreatorName,
			MessageCount:    c.Messages,
			CreatedAt:       c.CreatedAt,
		}
	}

	return convos, nil
}

// SendMessage appends a message to a conversation and announces it on the
// room's channel. Same membership and presence rules as CreateConversation.
func (s *GeoPingService) SendMessage(userId int, conversationId, content string) (types.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" || len(content) > maxContentLength {
		return types.Message{}, E(KindInvalidInput, "message content is required and must be at most 4000 characters")
	}

	convo, err := s.db.GetConversationByPublicId(conversationId)
	if err != nil {
		return types.Message{}, dbErr(err, "conversation not found")
	}

	dbRoom, err := s.db.GetRoomByPublicId(convo.RoomPublicId)
	if err != nil {
		return types.Message{}, dbErr(err, "room not found")
	}

	if err := s.requireMember(userId, dbRoom); err != nil {
		return types.Message{}, err
	}
	if err := s.requirePresence(userId, dbRoom.Id); err != nil {
		return types.Message{}, err
	}

	dbMsg, err := s.db.CreateMessage(convo.Id, userId, content)
	if err != nil {
		return types.Message{}, dbErr(err, "conversation not found")
	}

	wire := types.Message{
		Id:             dbMsg.Id,
		ConversationId: convo.PublicId,
		SenderId:       dbMsg.SenderId,
		SenderUsername: dbMsg.SenderName,
		Content:        dbMsg.Content,
		SentAt:         dbMsg.SentAt,
	}

	s.pub.Publish(convo.RoomPublicId, &server.ServerMessage{
		Notification: &server.Notification{
			NewMessage: &wire,
		},
	})

	return wire, nil
}

// ListMessages returns one page of a conversation in chronological order.
// Paging walks backwards from the newest message.
func (s *GeoPingService) ListMessages(userId int, conversationId string, limit, offset int) ([]types.Message, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		return nil, E(KindInvalidInput, "offset cannot be negative")
	}

	convo, err := s.db.GetConversationByPublicId(conversationId)
	if err != nil {
		return nil, dbErr(err, "conversation not found")
	}

	dbRoom, err := s.db.GetRoomByPublicId(convo.RoomPublicId)
	if err != nil {
		return nil, dbErr(err, "room not found")
	}

	if err := s.requireMember(userId, dbRoom); err != nil {
		return nil, err
	}

	dbMsgs, err := s.db.ListMessages(convo.Id, limit, offset)
	if err != nil {
		return nil, dbErr(err, "conversation not found")
	}

	// page is fetched newest first, flip it to chronological order
	messages := make([]types.Message, len(dbMsgs))
	for i, m := range dbMsgs {
		messages[len(dbMsgs)-1-i] = types.Message{
			Id:             m.Id,
			ConversationId: convo.PublicId,
			SenderId:       m.SenderId,
			SenderUsername: m.SenderName,
			Content:        m.Content,
			SentAt:         m.SentAt,
		}
	}

	return messages, nil
}

// requirePresence enforces the presence gate when it is enabled: the user
// must have an inside-verdict for the room no older than the list window.
func (s *GeoPingService) requirePresence(userId, roomId int) error {
	if !s.cfg.PresenceGateEnabled {
		return nil
	}

	present, err := s.db.IsUserPresent(userId, roomId, s.cfg.LivenessWindowList)
	if err != nil {
		return wrapErr(KindInternal, "internal server error", err)
	}
	if !present {
		return E(KindNotAuthorized, "presence in the room is required")
	}

	return nil
}
