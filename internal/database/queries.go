package database

import (
	"database/sql"
	"time"
)

func (db *PgGeoPingRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO users (username, email, password_hash, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, username, email, created_at",
		params.Username,
		params.Email,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.Email,
		&u.CreatedAt,
	)

	return u, mapError(err)
}

func (db *PgGeoPingRepository) GetAccountById(id int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, rooms_created_count, subscriptions_count, created_at "+
			"FROM users WHERE id = $1 LIMIT 1",
		id,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.RoomsCreated,
		&u.Subscriptions,
		&u.CreatedAt,
	)

	return u, err
}

func (db *PgGeoPingRepository) UpdateAccount(params UpdateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"UPDATE users SET username = $2, password_hash = $3 WHERE id = $1 "+
			"RETURNING id, username, email, rooms_created_count, subscriptions_count, created_at",
		params.UserId,
		params.Username,
		params.PasswordHash,
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.Email,
		&u.RoomsCreated,
		&u.Subscriptions,
		&u.CreatedAt,
	)

	return u, mapError(err)
}

func (db *PgGeoPingRepository) GetAccountByUsername(username string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, rooms_created_count, subscriptions_count, created_at "+
			"FROM users WHERE username = $1 LIMIT 1",
		username,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.RoomsCreated,
		&u.Subscriptions,
		&u.CreatedAt,
	)

	return u, err
}

// CreateRoom inserts the room, reserves a creation slot on the creator's
// counter and auto-subscribes the creator, all in one transaction. The
// conditional counter update serializes concurrent creates on the user row.
func (db *PgGeoPingRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.Exec(
		"UPDATE users SET rooms_created_count = rooms_created_count + 1 "+
			"WHERE id = $1 AND rooms_created_count < $2",
		params.CreatorId,
		params.MaxRooms,
	)
	if err != nil {
		return Room{}, mapError(err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrQuotaExceeded
		return Room{}, err
	}

	row := tx.QueryRow(
		"INSERT INTO rooms (room_id, room_name, wifi_ssid, access_code, creator_id, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) "+
			"RETURNING id, room_id, room_name, wifi_ssid, access_code, creator_id, model_trained, model_version, created_at",
		params.PublicId,
		params.Name,
		params.WifiSsid,
		params.AccessCode,
		params.CreatorId,
		time.Now().UTC(),
	)

	var room Room
	err = row.Scan(
		&room.Id,
		&room.PublicId,
		&room.Name,
		&room.WifiSsid,
		&room.AccessCode,
		&room.CreatorId,
		&room.ModelTrained,
		&room.ModelVersion,
		&room.CreatedAt,
	)
	if err != nil {
		err = mapError(err)
		return Room{}, err
	}

	_, err = tx.Exec(
		"INSERT INTO subscriptions (user_id, room_id, status, subscribed_at, approved_at) "+
			"VALUES ($1, $2, 'approved', $3, $3)",
		params.CreatorId,
		room.Id,
		time.Now().UTC(),
	)
	if err != nil {
		return Room{}, mapError(err)
	}

	if err = tx.Commit(); err != nil {
		return Room{}, err
	}

	room.Subscribers = 1
	return room, nil
}

// DeleteRoom removes the room (children cascade) and releases the creator's
// slot in the same transaction; the counter never drops below zero.
func (db *PgGeoPingRepository) DeleteRoom(roomId, creatorId int) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec("DELETE FROM rooms WHERE id = $1", roomId)
	if err != nil {
		return err
	}

	_, err = tx.Exec(
		"UPDATE users SET rooms_created_count = GREATEST(0, rooms_created_count - 1) WHERE id = $1",
		creatorId,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (db *PgGeoPingRepository) GetRoomByPublicId(publicId string) (Room, error) {
	row := db.conn.QueryRow(
		`SELECT r.id, r.room_id, r.room_name, r.wifi_ssid, r.access_code, r.creator_id,
			u.username, r.model_trained, r.model_version, r.last_trained_at, r.created_at,
			(SELECT COUNT(*) FROM subscriptions s WHERE s.room_id = r.id AND s.status = 'approved')
		FROM rooms r
		JOIN users u ON r.creator_id = u.id
		WHERE r.room_id = $1 LIMIT 1`,
		publicId,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.PublicId,
		&room.Name,
		&room.WifiSsid,
		&room.AccessCode,
		&room.CreatorId,
		&room.CreatorName,
		&room.ModelTrained,
		&room.ModelVersion,
		&room.LastTrainedAt,
		&room.CreatedAt,
		&room.Subscribers,
	)

	return room, err
}

func (db *PgGeoPingRepository) SearchRooms(query string, limit int) ([]Room, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.Query(
		`SELECT r.id, r.room_id, r.room_name, r.wifi_ssid, r.creator_id, u.username,
			r.model_trained, r.model_version, r.created_at,
			COUNT(DISTINCT s.user_id) FILTER (WHERE s.status = 'approved')
		FROM rooms r
		LEFT JOIN users u ON r.creator_id = u.id
		LEFT JOIN subscriptions s ON r.id = s.room_id
		WHERE LOWER(r.room_name) LIKE LOWER($1) OR LOWER(r.wifi_ssid) LIKE LOWER($1)
		GROUP BY r.id, u.username
		ORDER BY r.created_at DESC
		LIMIT $2`,
		"%"+query+"%",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var room Room
		if err = rows.Scan(
			&room.Id,
			&room.PublicId,
			&room.Name,
			&room.WifiSsid,
			&room.CreatorId,
			&room.CreatorName,
			&room.ModelTrained,
			&room.ModelVersion,
			&room.CreatedAt,
			&room.Subscribers,
		); err != nil {
			return nil, err
		}

		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

func (db *PgGeoPingRepository) ListRoomsByCreator(creatorId int) ([]Room, error) {
	rows, err := db.conn.Query(
		`SELECT r.id, r.room_id, r.room_name, r.wifi_ssid, r.access_code, r.creator_id,
			r.model_trained, r.model_version, r.last_trained_at, r.created_at,
			COUNT(DISTINCT s.user_id) FILTER (WHERE s.status = 'approved'),
			COUNT(DISTINCT s.user_id) FILTER (WHERE s.status = 'pending')
		FROM rooms r
		LEFT JOIN subscriptions s ON r.id = s.room_id
		WHERE r.creator_id = $1
		GROUP BY r.id
		ORDER BY r.created_at DESC`,
		creatorId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var room Room
		if err = rows.Scan(
			&room.Id,
			&room.PublicId,
			&room.Name,
			&room.WifiSsid,
			&room.AccessCode,
			&room.CreatorId,
			&room.ModelTrained,
			&room.ModelVersion,
			&room.LastTrainedAt,
			&room.CreatedAt,
			&room.Subscribers,
			&room.Pending,
		); err != nil {
			return nil, err
		}

		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

// GetRoomSubscribers lists every approved subscriber with an online flag
// derived from the presence table under the given liveness window.
func (db *PgGeoPingRepository) GetRoomSubscribers(roomId int, window time.Duration) ([]RoomSubscriber, error) {
	cutoff := time.Now().UTC().Add(-window)

	rows, err := db.conn.Query(
		`SELECT u.id, u.username, s.is_blocked,
			COALESCE(p.is_present = TRUE AND p.last_seen_at > $2, FALSE),
			COALESCE(p.confidence, 0),
			p.last_seen_at
		FROM subscriptions s
		JOIN users u ON s.user_id = u.id
		LEFT JOIN presence p ON p.user_id = u.id AND p.room_id = s.room_id
		WHERE s.room_id = $1 AND s.status = 'approved'
		ORDER BY 4 DESC, u.username ASC`,
		roomId,
		cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []RoomSubscriber
	for rows.Next() {
		var sub RoomSubscriber
		if err = rows.Scan(
			&sub.UserId,
			&sub.Username,
			&sub.IsBlocked,
			&sub.IsOnline,
			&sub.Confidence,
			&sub.LastSeenAt,
		); err != nil {
			return nil, err
		}

		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

func (db *PgGeoPingRepository) CreateSubscription(userId, roomId int) (Subscription, error) {
	res := db.conn.QueryRow(
		"INSERT INTO subscriptions (user_id, room_id, status, subscribed_at) "+
			"VALUES ($1, $2, 'pending', $3) RETURNING id, user_id, room_id, status, subscribed_at",
		userId,
		roomId,
		time.Now().UTC(),
	)

	var sub Subscription
	err := res.Scan(
		&sub.Id,
		&sub.UserId,
		&sub.RoomId,
		&sub.Status,
		&sub.SubscribedAt,
	)

	return sub, mapError(err)
}

func (db *PgGeoPingRepository) GetSubscription(userId, roomId int) (Subscription, error) {
	row := db.conn.QueryRow(
		"SELECT id, user_id, room_id, status, is_blocked, subscribed_at, approved_at "+
			"FROM subscriptions WHERE user_id = $1 AND room_id = $2 LIMIT 1",
		userId,
		roomId,
	)

	var sub Subscription
	err := row.Scan(
		&sub.Id,
		&sub.UserId,
		&sub.RoomId,
		&sub.Status,
		&sub.IsBlocked,
		&sub.SubscribedAt,
		&sub.ApprovedAt,
	)

	return sub, err
}

func (db *PgGeoPingRepository) GetSubscriptionById(id int) (Subscription, error) {
	row := db.conn.QueryRow(
		`SELECT s.id, s.user_id, s.room_id, r.room_id, r.room_name, r.creator_id, r.access_code,
			s.status, s.is_blocked, s.subscribed_at, s.approved_at
		FROM subscriptions s
		JOIN rooms r ON s.room_id = r.id
		WHERE s.id = $1 LIMIT 1`,
		id,
	)

	var sub Subscription
	err := row.Scan(
		&sub.Id,
		&sub.UserId,
		&sub.RoomId,
		&sub.RoomPublicId,
		&sub.RoomName,
		&sub.RoomCreator,
		&sub.AccessCode,
		&sub.Status,
		&sub.IsBlocked,
		&sub.SubscribedAt,
		&sub.ApprovedAt,
	)

	return sub, err
}

func (db *PgGeoPingRepository) ListPendingSubscriptions(roomId int) ([]PendingSubscription, error) {
	rows, err := db.conn.Query(
		`SELECT s.id, u.id, u.username, u.email, s.subscribed_at
		FROM subscriptions s
		JOIN users u ON s.user_id = u.id
		WHERE s.room_id = $1 AND s.status = 'pending'
		ORDER BY s.subscribed_at ASC`,
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []PendingSubscription
	for rows.Next() {
		var p PendingSubscription
		if err = rows.Scan(&p.Id, &p.UserId, &p.Username, &p.Email, &p.SubscribedAt); err != nil {
			return nil, err
		}

		pending = append(pending, p)
	}

	return pending, rows.Err()
}

func (db *PgGeoPingRepository) ListSubscriptionsByUser(userId int) ([]Subscription, error) {
	rows, err := db.conn.Query(
		`SELECT s.id, s.user_id, s.room_id, r.room_id, r.room_name, r.creator_id,
			s.status, s.is_blocked, s.subscribed_at, s.approved_at
		FROM subscriptions s
		JOIN rooms r ON s.room_id = r.id
		WHERE s.user_id = $1
		ORDER BY s.subscribed_at DESC`,
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		var sub Subscription
		if err = rows.Scan(
			&sub.Id,
			&sub.UserId,
			&sub.RoomId,
			&sub.RoomPublicId,
			&sub.RoomName,
			&sub.RoomCreator,
			&sub.Status,
			&sub.IsBlocked,
			&sub.SubscribedAt,
			&sub.ApprovedAt,
		); err != nil {
			return nil, err
		}

		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

// DecideSubscription flips a pending subscription to approved or rejected.
// The WHERE status = 'pending' clause makes concurrent decisions on the same
// row serialize: exactly one caller sees won == true. An approval commits the
// requester's subscription-slot increment in the same transaction.
func (db *PgGeoPingRepository) DecideSubscription(id int, approve bool) (won bool, err error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	newStatus := SubStatusRejected
	if approve {
		newStatus = SubStatusApproved
	}

	row := tx.QueryRow(
		"UPDATE subscriptions SET status = $2, approved_at = $3 "+
			"WHERE id = $1 AND status = 'pending' RETURNING user_id",
		id,
		newStatus,
		time.Now().UTC(),
	)

	var requesterId int
	if err = row.Scan(&requesterId); err != nil {
		if err == sql.ErrNoRows {
			err = tx.Commit()
			return false, err
		}
		return false, err
	}

	if approve {
		_, err = tx.Exec(
			"UPDATE users SET subscriptions_count = subscriptions_count + 1 WHERE id = $1",
			requesterId,
		)
		if err != nil {
			return false, err
		}
	}

	if err = tx.Commit(); err != nil {
		return false, err
	}

	return true, nil
}

// SetSubscriptionBlocked toggles the blocked flag on an approved
// subscription; returns false when no approved subscription exists.
func (db *PgGeoPingRepository) SetSubscriptionBlocked(roomId, userId int, blocked bool) (bool, error) {
	res, err := db.conn.Exec(
		"UPDATE subscriptions SET is_blocked = $3 "+
			"WHERE room_id = $1 AND user_id = $2 AND status = 'approved'",
		roomId,
		userId,
		blocked,
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

// UpsertPresence records the latest verdict for the (user, room) pair.
// Last write wins by arrival time; conflicting concurrent writes never fail.
func (db *PgGeoPingRepository) UpsertPresence(userId, roomId int, isPresent bool, confidence float64) (time.Time, error) {
	seenAt := time.Now().UTC()

	_, err := db.conn.Exec(
		`INSERT INTO presence (user_id, room_id, is_present, confidence, last_seen_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, room_id)
		DO UPDATE SET is_present = $3, confidence = $4, last_seen_at = $5`,
		userId,
		roomId,
		isPresent,
		confidence,
		seenAt,
	)

	return seenAt, err
}

func (db *PgGeoPingRepository) ListPresentUsers(roomId int, window time.Duration) ([]PresentUser, error) {
	cutoff := time.Now().UTC().Add(-window)

	rows, err := db.conn.Query(
		`SELECT p.user_id, u.username, p.confidence, p.last_seen_at
		FROM presence p
		JOIN users u ON p.user_id = u.id
		WHERE p.room_id = $1 AND p.is_present = TRUE AND p.last_seen_at > $2
		ORDER BY p.last_seen_at DESC`,
		roomId,
		cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []PresentUser
	for rows.Next() {
		var u PresentUser
		if err = rows.Scan(&u.UserId, &u.Username, &u.Confidence, &u.LastSeenAt); err != nil {
			return nil, err
		}

		users = append(users, u)
	}

	return users, rows.Err()
}

func (db *PgGeoPingRepository) ListPresentRooms(userId int, window time.Duration) ([]PresentRoom, error) {
	cutoff := time.Now().UTC().Add(-window)

	rows, err := db.conn.Query(
		`SELECT r.room_id, r.room_name, r.wifi_ssid, p.confidence, p.last_seen_at
		FROM presence p
		JOIN rooms r ON p.room_id = r.id
		WHERE p.user_id = $1 AND p.is_present = TRUE AND p.last_seen_at > $2
		ORDER BY p.last_seen_at DESC`,
		userId,
		cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []PresentRoom
	for rows.Next() {
		var r PresentRoom
		if err = rows.Scan(&r.RoomPublicId, &r.RoomName, &r.WifiSsid, &r.Confidence, &r.LastSeenAt); err != nil {
			return nil, err
		}

		rooms = append(rooms, r)
	}

	return rooms, rows.Err()
}

func (db *PgGeoPingRepository) IsUserPresent(userId, roomId int, window time.Duration) (bool, error) {
	cutoff := time.Now().UTC().Add(-window)

	row := db.conn.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM presence WHERE user_id = $1 AND room_id = $2 "+
			"AND is_present = TRUE AND last_seen_at > $3)",
		userId,
		roomId,
		cutoff,
	)

	var present bool
	err := row.Scan(&present)
	return present, err
}

func (db *PgGeoPingRepository) CreateConversation(params CreateConversationParams) (Conversation, error) {
	res := db.conn.QueryRow(
		"INSERT INTO conversations (conversation_id, room_id, creator_id, title, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, conversation_id, room_id, creator_id, title, created_at",
		params.PublicId,
		params.RoomId,
		params.CreatorId,
		params.Title,
		time.Now().UTC(),
	)

	var convo Conversation
	err := res.Scan(
		&convo.Id,
		&convo.PublicId,
		&convo.RoomId,
		&convo.CreatorId,
		&convo.Title,
		&convo.CreatedAt,
	)

	return convo, mapError(err)
}

func (db *PgGeoPingRepository) GetConversationByPublicId(publicId string) (Conversation, error) {
	row := db.conn.QueryRow(
		`SELECT c.id, c.conversation_id, c.room_id, r.room_id, c.creator_id, u.username, c.title, c.created_at
		FROM conversations c
		JOIN rooms r ON c.room_id = r.id
		JOIN users u ON c.creator_id = u.id
		WHERE c.conversation_id = $1 LIMIT 1`,
		publicId,
	)

	var convo Conversation
	err := row.Scan(
		&convo.Id,
		&convo.PublicId,
		&convo.RoomId,
		&convo.RoomPublicId,
		&convo.CreatorId,
		&convo.CreatorName,
		&convo.Title,
		&convo.CreatedAt,
	)

	return convo, err
}

func (db *PgGeoPingRepository) ListConversations(roomId int) ([]Conversation, error) {
	rows, err := db.conn.Query(
		`SELECT c.id, c.conversation_id, c.room_id, c.creator_id, u.username, c.title,
			COUNT(m.id), c.created_at
		FROM conversations c
		JOIN users u ON c.creator_id = u.id
		LEFT JOIN messages m ON c.id = m.conversation_id
		WHERE c.room_id = $1
		GROUP BY c.id, u.username
		ORDER BY c.created_at DESC`,
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convos []Conversation
	for rows.Next() {
		var convo Conversation
		if err = rows.Scan(
			&convo.Id,
			&convo.PublicId,
			&convo.RoomId,
			&convo.CreatorId,
			&convo.CreatorName,
			&convo.Title,
			&convo.Messages,
			&convo.CreatedAt,
		); err != nil {
			return nil, err
		}

		convos = append(convos, convo)
	}

	return convos, rows.Err()
}

func (db *PgGeoPingRepository) CreateMessage(conversationId, senderId int, content string) (Message, error) {
	res := db.conn.QueryRow(
		`INSERT INTO messages (conversation_id, sender_id, content, sent_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, conversation_id, sender_id,
			(SELECT username FROM users WHERE id = $2), content, sent_at`,
		conversationId,
		senderId,
		content,
		time.Now().UTC(),
	)

	var msg Message
	err := res.Scan(
		&msg.Id,
		&msg.ConvoId,
		&msg.SenderId,
		&msg.SenderName,
		&msg.Content,
		&msg.SentAt,
	)

	return msg, err
}

// ListMessages returns the newest page first; ties on sent_at break by
// insertion order so callers can reverse into a strict chronological
// sequence.
func (db *PgGeoPingRepository) ListMessages(conversationId, limit, offset int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.Query(
		`SELECT m.id, m.conversation_id, m.sender_id, u.username, m.content, m.sent_at
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.conversation_id = $1
		ORDER BY m.sent_at DESC, m.id DESC
		LIMIT $2 OFFSET $3`,
		conversationId,
		limit,
		offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, limit)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.Id, &msg.ConvoId, &msg.SenderId, &msg.SenderName, &msg.Content, &msg.SentAt); err != nil {
			return nil, err
		}

		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (db *PgGeoPingRepository) InsertTrainingSample(params TrainingSampleParams) (int, error) {
	row := db.conn.QueryRow(
		"INSERT INTO wifi_training_data (room_label, device_id, wifi_fingerprint, scan_timestamp) "+
			"VALUES ($1, $2, $3, $4) RETURNING id",
		params.RoomLabel,
		params.DeviceId,
		params.Fingerprint,
		time.Now().UTC(),
	)

	var id int
	err := row.Scan(&id)
	return id, err
}

func (db *PgGeoPingRepository) CountTrainingSamples(roomLabel string) (int, error) {
	row := db.conn.QueryRow(
		"SELECT COUNT(*) FROM wifi_training_data WHERE room_label = $1",
		roomLabel,
	)

	var count int
	err := row.Scan(&count)
	return count, err
}

func (db *PgGeoPingRepository) MarkRoomTrained(roomId int) error {
	res, err := db.conn.Exec(
		"UPDATE rooms SET model_trained = TRUE, model_version = model_version + 1, last_trained_at = $2 "+
			"WHERE id = $1",
		roomId,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}

	return nil
}
