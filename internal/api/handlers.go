package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/geoping/geoping-server/internal/auth"
	"github.com/geoping/geoping-server/internal/database"
	"github.com/geoping/geoping-server/internal/server"
	"github.com/geoping/geoping-server/internal/types"
)

const minPasswordLength = 6

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

type UpdateAccountRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CreateRoomRequest struct {
	Name     string `json:"room_name"`
	WifiSsid string `json:"wifi_ssid"`
}

type SubscribeRequest struct {
	RoomId string `json:"room_id"`
}

type DecideRequest struct {
	SubscriptionId int  `json:"subscription_id"`
	Approve        bool `json:"approve"`
}

type DecideResponse struct {
	AccessCode string `json:"access_code,omitempty"`
}

type BlockRequest struct {
	RoomId  string `json:"room_id"`
	UserId  int    `json:"user_id"`
	Blocked bool   `json:"blocked"`
}

type PresenceReportRequest struct {
	RoomId   string              `json:"room_id"`
	WifiScan []types.WifiNetwork `json:"wifi_scan_results"`
}

type CreateConversationRequest struct {
	RoomId string `json:"room_id"`
	Title  string `json:"title"`
}

type SendMessageRequest struct {
	ConversationId string `json:"conversation_id"`
	Content        string `json:"content"`
}

type TrainingSampleRequest struct {
	RoomLabel string              `json:"room_label"`
	DeviceId  string              `json:"device_id"`
	WifiScan  []types.WifiNetwork `json:"wifi_scan_results"`
}

func (s *GeoPingApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *GeoPingApp) writeError(w http.ResponseWriter, errResp *ApiError) {
	if errResp.Err != nil {
		s.log.Printf("request failed: %v", errResp)
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

func userToWire(u database.User) types.User {
	return types.User{
		Id:            u.Id,
		Username:      u.Username,
		Email:         u.Email,
		RoomsCreated:  u.RoomsCreated,
		Subscriptions: u.Subscriptions,
		CreatedAt:     u.CreatedAt,
	}
}

func (s *GeoPingApp) createAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if req.Username == "" || req.Email == "" || len(req.Password) < minPasswordLength {
		s.writeError(w, NewBadRequestError())
		return
	}

	pwdHash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	newUser, err := s.db.CreateAccount(database.CreateAccountParams{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: pwdHash,
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			s.writeError(w, NewConflictError("username or email already registered"))
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, userToWire(newUser))
}

func (s *GeoPingApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if lr.Username == "" || lr.Password == "" {
		s.writeError(w, NewBadRequestError())
		return
	}

	dbUser, err := s.db.GetAccountByUsername(lr.Username)
	if err != nil {
		// same response for a missing account and a bad password
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, NewUnauthorizedError())
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	if !auth.VerifyPassword(dbUser.PasswordHash, lr.Password) {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	token, err := s.tokenManager.Generate(dbUser.Id, dbUser.Username)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, LoginResponse{
		Token: token,
		User:  userToWire(dbUser),
	})
}

func (s *GeoPingApp) session(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, NewNotFoundError())
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, userToWire(user))
}

func (s *GeoPingApp) updateAccount(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	var req UpdateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if req.Username == "" || len(req.Password) < minPasswordLength {
		s.writeError(w, NewBadRequestError())
		return
	}

	pwdHash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	user, err := s.db.UpdateAccount(database.UpdateAccountParams{
		UserId:       userId,
		Username:     req.Username,
		PasswordHash: pwdHash,
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			s.writeError(w, NewConflictError("username already taken"))
			return
		}
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, NewNotFoundError())
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, userToWire(user))
}

func (s *GeoPingApp) createRoom(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	room, err := s.svc.CreateRoom(userId, req.Name, req.WifiSsid)
	if err != nil {
		s.writeError(w, NewServiceError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, room)
}

func (s *GeoPingApp) getRoom(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	roomId := r.URL.Query().Get("id")
	if roomId == "" {
		s.writeError(w, NewBadRequestError())
		return
	}

	detail, err := s.svc.GetRoom(userId, roomId)
	if err != nil {
		s.writeError(w, NewServiceError(err))
		return
	}

	s.writeJson(w, http.StatusOK, detail)
}

func (s *GeoPingApp) deleteRoom(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	roomId := r.URL.Query().Get("id")
	if roomId == "" {
		s.writeError(w, NewBadRequestError())
		return
	}

	if err := s.svc.DeleteRoom(userId, roomId); err != nil {
		s.writeError(w, NewServiceError(err))
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *GeoPingApp) searchRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.svc.SearchRooms(r.URL.Query().Get("query"))
	if err != nil {
		s.writeError(w, NewServiceError(err))
		return
	}

	s.writeJson(w, http.StatusOK, rooms)
}

func (s *GeoPingApp) myRooms(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	rooms, err := s.svc.MyRooms(userId)
	if err != nil {
		s.writeError(w, NewServiceError(err))
		return
	}

	s.writeJson(w, http.StatusOK, rooms)
}

func (s *GeoPingApp) subscribe(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if req.RoomId == "" {
		s.writeError(w, NewBadRequestError())
		return
	}

	sub, err := s.svc.Subscribe(userId, req.RoomId)
	if err != nil {
		s.writeError(w, NewServiceError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, sub)
}

func (s *GeoPingApp) getUsersSubscriptions(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	subs, err := s.svc.ListSubscriptions(userId)
	if err != nil {
		s.writeError(w, NewServiceError(err))
		return
	}

	s.writeJson(w, http.StatusOK, subs)
}

func (s *GeoPingApp) pendingSubscriptions(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	roomId := r.URL.Query().Get("room_id")
	if roomId == "" {
		s.writeError(w, NewBadRequestError())
		return
	}

	pending, err := s.svc.PendingSubscriptions(userId, roomId)
	if err != nil {
		s.writeError(w, NewServiceError(err))
		return
	}

	s.writeJson(w, http.StatusOK, pending)
}

func (s *GeoPingApp) decideSubscription(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if req.SubscriptionId <= 0 {
		s.writeError(w, NewBadRequestError())
		return
	}

	accessCode, err := s.svc.Decide(userId, req.SubscriptionId, req.Approve)
	if err != nil {
		s.writeError(w, NewServiceError(err))
		return
	}

	s.writeJson(w, http.StatusOK, DecideResponse{AccessCode: accessCode})
}

func (s *GeoPingApp) blockSubscriber(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	var req BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if req.RoomId == "" || req.UserId <= 0 {
		s.writeError(w, NewBadRequestError())
		return
	}

	if err := s.svc.SetBlocked(userId, req.RoomId, req.UserId, req.Blocked); err != nil {
		s.writeError(w, NewServiceError(err))
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *GeoPingApp) reportPresence(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	var req PresenceReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if req.RoomId == "" {
		s.writeError(w, NewBadRequestError())
		return
	}

	verdict, err := s.svc.ReportPresence(r.Context(), userId, req.RoomId, req.WifiScan)
	if err != nil {
		s.writeError(w, NewServiceError(err))
		return
	}

	s.writeJson(w, http.StatusOK, verdict)
}

func (s *GeoPingApp) presentUsers(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	roomId := r.URL.Query().Get("room_id")
	if roomId == "" {
		s.writeError(w, NewBadRequestError())
		return
	}

	users, err := s.svc.PresentUsers(userId, roomId)
	if err != nil {
		s.writeError(w, NewServiceError(err))
		return
	}

	s.writeJson(w, http.StatusOK, users)
}

func (s *GeoPingApp) presentRooms(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	rooms, err := s.svc.PresentRooms(userId)
	if err != nil {
		s.writeError(w, NewServiceError(err))
		return
	}

	s.writeJson(w, http.StatusOK, rooms)
}

func (s *GeoPingApp) createConversation(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if req.RoomId == "" {
		s.writeError(w, NewBadRequestError())
		return
	}

	convo, err := s.svc.CreateConversation(userId, req.RoomId, req.Title)
	if err != nil {
		s.writeError(w, NewServiceError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, convo)
}

func (s *GeoPingApp) getConversations(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	roomId := r.URL.Query().Get("room_id")
	if roomId == "" {
		s.writeError(w, NewBadRequestError())
		return
	}

	convos, err := s.svc.ListConversations(userId, roomId)
	if err != nil {
		s.writeError(w, NewServiceError(err))
		return
	}

	s.writeJson(w, http.StatusOK, convos)
}

func (s *GeoPingApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if req.ConversationId == "" {
		s.writeError(w, NewBadRequestError())
		return
	}

	msg, err := s.svc.SendMessage(userId, req.ConversationId, req.Content)
	if err != nil {
		s.writeError(w, NewServiceError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, msg)
}

func (s *GeoPingApp) getMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	conversationId := r.URL.Query().Get("conversation_id")
	if conversationId == "" {
		s.writeError(w, NewBadRequestError())
		return
	}

	var limit, offset int
	var err error

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			s.writeError(w, NewBadRequestError())
			return
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			s.writeError(w, NewBadRequestError())
			return
		}
	}

	messages, err := s.svc.ListMessages(userId, conversationId, limit, offset)
	if err != nil {
		s.writeError(w, NewServiceError(err))
		return
	}

	s.writeJson(w, http.StatusOK, messages)
}

func (s *GeoPingApp) submitTrainingSample(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	var req TrainingSampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	progress, err := s.svc.SubmitTrainingSample(userId, req.RoomLabel, req.DeviceId, req.WifiScan)
	if err != nil {
		s.writeError(w, NewServiceError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, progress)
}

func (s *GeoPingApp) trainingStats(w http.ResponseWriter, r *http.Request) {
	roomLabel := r.URL.Query().Get("room_label")
	if roomLabel == "" {
		s.writeError(w, NewBadRequestError())
		return
	}

	progress, err := s.svc.TrainingStats(roomLabel)
	if err != nil {
		s.writeError(w, NewServiceError(err))
		return
	}

	s.writeJson(w, http.StatusOK, progress)
}

func (s *GeoPingApp) completeTraining(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	roomId := r.URL.Query().Get("room_id")
	if roomId == "" {
		s.writeError(w, NewBadRequestError())
		return
	}

	room, err := s.svc.CompleteTraining(userId, roomId)
	if err != nil {
		s.writeError(w, NewServiceError(err))
		return
	}

	s.writeJson(w, http.StatusOK, room)
}

// serveWs upgrades the connection and starts the client pumps. The socket
// itself is anonymous until the client sends an auth frame.
func (s *GeoPingApp) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(conn, s.cs, s.log)

	go client.Write()
	go client.Read()
}
