package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"

	"github.com/geoping/geoping-server/internal/auth"
	"github.com/geoping/geoping-server/internal/config"
	"github.com/geoping/geoping-server/internal/database"
	"github.com/geoping/geoping-server/internal/server"
	"github.com/geoping/geoping-server/internal/service"
)

type GeoPingApp struct {
	log            *log.Logger
	db             database.GeoPingRepository
	svc            *service.GeoPingService
	cs             *server.ChatServer
	tokenManager   *auth.TokenManager
	mux            *http.Server
	allowedOrigins []string
}

func NewGeoPingApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer,
	svc *service.GeoPingService, db database.GeoPingRepository, tm *auth.TokenManager, cfg *config.Config) *GeoPingApp {
	s := &GeoPingApp{
		log:            logger,
		db:             db,
		svc:            svc,
		cs:             cs,
		tokenManager:   tm,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("PUT /api/account", s.authMiddleware(s.updateAccount))

	mux.HandleFunc("POST /api/rooms", s.authMiddleware(s.createRoom))
	mux.HandleFunc("GET /api/rooms", s.authMiddleware(s.getRoom))
	mux.HandleFunc("DELETE /api/rooms", s.authMiddleware(s.deleteRoom))
	mux.HandleFunc("GET /api/rooms/search", s.authMiddleware(s.searchRooms))
	mux.HandleFunc("GET /api/rooms/mine", s.authMiddleware(s.myRooms))

	mux.HandleFunc("POST /api/subscriptions", s.authMiddleware(s.subscribe))
	mux.HandleFunc("GET /api/subscriptions", s.authMiddleware(s.getUsersSubscriptions))
	mux.HandleFunc("GET /api/subscriptions/pending", s.authMiddleware(s.pendingSubscriptions))
	mux.HandleFunc("POST /api/subscriptions/decide", s.authMiddleware(s.decideSubscription))
	mux.HandleFunc("POST /api/subscriptions/block", s.authMiddleware(s.blockSubscriber))

	mux.HandleFunc("POST /api/presence", s.authMiddleware(s.reportPresence))
	mux.HandleFunc("GET /api/presence", s.authMiddleware(s.presentUsers))
	mux.HandleFunc("GET /api/presence/rooms", s.authMiddleware(s.presentRooms))

	mux.HandleFunc("POST /api/conversations", s.authMiddleware(s.createConversation))
	mux.HandleFunc("GET /api/conversations", s.authMiddleware(s.getConversations))
	mux.HandleFunc("POST /api/messages", s.authMiddleware(s.sendMessage))
	mux.HandleFunc("GET /api/messages", s.authMiddleware(s.getMessages))

	mux.HandleFunc("POST /api/training/samples", s.authMiddleware(s.submitTrainingSample))
	mux.HandleFunc("GET /api/training/samples", s.authMiddleware(s.trainingStats))
	mux.HandleFunc("POST /api/training/complete", s.authMiddleware(s.completeTraining))

	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *GeoPingApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *GeoPingApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
