// Package service implements the room, subscription, presence and messaging
// rules on top of the repository, and pushes the resulting events to the
// realtime layer.
package service

import (
	"crypto/rand"
	"log"

	"github.com/geoping/geoping-server/internal/config"
	"github.com/geoping/geoping-server/internal/database"
	"github.com/geoping/geoping-server/internal/inference"
	"github.com/geoping/geoping-server/internal/server"
	"github.com/geoping/geoping-server/internal/stats"
	"github.com/teris-io/shortid"
)

const accessCodeLength = 8

// Publisher delivers events to clients currently joined to a room's channel.
// Delivery is best-effort; the database holds the durable copy.
type Publisher interface {
	Publish(roomId string, msg *server.ServerMessage)
	UnloadRoom(roomId string)
}

type GeoPingService struct {
	db     database.GeoPingRepository
	oracle inference.Oracle
	pub    Publisher
	stats  stats.StatsProvider
	cfg    *config.Config
	log    *log.Logger
}

func NewGeoPingService(logger *log.Logger, db database.GeoPingRepository, oracle inference.Oracle, pub Publisher, sp stats.StatsProvider, cfg *config.Config) *GeoPingService {
	return &GeoPingService{
		db:     db,
		oracle: oracle,
		pub:    pub,
		stats:  sp,
		cfg:    cfg,
		log:    logger,
	}
}

func newRoomId() (string, error) {
	id, err := shortid.Generate()
	if err != nil {
		return "", err
	}

	return "room_" + id, nil
}

const accessCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func newAccessCode() (string, error) {
	buf := make([]byte, accessCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	for i, b := range buf {
		buf[i] = accessCodeAlphabet[int(b)%len(accessCodeAlphabet)]
	}

	return string(buf), nil
}
