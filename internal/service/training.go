package service

import (
	"encoding/json"
	"strings"

	"github.com/geoping/geoping-server/internal/database"
	"github.com/geoping/geoping-server/internal/types"
)

// SubmitTrainingSample stores one labeled WiFi fingerprint for a room that is
// being trained. Returns the room's sample tally so clients can show
// collection progress.
func (s *GeoPingService) SubmitTrainingSample(userId int, roomLabel, deviceId string, scan []types.WifiNetwork) (types.TrainingStats, error) {
	roomLabel = strings.TrimSpace(roomLabel)
	if roomLabel == "" {
		return types.TrainingStats{}, E(KindInvalidInput, "room label is required")
	}
	deviceId = strings.TrimSpace(deviceId)
	if deviceId == "" {
		return types.TrainingStats{}, E(KindInvalidInput, "device id is required")
	}
	if len(scan) == 0 {
		return types.TrainingStats{}, E(KindInvalidInput, "wifi scan results are required")
	}
	for _, network := range scan {
		if network.Bssid == "" {
			return types.TrainingStats{}, E(KindInvalidInput, "every scanned network must have a bssid and rssi")
		}
	}

	fingerprint, err := json.Marshal(scan)
	if err != nil {
		return types.TrainingStats{}, wrapErr(KindInvalidInput, "invalid wifi scan results", err)
	}

	if _, err := s.db.InsertTrainingSample(database.TrainingSampleParams{
		RoomLabel:   roomLabel,
		DeviceId:    deviceId,
		Fingerprint: fingerprint,
	}); err != nil {
		return types.TrainingStats{}, dbErr(err, "room not found")
	}

	return s.TrainingStats(roomLabel)
}

// TrainingStats reports how many samples have been collected for a room
// label and whether training can start.
func (s *GeoPingService) TrainingStats(roomLabel string) (types.TrainingStats, error) {
	roomLabel = strings.TrimSpace(roomLabel)
	if roomLabel == "" {
		return types.TrainingStats{}, E(KindInvalidInput, "room label is required")
	}

	count, err := s.db.CountTrainingSamples(roomLabel)
	if err != nil {
		return types.TrainingStats{}, dbErr(err, "room not found")
	}

	return types.TrainingStats{
		RoomLabel:   roomLabel,
		SampleCount: count,
		MinRequired: s.cfg.MinTrainingSamples,
		CanTrain:    count >= s.cfg.MinTrainingSamples,
	}, nil
}

// CompleteTraining marks a room's model as trained, bumping the model
// version. Creator only, and the sample minimum must be met.
func (s *GeoPingService) CompleteTraining(userId int, roomId string) (types.Room, error) {
	dbRoom, err := s.db.GetRoomByPublicId(roomId)
	if err != nil {
		return types.Room{}, dbErr(err, "room not found")
	}

	if dbRoom.CreatorId != userId {
		return types.Room{}, E(KindNotAuthorized, "only the room creator can complete training")
	}

	count, err := s.db.CountTrainingSamples(dbRoom.WifiSsid)
	if err != nil {
		return types.Room{}, dbErr(err, "room not found")
	}
	if count < s.cfg.MinTrainingSamples {
		return types.Room{}, E(KindInvalidInput, "not enough training samples collected")
	}

	if err := s.db.MarkRoomTrained(dbRoom.Id); err != nil {
		return types.Room{}, dbErr(err, "room not found")
	}

	s.log.Printf("user %d completed training for room %q (%d samples)", userId, roomId, count)

	refreshed, err := s.db.GetRoomByPublicId(roomId)
	if err != nil {
		return types.Room{}, dbErr(err, "room not found")
	}

	return roomToWire(refreshed, true), nil
}
