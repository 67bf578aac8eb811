package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geoping/geoping-server/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfer(t *testing.T) {
	scan := []types.WifiNetwork{
		{Bssid: "aa:bb:cc:dd:ee:01", Ssid: "office-wifi", Rssi: -48},
		{Bssid: "aa:bb:cc:dd:ee:02", Ssid: "office-guest", Rssi: -71},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)

		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "office", req.RoomLabel)
		assert.Len(t, req.WifiScanResults, 2)

		json.NewEncoder(w).Encode(predictResponse{
			Success:             true,
			Inside:              true,
			Confidence:          0.93,
			ReconstructionError: 0.017,
			Threshold:           0.05,
		})
	}))
	defer srv.Close()

	oracle := NewHTTPOracle(srv.URL, time.Second)
	verdict, err := oracle.Infer(context.Background(), "office", scan)
	require.NoError(t, err)

	assert.True(t, verdict.Inside)
	assert.Equal(t, 0.93, verdict.Confidence)
	assert.Equal(t, 0.017, verdict.ReconstructionError)
	assert.Equal(t, 0.05, verdict.Threshold)
}

func TestInfer_ClassifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(predictResponse{
			Success: false,
			Error:   "no model found for room",
		})
	}))
	defer srv.Close()

	oracle := NewHTTPOracle(srv.URL, time.Second)
	_, err := oracle.Infer(context.Background(), "office", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "no model found for room")
}

func TestInfer_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	oracle := NewHTTPOracle(srv.URL, time.Second)
	_, err := oracle.Infer(context.Background(), "office", nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestInfer_Timeout(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-done
	}))
	defer func() {
		close(done)
		srv.Close()
	}()

	oracle := NewHTTPOracle(srv.URL, 50*time.Millisecond)
	_, err := oracle.Infer(context.Background(), "office", nil)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestInfer_Unreachable(t *testing.T) {
	oracle := NewHTTPOracle("http://127.0.0.1:1", time.Second)
	_, err := oracle.Infer(context.Background(), "office", nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}
