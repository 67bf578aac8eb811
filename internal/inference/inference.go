// Package inference talks to the WiFi fingerprint classifier service that
// decides whether a scan was captured inside a room.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/geoping/geoping-server/internal/types"
)

var (
	ErrUnavailable = errors.New("inference service unavailable")
	ErrTimeout     = errors.New("inference request timed out")
)

// Verdict is the classifier's answer for a single scan.
type Verdict struct {
	Inside              bool    `json:"inside"`
	Confidence          float64 `json:"confidence"`
	ReconstructionError float64 `json:"reconstruction_error"`
	Threshold           float64 `json:"threshold"`
}

type Oracle interface {
	Infer(ctx context.Context, roomLabel string, scan []types.WifiNetwork) (Verdict, error)
}

type predictRequest struct {
	RoomLabel       string              `json:"room_label"`
	WifiScanResults []types.WifiNetwork `json:"wifi_scan_results"`
}

type predictResponse struct {
	Success             bool    `json:"success"`
	Inside              bool    `json:"inside"`
	Confidence          float64 `json:"confidence"`
	ReconstructionError float64 `json:"reconstruction_error"`
	Threshold           float64 `json:"threshold"`
	Error               string  `json:"error"`
}

type HTTPOracle struct {
	baseURL string
	client  *http.Client
}

func NewHTTPOracle(baseURL string, timeout time.Duration) *HTTPOracle {
	return &HTTPOracle{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (o *HTTPOracle) Infer(ctx context.Context, roomLabel string, scan []types.WifiNetwork) (Verdict, error) {
	body, err := json.Marshal(predictRequest{
		RoomLabel:       roomLabel,
		WifiScanResults: scan,
	})
	if err != nil {
		return Verdict{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return Verdict{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err) {
			return Verdict{}, ErrTimeout
		}
		return Verdict{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if !pr.Success {
		return Verdict{}, fmt.Errorf("%w: %s", ErrUnavailable, pr.Error)
	}

	return Verdict{
		Inside:              pr.Inside,
		Confidence:          pr.Confidence,
		ReconstructionError: pr.ReconstructionError,
		Threshold:           pr.Threshold,
	}, nil
}

func isClientTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
