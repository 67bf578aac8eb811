package inference

import (
	"context"

	"github.com/geoping/geoping-server/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) Infer(ctx context.Context, roomLabel string, scan []types.WifiNetwork) (Verdict, error) {
	args := m.Called(ctx, roomLabel, scan)
	return args.Get(0).(Verdict), args.Error(1)
}
