package combinedenergy

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockAPI is a mock implementation of the API interface for exercising the
// readings iterator without a live service.
type MockAPI struct {
	mock.Mock
}

var _ API = (*MockAPI)(nil)

func (m *MockAPI) Readings(ctx context.Context, rangeStart, rangeEnd time.Time, increment int) (*Readings, error) {
	args := m.Called(ctx, rangeStart, rangeEnd, increment)
	var readings *Readings
	if v := args.Get(0); v != nil {
		readings = v.(*Readings)
	}
	return readings, args.Error(1)
}

func (m *MockAPI) StartLogSession(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}
