package api

import (
	"github.com/stretchr/testify/mock"
)

// MockBroker is a mock implementation of worker.Broker for testing.
type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) Enqueue(jobType string, payload interface{}) (string, error) {
	args := m.Called(jobType, payload)
	return args.String(0), args.Error(1)
}
