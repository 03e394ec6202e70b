package mocks

import "github.com/stretchr/testify/mock"

type Dispatcher struct {
	mock.Mock
}

func (m *Dispatcher) Dispatch(kind string, payload interface{}) {
	m.Called(kind, payload)
}

func (m *Dispatcher) Close() {
	m.Called()
}
