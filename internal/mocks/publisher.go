package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-relay/internal/observability"
)

// LifecyclePublisherMock stands in for the process-wide lifecycle publisher
// installed with observability.SetPublisher.
type LifecyclePublisherMock struct {
	mock.Mock
}

func (m *LifecyclePublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	return m.Called(ctx, routingKey, event).Error(0)
}

// Envelopes returns the lifecycle envelopes published so far, in order.
func (m *LifecyclePublisherMock) Envelopes() []observability.EventEnvelope {
	var out []observability.EventEnvelope
	for _, call := range m.Calls {
		if call.Method != "Publish" {
			continue
		}
		if env, ok := call.Arguments.Get(2).(observability.EventEnvelope); ok {
			out = append(out, env)
		}
	}
	return out
}

var _ observability.Publisher = (*LifecyclePublisherMock)(nil)
