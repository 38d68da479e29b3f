package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"chat-core/internal/mocks"
)

func TestEmitPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "audit.chat", "chat-core", "test", zap.NewNop())

	publisher.On("Publish", mock.Anything, "audit.chat", mock.MatchedBy(func(ev any) bool {
		env, ok := ev.(AuditEnvelope)
		if !ok {
			return false
		}
		if _, err := time.Parse(time.RFC3339Nano, env.OccurredAt); err != nil {
			return false
		}
		return env.SchemaVersion == 1 &&
			env.EventType == "audit_log" &&
			env.Service == "chat-core" &&
			env.Environment == "test" &&
			env.RequestID == "req-9" &&
			env.UserID != nil && *env.UserID == "42" &&
			env.Payload.Level == "WARN" &&
			env.Payload.Text == "presence drift"
	})).Return(nil).Once()

	userID := int64(42)
	emitter.Emit(context.Background(), "WARN", "presence drift", "req-9", &userID)

	publisher.AssertExpectations(t)
}

func TestEmitAnonymousUser(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "audit.chat", "chat-core", "test", zap.NewNop())

	publisher.On("Publish", mock.Anything, "audit.chat", mock.MatchedBy(func(ev any) bool {
		env, ok := ev.(AuditEnvelope)
		return ok && env.UserID == nil
	})).Return(nil).Once()

	emitter.Emit(context.Background(), "INFO", "anonymous action", "req-1", nil)

	publisher.AssertExpectations(t)
}

func TestEmitSwallowsPublishFailure(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "audit.chat", "chat-core", "test", zap.NewNop())

	publisher.On("Publish", mock.Anything, "audit.chat", mock.Anything).
		Return(assert.AnError).Once()

	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "ERROR", "broker down", "req-2", nil)
	})
	publisher.AssertExpectations(t)
}

func TestEmitWithoutPublisherIsNoop(t *testing.T) {
	emitter := NewAuditEmitter(nil, "audit.chat", "chat-core", "test", zap.NewNop())

	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "INFO", "no broker", "req-3", nil)
	})
}
