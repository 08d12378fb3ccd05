package store

import (
	"encoding/json"
	"time"

	"ttlcache-api/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DisposalMessage is the WebSocket payload sent for every removed entry.
type DisposalMessage struct {
	Type      string          `json:"type"`
	Namespace string          `json:"namespace"`
	Key       string          `json:"key"`
	Reason    string          `json:"reason"`
	Value     json.RawMessage `json:"value,omitempty"`
	At        time.Time       `json:"at"`
}

// sink receives one removed entry.
type sink func(namespace, key string, value json.RawMessage, reason string, at time.Time)

func (s *Store) journalSink() sink {
	return func(namespace, key string, value json.RawMessage, reason string, at time.Time) {
		evt := models.DisposalEvent{
			ID:         uuid.NewString(),
			Namespace:  namespace,
			Key:        key,
			Reason:     reason,
			Value:      string(value),
			DisposedAt: at,
		}
		if err := s.db.Create(&evt).Error; err != nil {
			s.log.Warn("journal disposal",
				zap.String("namespace", namespace),
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}
}

func (s *Store) broadcastSink() sink {
	return func(namespace, key string, value json.RawMessage, reason string, at time.Time) {
		if s.hub.Subscribers(namespace) == 0 {
			return
		}
		msg := DisposalMessage{
			Type:      "disposed",
			Namespace: namespace,
			Key:       key,
			Reason:    reason,
			Value:     value,
			At:        at,
		}
		bytes, err := json.Marshal(msg)
		if err != nil {
			return
		}
		if _, failed := s.hub.Broadcast(namespace, bytes); failed > 0 && s.metrics != nil {
			s.metrics.RecordBroadcastFailures(namespace, failed)
		}
	}
}

func (s *Store) metricsSink() sink {
	return func(namespace, _ string, _ json.RawMessage, reason string, _ time.Time) {
		s.metrics.RecordDisposal(namespace, reason)
	}
}
