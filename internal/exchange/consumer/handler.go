package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
	"github.com/Aivilo1308/interim365-sub000/internal/metrics"
)

type handler struct {
	events      EventsRepository
	store       DirectoryStore
	log         zerolog.Logger
	commitOnDLQ bool
}

func (h *handler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *handler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *handler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var env Envelope
		if err := json.Unmarshal(msg.Value, &env); err != nil {
			h.toDLQ(sess.Context(), msg, fmt.Sprintf("invalid_json: %v", err))
			if h.commitOnDLQ {
				sess.MarkMessage(msg, "")
			}
			continue
		}

		if ok := h.processEmployee(sess, msg, env); ok {
			sess.MarkMessage(msg, "")
		}
	}
	return nil
}

func (h *handler) processEmployee(sess sarama.ConsumerGroupSession, msg *sarama.ConsumerMessage, env Envelope) bool {
	ctx := sess.Context()

	if env.MessageID == uuid.Nil {
		h.toDLQ(ctx, msg, "missing required field message_id")
		return h.commitOnDLQ
	}

	if verr := validateEmployeePayload(env.Payload); verr != "" {
		h.toDLQ(ctx, msg, verr)
		return h.commitOnDLQ
	}

	exists, err := h.events.ExistsMessage(ctx, env.MessageID)
	if err != nil {
		h.toDLQ(ctx, msg, fmt.Sprintf("events.ExistsMessage: %v", err))
		return h.commitOnDLQ
	}

	if exists {
		h.log.Info().
			Str("message_id", env.MessageID.String()).
			Str("matricule", env.Payload.Matricule).
			Msg("duplicate message, skip (idempotency)")
		metrics.KelioFeedMessagesTotal.WithLabelValues("duplicate").Inc()
		return true
	}

	if err := h.events.InsertEvent(ctx, dto.FeedEvent{
		MessageID: env.MessageID,
		Topic:     msg.Topic,
		Partition: int(msg.Partition),
		Offset:    msg.Offset,
		Payload:   append([]byte(nil), msg.Value...),
	}); err != nil {
		h.toDLQ(ctx, msg, fmt.Sprintf("events.InsertEvent: %v", err))
		return h.commitOnDLQ
	}

	if _, err := h.store.Upsert(ctx, env.Payload.ToRecord(time.Now().UTC())); err != nil {
		h.toDLQ(ctx, msg, fmt.Sprintf("store.Upsert: %v", err))
		return h.commitOnDLQ
	}

	metrics.KelioFeedMessagesTotal.WithLabelValues("applied").Inc()
	h.log.Info().
		Str("matricule", dto.NormalizeMatricule(env.Payload.Matricule)).
		Str("message_id", env.MessageID.String()).
		Msg("feed update applied")

	return true
}

func (h *handler) toDLQ(ctx context.Context, msg *sarama.ConsumerMessage, reason string) {
	_ = h.events.InsertDLQ(ctx, dto.FeedDLQ{
		Topic:   msg.Topic,
		Key:     string(msg.Key),
		Payload: append([]byte(nil), msg.Value...),
		Error:   reason,
	})

	metrics.KelioFeedMessagesTotal.WithLabelValues("dlq").Inc()
	h.log.Warn().
		Str("topic", msg.Topic).
		Int32("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Str("reason", reason).
		Msg("message sent to DLQ")
}
