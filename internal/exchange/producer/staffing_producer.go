package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
)

// StaffingProducer publishes domain events for the out-of-scope
// notification and export collaborators. Publishing is best-effort
// from the caller's perspective: services log failures and move on.
type StaffingProducer struct {
	sp                 sarama.SyncProducer
	topicNotifications string
	topicSyncReports   string
	source             string
	log                zerolog.Logger
}

type Config struct {
	TopicNotifications string
	TopicSyncReports   string
	Source             string
}

func NewStaffingProducer(sp sarama.SyncProducer, cfg Config, log zerolog.Logger) *StaffingProducer {
	return &StaffingProducer{
		sp:                 sp,
		topicNotifications: cfg.TopicNotifications,
		topicSyncReports:   cfg.TopicSyncReports,
		source:             cfg.Source,
		log:                log.With().Str("component", "StaffingProducer").Logger(),
	}
}

func (p *StaffingProducer) Close() error {
	if p == nil || p.sp == nil {
		return nil
	}
	return p.sp.Close()
}

func (p *StaffingProducer) RequestStateChanged(ctx context.Context, req dto.StaffingRequest) error {
	env := Envelope[RequestStatePayload]{
		Kind:      "request_state_changed",
		MessageID: uuid.New(),
		Payload: RequestStatePayload{
			RequestID:    req.ID,
			Status:       string(req.Status),
			CurrentLevel: req.CurrentLevel,
			Urgency:      string(req.Urgency),
		},
		Timestamp: time.Now().UTC(),
		Source:    p.source,
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	return p.send(ctx, p.topicNotifications, strconv.FormatInt(req.ID, 10), body, map[string]string{
		"event-kind":   env.Kind,
		"source":       p.source,
		"content-type": "application/json",
	})
}

func (p *StaffingProducer) ProposalDecided(ctx context.Context, proposal dto.Proposal) error {
	env := Envelope[ProposalDecisionPayload]{
		Kind:      "proposal_decided",
		MessageID: uuid.New(),
		Payload: ProposalDecisionPayload{
			ProposalID: proposal.ID,
			RequestID:  proposal.RequestID,
			Matricule:  proposal.Matricule,
			Decision:   string(proposal.Decision),
			ScoreFinal: proposal.Score.Final,
			ReasonCode: proposal.ReasonCode,
		},
		Timestamp: time.Now().UTC(),
		Source:    p.source,
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	return p.send(ctx, p.topicNotifications, strconv.FormatInt(proposal.RequestID, 10), body, map[string]string{
		"event-kind":   env.Kind,
		"source":       p.source,
		"content-type": "application/json",
	})
}

func (p *StaffingProducer) SyncReport(ctx context.Context, result dto.SyncRunResult) error {
	env := Envelope[SyncReportPayload]{
		Kind:      "sync_report",
		MessageID: uuid.New(),
		Payload: SyncReportPayload{
			RunID:              result.RunID,
			Status:             string(result.Status),
			Processed:          result.Processed,
			Created:            result.Created,
			Updated:            result.Updated,
			DuplicatesResolved: result.DuplicatesResolved,
			BatchesFailed:      result.BatchesFailed,
			FailedMatricules:   result.FailedMatricules,
			ElapsedMS:          result.Elapsed.Milliseconds(),
		},
		Timestamp: time.Now().UTC(),
		Source:    p.source,
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	return p.send(ctx, p.topicSyncReports, result.RunID.String(), body, map[string]string{
		"event-kind": env.Kind,
		"source":     p.source,
	})
}

func (p *StaffingProducer) send(_ context.Context, topic, key string, value []byte, headers map[string]string) error {
	if p == nil || p.sp == nil {
		return errors.New("sync producer is not initialized")
	}

	var hs []sarama.RecordHeader
	for k, v := range headers {
		hs = append(hs, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(key),
		Value:   sarama.ByteEncoder(value),
		Headers: hs,
	}

	part, off, err := p.sp.SendMessage(msg)
	if err != nil {
		p.log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Int("bytes", len(value)).
			Msg("failed to send kafka message")
		return fmt.Errorf("send kafka message: %w", err)
	}

	p.log.Info().
		Str("topic", topic).
		Str("key", key).
		Int32("partition", part).
		Int64("offset", off).
		Int("bytes", len(value)).
		Msg("kafka message sent")
	return nil
}
