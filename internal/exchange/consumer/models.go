package consumer

import (
	"time"

	"github.com/google/uuid"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
)

// Envelope — change-feed message as emitted by the Kelio gateway.
type Envelope struct {
	Kind      string               `json:"kind" example:"employee_changed"`
	MessageID uuid.UUID            `json:"message_id" example:"6b6f9c38-3e2a-4b3d-9a9a-9f1c0f8b2a10"`
	Payload   dto.ExternalEmployee `json:"payload"`
	Timestamp time.Time            `json:"timestamp" example:"2026-03-12T12:34:56Z"`
	Source    string               `json:"source" example:"kelio-gateway"`
}
