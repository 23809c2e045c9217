package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is written on every new row. Consumers reject versions they do not know.
const EnvelopeVersion = 1

const (
	SourceBuyer     = "buyer"
	SourceSeller    = "seller"
	SourceProcessor = "stripe"
)

// ActorRef identifies who caused the event. Processor events carry no user.
type ActorRef struct {
	UserID   *uuid.UUID `json:"userId,omitempty"`
	TenantID *uuid.UUID `json:"tenantId,omitempty"`
	Source   string     `json:"source"`
}

func BuyerActor(userID uuid.UUID) *ActorRef {
	return &ActorRef{UserID: &userID, Source: SourceBuyer}
}

func SellerActor(userID, tenantID uuid.UUID) *ActorRef {
	actor := &ActorRef{TenantID: &tenantID, Source: SourceSeller}
	if userID != uuid.Nil {
		actor.UserID = &userID
	}
	return actor
}

func ProcessorActor() *ActorRef {
	return &ActorRef{Source: SourceProcessor}
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and published as the message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

var (
	ErrEnvelopeVersion = errors.New("unsupported envelope version")
	ErrEnvelopeEmpty   = errors.New("envelope data missing")
)

// DecodeEnvelope parses a stored payload and checks the version and data presence.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Version < 1 || envelope.Version > EnvelopeVersion {
		return PayloadEnvelope{}, fmt.Errorf("%w: %d", ErrEnvelopeVersion, envelope.Version)
	}
	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return PayloadEnvelope{}, ErrEnvelopeEmpty
	}
	return envelope, nil
}
