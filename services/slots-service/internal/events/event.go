package events

import (
	"context"
	"time"
)

// TopicSlotsGenerated is the default topic; the topic name equals the event type.
const TopicSlotsGenerated = "availability.slots.generated.v1"

// SlotsGenerated records one slot lookup and its outcome.
type SlotsGenerated struct {
	Tenant      string    `json:"tenant"`
	StaffID     string    `json:"staff_id"`
	LocationID  string    `json:"location_id"`
	Date        string    `json:"date"`
	SlotCount   int       `json:"slot_count"`
	Available   bool      `json:"available"`
	GeneratedAt time.Time `json:"generated_at"`
}

type Emitter interface {
	Emit(ctx context.Context, evt SlotsGenerated)
}

// Nop discards events; used when Kafka is not configured.
type Nop struct{}

func (Nop) Emit(context.Context, SlotsGenerated) {}
