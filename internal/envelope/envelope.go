package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// TimestampLayout is the fixed-width ISO-8601 format used on the wire.
// Fixed width makes lexical comparison equal to chronological comparison.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Now returns the current UTC time in the wire format.
func Now() string {
	return time.Now().UTC().Format(TimestampLayout)
}

// NewID returns a fresh ULID string.
func NewID() string {
	return ulid.Make().String()
}

// Kind tags an envelope. The kind space is closed and partitioned by a
// namespace prefix; classification never inspects payloads.
type Kind string

const (
	KindTeamUpdated          Kind = "team:updated"
	KindTeamError            Kind = "team:error"
	KindTeammateSpawned      Kind = "teammate:spawned"
	KindTeammateStatus       Kind = "teammate:status"
	KindTaskCreated          Kind = "task:created"
	KindTaskUpdated          Kind = "task:updated"
	KindMessagePosted        Kind = "message:posted"
	KindActivityLogged       Kind = "activity:logged"
	KindCostUsage            Kind = "cost:usage"
	KindQualityGateStarted   Kind = "quality-gate:started"
	KindQualityGateResult    Kind = "quality-gate:result"
	KindIntegrationStarted   Kind = "integration:started"
	KindIntegrationResult    Kind = "integration:result"
	KindYoloPhaseChanged     Kind = "yolo:phase-changed"
	KindYoloPaused           Kind = "yolo:paused"
	KindYoloResumed          Kind = "yolo:resumed"
	KindYoloAborted          Kind = "yolo:aborted"
	KindYoloProposalCreated  Kind = "yolo:proposal-created"
	KindYoloProposalResolved Kind = "yolo:proposal-resolved"
	KindHeartbeatBatch       Kind = "heartbeat:batch"
)

const (
	prefixTeam        = "team:"
	prefixTeammate    = "teammate:"
	prefixTask        = "task:"
	prefixMessage     = "message:"
	prefixActivity    = "activity:"
	prefixCost        = "cost:"
	prefixQualityGate = "quality-gate:"
	prefixIntegration = "integration:"
	prefixYolo        = "yolo:"
	prefixHeartbeat   = "heartbeat:"
)

// IsTeammateKind reports whether k carries a teammate event.
func (k Kind) IsTeammateKind() bool { return strings.HasPrefix(string(k), prefixTeammate) }

// IsTaskKind reports whether k carries a task event.
func (k Kind) IsTaskKind() bool { return strings.HasPrefix(string(k), prefixTask) }

// IsMessageKind reports whether k carries a message event.
func (k Kind) IsMessageKind() bool { return strings.HasPrefix(string(k), prefixMessage) }

// IsLifecycleKind reports whether k carries a team or run lifecycle event.
func (k Kind) IsLifecycleKind() bool {
	return strings.HasPrefix(string(k), prefixTeam) || strings.HasPrefix(string(k), prefixYolo)
}

// Known reports whether k belongs to the closed kind set.
func (k Kind) Known() bool {
	_, ok := payloadFactories[k]
	return ok
}

// ErrUnknownKind marks an envelope whose kind is outside the closed set.
// Receivers log it and drop the envelope; it never propagates as a state
// error.
var ErrUnknownKind = errors.New("unknown envelope kind")

// Envelope is the wire-level unit exchanged between agents/orchestrator and
// the coordination layer. Seq is optional; zero means unset. When present it
// increases monotonically within one team's stream.
type Envelope struct {
	ID        string          `json:"id,omitempty"`
	Kind      Kind            `json:"kind"`
	TeamID    string          `json:"teamId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp string          `json:"timestamp"`
	Seq       int64           `json:"sequence,omitempty"`
}

// New builds an envelope around the given payload, stamping a ULID and the
// current wire timestamp.
func New(kind Kind, teamID string, payload any) (*Envelope, error) {
	if !kind.Known() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
		}
		raw = data
	}
	return &Envelope{
		ID:        NewID(),
		Kind:      kind,
		TeamID:    teamID,
		Payload:   raw,
		Timestamp: Now(),
	}, nil
}

// Decode parses raw JSON into an envelope and validates the kind tag.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	if !env.Kind.Known() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
	return &env, nil
}
