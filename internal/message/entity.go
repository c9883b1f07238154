package message

type Kind string

const (
	KindMessage        Kind = "message"
	KindBroadcast      Kind = "broadcast"
	KindPlanSubmission Kind = "plan-submission"
	KindPlanReview     Kind = "plan-review"
	KindEscalation     Kind = "escalation"
)

const (
	// SenderUser identifies the human supervisor as a message sender.
	SenderUser = "user"
	// RecipientAll addresses a broadcast to every teammate.
	RecipientAll = "all"
)

// Message is append-only; it is never mutated after creation. Timestamps are
// fixed-width ISO-8601 strings, so lexical order equals chronological order.
type Message struct {
	ID        string `json:"id" yaml:"id"`
	From      string `json:"from" yaml:"from"`
	To        string `json:"to" yaml:"to"`
	Content   string `json:"content" yaml:"content"`
	Timestamp string `json:"timestamp" yaml:"timestamp"`
	Kind      Kind   `json:"kind" yaml:"kind"`
}

// ThreadKey returns the direction-insensitive conversation key for two
// participants: both (a,b) and (b,a) map to the same thread.
func ThreadKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// Thread returns the thread key of the message.
func (m Message) Thread() string {
	return ThreadKey(m.From, m.To)
}
