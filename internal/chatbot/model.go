package chatbot

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// State is the position of a user inside the scheduling dialogue.
type State string

const (
	StateInitial        State = "initial"
	StateAwaitingName   State = "awaiting_name"
	StateAwaitingDate   State = "awaiting_date"
	StateAwaitingPeriod State = "awaiting_period"
	StateFinalized      State = "finalized"
)

// Canonical period values stored on an appointment.
const (
	PeriodMorning   = "manhã"
	PeriodAfternoon = "tarde"
)

var (
	// ErrEmptyInput is returned when a message is blank or whitespace-only.
	ErrEmptyInput = errors.New("message must not be empty")

	// ErrUnreachableState signals a conversation carrying a state label
	// outside the known set. It is an invariant violation, never user input.
	ErrUnreachableState = errors.New("conversation in unreachable state")

	// ErrStoreFailure wraps any persistence collaborator failure.
	ErrStoreFailure = errors.New("store failure")

	// ErrNotFound is returned by stores when no row matches.
	ErrNotFound = errors.New("not found")
)

// Collected holds the fields gathered during the dialogue. Fields are filled
// incrementally; all three are set exactly when the conversation is finalized.
type Collected struct {
	Name   string `json:"name,omitempty"`
	Date   string `json:"date,omitempty"`
	Period string `json:"period,omitempty"`
}

// Complete reports whether every field required for an appointment is present.
func (c Collected) Complete() bool {
	return c.Name != "" && c.Date != "" && c.Period != ""
}

// Conversation is the per-user dialogue state, the aggregate keyed by UserID.
type Conversation struct {
	UserID    string    `json:"user_id" db:"user_id"`
	State     State     `json:"state" db:"state"`
	Collected Collected `json:"collected" db:"collected"`
}

// NewConversation returns a fresh conversation in the initial state.
func NewConversation(userID string) *Conversation {
	return &Conversation{UserID: userID, State: StateInitial}
}

// Reset returns the conversation to its initial form, dropping collected data.
func (c *Conversation) Reset() {
	c.State = StateInitial
	c.Collected = Collected{}
}

// Appointment is the record produced by a completed dialogue. The ID and
// CreatedAt are assigned by the store on save, never by the dialogue core.
type Appointment struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Date      string    `json:"date" db:"date"`
	Period    string    `json:"period" db:"period"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// HistoryEntry is one recorded turn of a conversation. Append-only.
type HistoryEntry struct {
	UserID      string    `json:"user_id" db:"user_id"`
	UserMessage string    `json:"user_message" db:"user_message"`
	BotReply    string    `json:"bot_reply" db:"bot_reply"`
	State       State     `json:"state" db:"state"`
	Timestamp   time.Time `json:"timestamp" db:"created_at"`
}

// Intent labels produced by the classifier.
type Intent string

const (
	IntentGreeting Intent = "greeting"
	IntentFarewell Intent = "farewell"
	IntentStart    Intent = "start"
	IntentHelp     Intent = "help"
	IntentDate     Intent = "date"
	IntentUnknown  Intent = "unknown"
)

// IntentResult is the classifier's verdict for one message. Confidence is
// informational only; branching is driven by the Intent label itself.
type IntentResult struct {
	Intent          Intent
	Confidence      float64
	SuggestedReply  string
	ExtractedDate   string
	ExtractedPeriod string
}

// Stats aggregates the appointment book for the dashboard endpoints.
type Stats struct {
	TotalAppointments int            `json:"total_appointments"`
	ByPeriod          map[string]int `json:"by_period"`
	DistinctUsers     int            `json:"distinct_users"`
	Recent            []Appointment  `json:"recent"`
}
