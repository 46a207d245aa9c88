package chatbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// AppointmentStore persists finalized appointments. Save assigns the record
// ID and creation timestamp.
type AppointmentStore interface {
	Save(ctx context.Context, a *Appointment) error
	ListAll(ctx context.Context) ([]Appointment, error)
	ListByUser(ctx context.Context, userID string) ([]Appointment, error)
	Stats(ctx context.Context) (*Stats, error)
}

// ConversationStore persists per-user dialogue state.
type ConversationStore interface {
	SaveState(ctx context.Context, conv *Conversation) error
	LoadState(ctx context.Context, userID string) (*Conversation, error)
	DeleteState(ctx context.Context, userID string) error
}

// HistoryStore records one entry per processed turn, append-only.
type HistoryStore interface {
	Append(ctx context.Context, entry HistoryEntry) error
	ListByUser(ctx context.Context, userID string) ([]HistoryEntry, error)
}

// TurnResult is what one processed message yields.
type TurnResult struct {
	Reply string
	State State
}

type Service interface {
	HandleMessage(ctx context.Context, userID, message string) (*TurnResult, error)
	GetStatus(ctx context.Context, userID string) (*Conversation, error)
	ResetConversation(ctx context.Context, userID string) error
}

type service struct {
	classifier *Classifier
	machine    *Machine

	appointments  AppointmentStore
	conversations ConversationStore
	history       HistoryStore
	log           *slog.Logger

	mu     sync.Mutex
	active map[string]*Conversation
	locks  map[string]*sync.Mutex
}

func NewService(appointments AppointmentStore, conversations ConversationStore, history HistoryStore, log *slog.Logger) Service {
	classifier := NewClassifier()
	return &service{
		classifier:    classifier,
		machine:       NewMachine(classifier),
		appointments:  appointments,
		conversations: conversations,
		history:       history,
		log:           log,
		active:        make(map[string]*Conversation),
		locks:         make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex serializing all work for one user. Turns for
// different users proceed independently; turns for the same user never
// interleave their read-modify-write of the conversation.
func (s *service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// HandleMessage runs one full turn: load state, classify, short-circuit or
// advance, enhance, persist. State is saved before the history append so a
// crash mid-turn never leaves history pointing at an unapplied transition.
func (s *service) HandleMessage(ctx context.Context, userID, message string) (*TurnResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyInput
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	conv, err := s.loadConversation(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := s.classifier.Classify(message)

	var reply string
	if conv.State == StateInitial && result.SuggestedReply != "" && result.Intent != IntentStart {
		// Canned replies pre-empt the flow only before it has started.
		reply = result.SuggestedReply
	} else {
		transition, err := s.machine.Advance(conv, message, result)
		if err != nil {
			return nil, err
		}
		if transition.Appointment != nil {
			if err := s.appointments.Save(ctx, transition.Appointment); err != nil {
				return nil, fmt.Errorf("%w: save appointment: %v", ErrStoreFailure, err)
			}
			s.log.Info("appointment created",
				slog.String("user_id", userID),
				slog.String("appointment_id", transition.Appointment.ID.String()))
			reply = SuccessReply(*transition.Appointment)
		} else {
			reply = transition.Reply
		}
		// Mid-flow keyword hits are data, not intents: drop the canned
		// reply so enhancement stays cosmetic.
		result.SuggestedReply = ""
	}

	reply = s.classifier.EnhanceReply(reply, result)

	if err := s.conversations.SaveState(ctx, conv); err != nil {
		return nil, fmt.Errorf("%w: save conversation state: %v", ErrStoreFailure, err)
	}
	if err := s.history.Append(ctx, HistoryEntry{
		UserID:      userID,
		UserMessage: message,
		BotReply:    reply,
		State:       conv.State,
	}); err != nil {
		return nil, fmt.Errorf("%w: append history: %v", ErrStoreFailure, err)
	}

	return &TurnResult{Reply: reply, State: conv.State}, nil
}

// GetStatus returns the current conversation, creating it if the user is new.
func (s *service) GetStatus(ctx context.Context, userID string) (*Conversation, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	conv, err := s.loadConversation(ctx, userID)
	if err != nil {
		return nil, err
	}
	snapshot := *conv
	return &snapshot, nil
}

// ResetConversation returns the user to a fresh dialogue and removes the
// persisted state. History and appointments are untouched. Resetting an
// unknown user is a no-op success.
func (s *service) ResetConversation(ctx context.Context, userID string) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	if conv, ok := s.active[userID]; ok {
		conv.Reset()
	}
	s.mu.Unlock()

	if err := s.conversations.DeleteState(ctx, userID); err != nil {
		return fmt.Errorf("%w: delete conversation state: %v", ErrStoreFailure, err)
	}
	return nil
}

// loadConversation checks the active cache, then the store, then creates a
// fresh conversation. The result always ends up cached.
func (s *service) loadConversation(ctx context.Context, userID string) (*Conversation, error) {
	s.mu.Lock()
	conv, ok := s.active[userID]
	s.mu.Unlock()
	if ok {
		return conv, nil
	}

	conv, err := s.conversations.LoadState(ctx, userID)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		conv = NewConversation(userID)
	default:
		return nil, fmt.Errorf("%w: load conversation state: %v", ErrStoreFailure, err)
	}

	s.mu.Lock()
	s.active[userID] = conv
	s.mu.Unlock()
	return conv, nil
}
