package chatbot

import (
	"fmt"
	"strings"
)

// Transition is the outcome of one state-machine step.
type Transition struct {
	Reply string
	// Appointment is non-nil when the dialogue finalized on this turn.
	// The caller persists it and renders the success reply with the
	// ID issued by the store.
	Appointment *Appointment
}

// Machine advances a conversation one turn at a time. It touches nothing
// beyond the conversation passed to Advance; persistence belongs to the
// orchestrator.
type Machine struct {
	classifier *Classifier
}

func NewMachine(classifier *Classifier) *Machine {
	return &Machine{classifier: classifier}
}

const (
	askNamePrompt = "Olá! Vou te ajudar a marcar uma consulta. 😊\n\nQual é o seu nome?"

	invalidPeriodReply = "Por favor, digite apenas 'manhã' ou 'tarde' para o período da consulta."

	finalizedReply = "Para marcar uma nova consulta, digite 'nova' ou 'iniciar'. 😊"
)

// Restart keywords recognized in the finalized state. Compared against the
// lowercased raw message without accent folding, so "começar" restarts and
// "comecar" does not. The looser start-intent set applies only in the
// initial state, via classification.
var restartWords = wordSet("nova", "iniciar", "novo", "começar")

// Advance applies exactly one transition for the current state, mutating the
// conversation's state and collected fields in place. Invalid user input
// produces a guidance reply with the state unchanged, never an error; the
// only error is an unknown state label, which is an invariant violation.
func (m *Machine) Advance(conv *Conversation, message string, result IntentResult) (Transition, error) {
	switch conv.State {
	case StateInitial:
		conv.State = StateAwaitingName
		return Transition{Reply: askNamePrompt}, nil

	case StateAwaitingName:
		name := strings.TrimSpace(message)
		conv.Collected.Name = name
		conv.State = StateAwaitingDate
		reply := fmt.Sprintf("Muito bem, %s! 👍\n\nAgora me diga em que data você gostaria de marcar a consulta? (exemplo: 15/06/2025)", name)
		return Transition{Reply: reply}, nil

	case StateAwaitingDate:
		date := result.ExtractedDate
		if date == "" {
			date = strings.TrimSpace(message)
		}
		conv.Collected.Date = date
		conv.State = StateAwaitingPeriod
		reply := fmt.Sprintf("Perfeito! Data: %s ✅\n\nQual período você prefere?\n• Digite 'manhã' para período da manhã\n• Digite 'tarde' para período da tarde", date)
		return Transition{Reply: reply}, nil

	case StateAwaitingPeriod:
		_, period := m.classifier.ExtractEntities(message)
		if period == "" {
			period = strings.ToLower(strings.TrimSpace(message))
			if period != PeriodMorning && period != "manha" && period != PeriodAfternoon {
				return Transition{Reply: invalidPeriodReply}, nil
			}
		}
		conv.Collected.Period = period
		conv.State = StateFinalized
		return Transition{Appointment: &Appointment{
			Name:   conv.Collected.Name,
			Date:   conv.Collected.Date,
			Period: period,
			UserID: conv.UserID,
		}}, nil

	case StateFinalized:
		keyword := strings.ToLower(strings.TrimSpace(message))
		if _, ok := restartWords[keyword]; ok {
			// Reset and re-apply the initial transition with the same
			// message: the user gets the name prompt immediately and the
			// restart keyword is never stored as a name.
			conv.Reset()
			return m.Advance(conv, message, result)
		}
		return Transition{Reply: finalizedReply}, nil

	default:
		return Transition{}, fmt.Errorf("%w: %q", ErrUnreachableState, conv.State)
	}
}

// SuccessReply renders the confirmation shown after the appointment has been
// persisted and the store has issued its ID.
func SuccessReply(a Appointment) string {
	return fmt.Sprintf("🎉 Consulta marcada com sucesso!\n\n"+
		"📋 **Resumo da sua consulta:**\n"+
		"👤 Nome: %s\n"+
		"📅 Data: %s\n"+
		"⏰ Período: %s\n"+
		"🆔 ID da consulta: %s\n\n"+
		"✅ Sua consulta foi registrada no banco de dados! Para marcar uma nova consulta, digite 'nova' ou 'iniciar'.",
		a.Name, a.Date, a.Period, a.ID)
}
