// Package prompt builds the chat request for questioning a suspect.
package prompt

import (
	"github.com/myrjola/interrogame/internal/ledger"
	"github.com/myrjola/interrogame/internal/models"
)

type Role string

const (
	RoleQuestion Role = "question"
	RoleAnswer   Role = "answer"
)

type Message struct {
	Role    Role
	Content string
}

// Request is the complete input for one chat completion: the suspect's system
// prompt and the ordered conversation so far plus the new question.
type Request struct {
	SystemPrompt string
	Messages     []Message
}

// Build assembles the request for asking targetSuspectID the given question.
//
// The system prompt is the suspect's guilty variant exactly when the suspect
// is the scenario's culprit, the innocent variant otherwise. The conversation
// contains only the target suspect's own testimonies in ledger order followed
// by the new question. Testimonies given by other suspects must never appear:
// each suspect has no knowledge of what was asked elsewhere, and leaking
// cross-suspect context would break the interrogation illusion.
func Build(led *ledger.Ledger, scenario models.Scenario, targetSuspectID int, question string) (Request, error) {
	suspect, err := led.Suspect(targetSuspectID)
	if err != nil {
		return Request{}, err
	}

	systemPrompt := suspect.Prompts.Innocent
	if targetSuspectID == scenario.GuiltySuspectID {
		systemPrompt = suspect.Prompts.Guilty
	}

	testimonies := led.ViewFor(targetSuspectID)
	messages := make([]Message, 0, 2*len(testimonies)+1)
	for _, testimony := range testimonies {
		messages = append(messages,
			Message{Role: RoleQuestion, Content: testimony.Question},
			Message{Role: RoleAnswer, Content: testimony.Answer},
		)
	}
	messages = append(messages, Message{Role: RoleQuestion, Content: question})

	return Request{
		SystemPrompt: systemPrompt,
		Messages:     messages,
	}, nil
}
