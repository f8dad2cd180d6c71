package models

import "time"

// Scenario is the immutable description of one mystery: the crime scene facts,
// which suspect is guilty, and the verdict explanations shown after an accusation.
// It is shared read-only by all components for a session's lifetime.
type Scenario struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	GuiltySuspectID int        `json:"guiltySuspectId"`
	Background      Background `json:"background"`
	CrimeScene      CrimeScene `json:"crimeScene"`
	Verdicts        Verdicts   `json:"verdicts"`
}

type Background struct {
	Image      string `json:"image"`
	Atmosphere string `json:"atmosphere"`
}

type CrimeScene struct {
	Location string `json:"location"`
	Time     string `json:"time"`
	Victim   string `json:"victim"`
	Evidence string `json:"evidence"`
	Details  string `json:"details"`
}

// SceneField is one labelled crime-scene fact revealed during the briefing.
type SceneField struct {
	Label string
	Text  string
}

// Fields returns the crime-scene facts in briefing order. The briefing reveals
// them one at a time and this order is fixed.
func (c CrimeScene) Fields() []SceneField {
	return []SceneField{
		{Label: "location", Text: c.Location},
		{Label: "time", Text: c.Time},
		{Label: "victim", Text: c.Victim},
		{Label: "evidence", Text: c.Evidence},
		{Label: "details", Text: c.Details},
	}
}

// Verdicts holds the explanation texts shown after the player commits to an
// accusation. Incorrect maps the wrongly accused suspect's id to the text.
type Verdicts struct {
	Correct   string         `json:"correct"`
	Incorrect map[int]string `json:"incorrect"`
}

// Suspect is one member of a scenario's roster. The prompt variant in play is
// chosen per question by comparing the suspect's id to Scenario.GuiltySuspectID.
type Suspect struct {
	ID          int            `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Avatar      string         `json:"avatar"`
	Prompts     SuspectPrompts `json:"systemPrompts"`
}

type SuspectPrompts struct {
	Guilty   string `json:"guilty"`
	Innocent string `json:"innocent"`
}

// GameplaySettings are the tuning parameters for a session. Immutable once loaded.
type GameplaySettings struct {
	MaxQuestions     int
	TypewriterPacing PacingSettings
	StreamingPacing  PacingSettings
	Delays           DelaySettings
}

// PacingSettings are the per-character-class pauses used by the reveal engine.
type PacingSettings struct {
	Normal      time.Duration
	Punctuation time.Duration
	Space       time.Duration
	Bracket     time.Duration
}

// DelaySettings are the dramatic pauses around phase transitions.
type DelaySettings struct {
	GameStart       time.Duration
	FieldComplete   time.Duration
	SkipAllow       time.Duration
	BriefingDone    time.Duration
	PhaseTransition time.Duration
	AnswerComplete  time.Duration
}
