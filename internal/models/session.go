package models

import "time"

// Testimony is one recorded question/answer exchange with a specific suspect.
// Testimonies are created once and never mutated.
type Testimony struct {
	SuspectID int       `json:"suspectId"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	AskedAt   time.Time `json:"askedAt"`
}

// Session is one complete play-through from briefing to verdict. It is
// assembled at verdict time and appended to the history store.
type Session struct {
	ID                string      `json:"id"`
	StartedAt         time.Time   `json:"startedAt"`
	ScenarioID        string      `json:"scenarioId"`
	SelectedSuspectID int         `json:"selectedSuspectId"`
	GuiltySuspectID   int         `json:"guiltySuspectId"`
	IsCorrect         bool        `json:"isCorrect"`
	QuestionsUsed     int         `json:"questionsUsed"`
	PlayTimeSeconds   int         `json:"playTimeSeconds"`
	Testimonies       []Testimony `json:"testimonies"`
	Survey            *Survey     `json:"surveyData,omitempty"`
}

// Survey is the optional post-session satisfaction survey. At most one per
// session; resubmitting replaces the previous one.
type Survey struct {
	SessionID   string        `json:"sessionId"`
	Ratings     SurveyRatings `json:"ratings"`
	FreeComment string        `json:"freeComment,omitempty"`
	SubmittedAt time.Time     `json:"submittedAt"`
}

// SurveyRatings are on a 1-5 scale.
type SurveyRatings struct {
	OverallSatisfaction   int `json:"overallSatisfaction"`
	DifficultyAppropriate int `json:"difficultyAppropriate"`
	AIRealism             int `json:"aiRealism"`
	MysteryInteresting    int `json:"mysteryInteresting"`
}

// Stats is the aggregate computed over the full session history.
type Stats struct {
	TotalSessions   int                     `json:"totalSessions"`
	CorrectSessions int                     `json:"correctSessions"`
	WinRate         int                     `json:"winRate"`
	CurrentStreak   int                     `json:"currentStreak"`
	MaxStreak       int                     `json:"maxStreak"`
	AveragePlayTime int                     `json:"averagePlayTime"`
	TotalPlayTime   int                     `json:"totalPlayTime"`
	SuspectAccuracy map[int]SuspectAccuracy `json:"suspectAccuracy"`
	Questions       QuestionStats           `json:"questionsStats"`
}

// SuspectAccuracy tracks how often a suspect was accused and how often that
// accusation was right.
type SuspectAccuracy struct {
	TimesSelected int `json:"timesSelected"`
	TimesCorrect  int `json:"timesCorrect"`
	Accuracy      int `json:"accuracy"`
}

type QuestionStats struct {
	Average int `json:"average"`
	Min     int `json:"min"`
	Max     int `json:"max"`
}
