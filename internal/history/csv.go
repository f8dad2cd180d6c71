package history

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	"github.com/myrjola/interrogame/internal/errors"
	"github.com/myrjola/interrogame/internal/models"
)

// ExportSurveyCSV renders one row per surveyed session.
func (s *Store) ExportSurveyCSV() ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{
		"session_id", "played_at", "result", "selected_suspect", "guilty_suspect",
		"questions_used", "play_time_seconds",
		"overall_satisfaction", "difficulty_appropriate", "ai_realism", "mystery_interesting",
		"free_comment", "submitted_at",
	}
	if err := writer.Write(header); err != nil {
		return nil, errors.Wrap(err, "write survey CSV header")
	}

	for _, session := range s.All() {
		if session.Survey == nil {
			continue
		}
		survey := session.Survey
		row := append(sessionColumns(session),
			strconv.Itoa(survey.Ratings.OverallSatisfaction),
			strconv.Itoa(survey.Ratings.DifficultyAppropriate),
			strconv.Itoa(survey.Ratings.AIRealism),
			strconv.Itoa(survey.Ratings.MysteryInteresting),
			survey.FreeComment,
			survey.SubmittedAt.Format(time.RFC3339),
		)
		if err := writer.Write(row); err != nil {
			return nil, errors.Wrap(err, "write survey CSV row")
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, errors.Wrap(err, "flush survey CSV")
	}
	return buf.Bytes(), nil
}

// ExportHistoryCSV renders one row per testimony with its session's columns
// repeated, so the full interrogation transcript is analysable in one sheet.
func (s *Store) ExportHistoryCSV() ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{
		"session_id", "played_at", "result", "selected_suspect", "guilty_suspect",
		"questions_used", "play_time_seconds",
		"suspect_id", "question", "answer", "asked_at",
	}
	if err := writer.Write(header); err != nil {
		return nil, errors.Wrap(err, "write history CSV header")
	}

	for _, session := range s.All() {
		for _, testimony := range session.Testimonies {
			row := append(sessionColumns(session),
				strconv.Itoa(testimony.SuspectID),
				testimony.Question,
				testimony.Answer,
				testimony.AskedAt.Format(time.RFC3339),
			)
			if err := writer.Write(row); err != nil {
				return nil, errors.Wrap(err, "write history CSV row")
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, errors.Wrap(err, "flush history CSV")
	}
	return buf.Bytes(), nil
}

func sessionColumns(session models.Session) []string {
	result := "incorrect"
	if session.IsCorrect {
		result = "correct"
	}
	return []string{
		session.ID,
		session.StartedAt.Format(time.RFC3339),
		result,
		strconv.Itoa(session.SelectedSuspectID),
		strconv.Itoa(session.GuiltySuspectID),
		strconv.Itoa(session.QuestionsUsed),
		strconv.Itoa(session.PlayTimeSeconds),
	}
}
