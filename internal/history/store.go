// Package history persists completed sessions and computes the running
// statistics shown on the profile page.
package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/myrjola/interrogame/internal/errors"
	"github.com/myrjola/interrogame/internal/kv"
	"github.com/myrjola/interrogame/internal/models"
)

var (
	// ErrNotFound means no stored session has the given id.
	ErrNotFound = errors.NewSentinel("session not found")
	// ErrInvalidRating means a survey rating is outside the 1-5 scale.
	ErrInvalidRating = errors.NewSentinel("rating out of range")
)

// storageKey namespaces the serialized session list in the blob store.
const storageKey = "interrogame:sessions"

// Blobs is the persistence interface the store needs. *kv.Store satisfies it.
type Blobs interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Store keeps the session history in memory and writes through to the blob
// store on every mutation. A failed write is logged and the in-memory state is
// kept, so a storage hiccup never loses a finished session. Mutations are
// serialized with a mutex; the engine issues them sequentially anyway.
type Store struct {
	mu       sync.Mutex
	blobs    Blobs
	logger   *slog.Logger
	sessions []models.Session
	now      func() time.Time
}

// NewStore loads the persisted history. A missing key means an empty history;
// a malformed blob is logged and treated as empty rather than crashing.
func NewStore(ctx context.Context, blobs Blobs, logger *slog.Logger) *Store {
	store := &Store{
		blobs:  blobs,
		logger: logger.With("source", "HistoryStore"),
		now:    time.Now,
	}

	data, err := blobs.Get(ctx, storageKey)
	switch {
	case errors.Is(err, kv.ErrNoKey):
		// First run.
	case err != nil:
		store.logger.LogAttrs(ctx, slog.LevelWarn, "could not load history, starting empty",
			errors.SlogError(err))
	default:
		if err = json.Unmarshal(data, &store.sessions); err != nil {
			store.logger.LogAttrs(ctx, slog.LevelWarn, "malformed history blob, starting empty",
				errors.SlogError(err))
			store.sessions = nil
		}
	}

	return store
}

// Append adds a completed session to the history.
func (s *Store) Append(ctx context.Context, session models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, session)
	s.persistLocked(ctx)
}

// All returns every stored session in chronological (append) order.
func (s *Store) All() []models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]models.Session, len(s.sessions))
	copy(all, s.sessions)
	return all
}

// Get returns the session with the given id.
func (s *Store) Get(sessionID string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.ID == sessionID {
			return session, nil
		}
	}
	return models.Session{}, errors.Wrap(ErrNotFound, "get session", slog.String("session_id", sessionID))
}

// Recent returns up to n sessions ordered by start time, newest first.
func (s *Store) Recent(n int) []models.Session {
	recent := s.All()
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].StartedAt.After(recent[j].StartedAt)
	})
	if len(recent) > n {
		recent = recent[:n]
	}
	return recent
}

// AttachSurvey stores the satisfaction survey on the session. Ratings are
// validated before any state changes; resubmitting replaces the previous
// survey.
func (s *Store) AttachSurvey(ctx context.Context, sessionID string, ratings models.SurveyRatings, freeComment string) error {
	for _, rating := range []int{
		ratings.OverallSatisfaction,
		ratings.DifficultyAppropriate,
		ratings.AIRealism,
		ratings.MysteryInteresting,
	} {
		if rating < 1 || rating > 5 {
			return errors.Wrap(ErrInvalidRating, "validate survey", slog.Int("rating", rating))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sessions {
		if s.sessions[i].ID != sessionID {
			continue
		}
		s.sessions[i].Survey = &models.Survey{
			SessionID:   sessionID,
			Ratings:     ratings,
			FreeComment: freeComment,
			SubmittedAt: s.now(),
		}
		s.persistLocked(ctx)
		return nil
	}
	return errors.Wrap(ErrNotFound, "attach survey", slog.String("session_id", sessionID))
}

// Clear removes the whole history.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = nil
	if err := s.blobs.Delete(ctx, storageKey); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "could not clear persisted history",
			errors.SlogError(err))
	}
}

// persistLocked writes the session list through to the blob store. Failures
// are logged and the in-memory history stays authoritative for this process.
func (s *Store) persistLocked(ctx context.Context) {
	data, err := json.Marshal(s.sessions)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "could not serialize history", errors.SlogError(err))
		return
	}
	if err = s.blobs.Set(ctx, storageKey, data); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "could not persist history", errors.SlogError(err))
	}
}

// Stats computes the aggregate over the full history. It is a pure function
// of the stored session list.
func (s *Store) Stats() models.Stats {
	return ComputeStats(s.All())
}

// ComputeStats aggregates win rate, streaks, play-time and question-count
// statistics over sessions in chronological order. Percentages and averages
// round half-up to the nearest integer.
func ComputeStats(sessions []models.Session) models.Stats {
	stats := models.Stats{
		SuspectAccuracy: map[int]models.SuspectAccuracy{},
	}
	if len(sessions) == 0 {
		return stats
	}

	stats.TotalSessions = len(sessions)
	for _, session := range sessions {
		if session.IsCorrect {
			stats.CorrectSessions++
		}
		stats.TotalPlayTime += session.PlayTimeSeconds
	}
	stats.WinRate = roundPercent(stats.CorrectSessions, stats.TotalSessions)
	stats.AveragePlayTime = roundRatio(stats.TotalPlayTime, stats.TotalSessions)

	// Current streak runs backwards from the most recent session.
	for i := len(sessions) - 1; i >= 0; i-- {
		if !sessions[i].IsCorrect {
			break
		}
		stats.CurrentStreak++
	}

	// Max streak scans forward.
	streak := 0
	for _, session := range sessions {
		if session.IsCorrect {
			streak++
			stats.MaxStreak = max(stats.MaxStreak, streak)
		} else {
			streak = 0
		}
	}

	selected := map[int]int{}
	correct := map[int]int{}
	for _, session := range sessions {
		selected[session.SelectedSuspectID]++
		if session.IsCorrect {
			correct[session.SelectedSuspectID]++
		}
	}
	for suspectID, timesSelected := range selected {
		stats.SuspectAccuracy[suspectID] = models.SuspectAccuracy{
			TimesSelected: timesSelected,
			TimesCorrect:  correct[suspectID],
			Accuracy:      roundPercent(correct[suspectID], timesSelected),
		}
	}

	questionTotal := 0
	stats.Questions.Min = sessions[0].QuestionsUsed
	for _, session := range sessions {
		questionTotal += session.QuestionsUsed
		stats.Questions.Min = min(stats.Questions.Min, session.QuestionsUsed)
		stats.Questions.Max = max(stats.Questions.Max, session.QuestionsUsed)
	}
	stats.Questions.Average = roundRatio(questionTotal, stats.TotalSessions)

	return stats
}

func roundPercent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(total)))
}

func roundRatio(sum, count int) int {
	if count == 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(count)))
}
