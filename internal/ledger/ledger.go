// Package ledger keeps the append-only testimony record for the active session.
package ledger

import (
	"log/slog"
	"sync"
	"time"

	"github.com/myrjola/interrogame/internal/errors"
	"github.com/myrjola/interrogame/internal/models"
)

// ErrUnknownSuspect is returned when a suspect id does not appear in the
// scenario roster. This points at a programming or content error, so callers
// should fail fast instead of substituting a suspect.
var ErrUnknownSuspect = errors.NewSentinel("unknown suspect")

// All selects every testimony regardless of suspect in ViewFor.
const All = -1

// Ledger is the ordered, append-only collection of testimonies for one
// session. Appends and reads are serialized with a mutex; the session engine
// is the only writer.
type Ledger struct {
	mu          sync.Mutex
	roster      map[int]models.Suspect
	testimonies []models.Testimony
	now         func() time.Time
}

// New creates an empty ledger scoped to the given suspect roster.
func New(roster []models.Suspect) *Ledger {
	index := make(map[int]models.Suspect, len(roster))
	for _, suspect := range roster {
		index[suspect.ID] = suspect
	}
	return &Ledger{
		roster: index,
		now:    time.Now,
	}
}

// Suspect resolves a roster member by id. All suspect lookups go through the
// ledger so the roster is consulted in exactly one place.
func (l *Ledger) Suspect(id int) (models.Suspect, error) {
	suspect, ok := l.roster[id]
	if !ok {
		return models.Suspect{}, errors.Wrap(ErrUnknownSuspect, "look up suspect", slog.Int("suspect_id", id))
	}
	return suspect, nil
}

// Roster returns the roster as a slice for iteration. Order is not guaranteed.
func (l *Ledger) Roster() []models.Suspect {
	suspects := make([]models.Suspect, 0, len(l.roster))
	for _, suspect := range l.roster {
		suspects = append(suspects, suspect)
	}
	return suspects
}

// Record appends one testimony stamped with the current time. The suspect must
// belong to the roster.
func (l *Ledger) Record(suspectID int, question, answer string) (models.Testimony, error) {
	if _, err := l.Suspect(suspectID); err != nil {
		return models.Testimony{}, err
	}
	testimony := models.Testimony{
		SuspectID: suspectID,
		Question:  question,
		Answer:    answer,
		AskedAt:   l.now(),
	}
	l.mu.Lock()
	l.testimonies = append(l.testimonies, testimony)
	l.mu.Unlock()
	return testimony, nil
}

// CountFor returns the number of testimonies recorded for the suspect.
func (l *Ledger) CountFor(suspectID int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for _, testimony := range l.testimonies {
		if testimony.SuspectID == suspectID {
			count++
		}
	}
	return count
}

// ViewFor returns the testimonies for the suspect in append order, or every
// testimony when suspectID is All. The result is a copy.
func (l *Ledger) ViewFor(suspectID int) []models.Testimony {
	l.mu.Lock()
	defer l.mu.Unlock()
	view := make([]models.Testimony, 0, len(l.testimonies))
	for _, testimony := range l.testimonies {
		if suspectID == All || testimony.SuspectID == suspectID {
			view = append(view, testimony)
		}
	}
	return view
}

// Len returns the total number of testimonies.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.testimonies)
}
