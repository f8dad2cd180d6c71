// Package scenario loads the read-only game content: scenarios, the suspect
// roster, and the gameplay tuning parameters. Content is plain JSON so it can
// be edited without recompiling.
package scenario

import (
	"encoding/json"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/myrjola/interrogame/internal/errors"
	"github.com/myrjola/interrogame/internal/models"
)

// ErrNoScenarios means the content source is empty or unavailable. This is
// fatal to session start and must surface to the caller.
var ErrNoScenarios = errors.NewSentinel("no scenarios available")

const (
	scenariosFile = "scenarios.json"
	suspectsFile  = "suspects.json"
	settingsFile  = "game-settings.json"
)

// Source reads and caches the game content from a filesystem. The caches live
// until ClearCache so repeated sessions do not re-read the files.
type Source struct {
	fsys   fs.FS
	logger *slog.Logger

	mu        sync.Mutex
	scenarios []models.Scenario
	suspects  []models.Suspect
	settings  *models.GameplaySettings
}

func NewSource(fsys fs.FS, logger *slog.Logger) *Source {
	return &Source{
		fsys:   fsys,
		logger: logger.With("source", "ScenarioSource"),
	}
}

// Current resolves the scenario and roster for a new session. A known
// scenarioID selects that scenario; an unknown id falls back to the first
// scenario; an empty id picks one at random.
func (s *Source) Current(scenarioID string) (models.Scenario, []models.Suspect, error) {
	scenarios, err := s.loadScenarios()
	if err != nil {
		return models.Scenario{}, nil, err
	}
	if len(scenarios) == 0 {
		return models.Scenario{}, nil, errors.Wrap(ErrNoScenarios, "resolve current scenario")
	}
	suspects, err := s.loadSuspects()
	if err != nil {
		return models.Scenario{}, nil, err
	}

	scenario := scenarios[0]
	if scenarioID == "" {
		scenario = scenarios[rand.IntN(len(scenarios))]
	} else {
		for _, candidate := range scenarios {
			if candidate.ID == scenarioID {
				scenario = candidate
				break
			}
		}
	}
	return scenario, suspects, nil
}

// Settings returns the gameplay tuning parameters.
func (s *Source) Settings() (models.GameplaySettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings != nil {
		return *s.settings, nil
	}
	var raw settingsJSON
	if err := s.decode(settingsFile, &raw); err != nil {
		return models.GameplaySettings{}, err
	}
	settings := raw.toModel()
	s.settings = &settings
	return settings, nil
}

// ClearCache drops the cached content so the next read hits the filesystem.
func (s *Source) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenarios = nil
	s.suspects = nil
	s.settings = nil
}

func (s *Source) loadScenarios() ([]models.Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scenarios != nil {
		return s.scenarios, nil
	}
	var scenarios []models.Scenario
	if err := s.decode(scenariosFile, &scenarios); err != nil {
		return nil, err
	}
	s.scenarios = scenarios
	return scenarios, nil
}

func (s *Source) loadSuspects() ([]models.Suspect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suspects != nil {
		return s.suspects, nil
	}
	var suspects []models.Suspect
	if err := s.decode(suspectsFile, &suspects); err != nil {
		return nil, err
	}
	s.suspects = suspects
	return suspects, nil
}

func (s *Source) decode(name string, v any) error {
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return errors.Wrap(err, "read content file", slog.String("file", name))
	}
	if err = json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, "parse content file", slog.String("file", name))
	}
	return nil
}

// settingsJSON mirrors the on-disk settings layout where pauses are
// millisecond integers.
type settingsJSON struct {
	Gameplay struct {
		MaxQuestions    int        `json:"maxQuestions"`
		TypewriterSpeed pacingJSON `json:"typewriterSpeed"`
		StreamingSpeed  pacingJSON `json:"streamingSpeed"`
		Delays          delaysJSON `json:"delays"`
	} `json:"gameplay"`
}

type delaysJSON struct {
	GameStart         int `json:"gameStart"`
	FieldComplete     int `json:"fieldComplete"`
	SkipAllowTime     int `json:"skipAllowTime"`
	BriefingComplete  int `json:"briefingComplete"`
	PhaseTransition   int `json:"phaseTransition"`
	StreamingComplete int `json:"streamingComplete"`
}

// pacingJSON's bracket entry is optional: when absent it falls back to the
// normal delay. A pointer keeps an explicit zero distinct from absence.
type pacingJSON struct {
	Normal      int  `json:"normal"`
	Punctuation int  `json:"punctuation"`
	Space       int  `json:"space"`
	Bracket     *int `json:"bracket"`
}

func (p pacingJSON) toModel() models.PacingSettings {
	bracket := p.Normal
	if p.Bracket != nil {
		bracket = *p.Bracket
	}
	return models.PacingSettings{
		Normal:      time.Duration(p.Normal) * time.Millisecond,
		Punctuation: time.Duration(p.Punctuation) * time.Millisecond,
		Space:       time.Duration(p.Space) * time.Millisecond,
		Bracket:     time.Duration(bracket) * time.Millisecond,
	}
}

func (s settingsJSON) toModel() models.GameplaySettings {
	gameplay := s.Gameplay
	delays := gameplay.Delays
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return models.GameplaySettings{
		MaxQuestions:     gameplay.MaxQuestions,
		TypewriterPacing: gameplay.TypewriterSpeed.toModel(),
		StreamingPacing:  gameplay.StreamingSpeed.toModel(),
		Delays: models.DelaySettings{
			GameStart:       ms(delays.GameStart),
			FieldComplete:   ms(delays.FieldComplete),
			SkipAllow:       ms(delays.SkipAllowTime),
			BriefingDone:    ms(delays.BriefingComplete),
			PhaseTransition: ms(delays.PhaseTransition),
			AnswerComplete:  ms(delays.StreamingComplete),
		},
	}
}
