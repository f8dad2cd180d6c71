// Package reveal turns a string into a timed sequence of prefix frames for
// the typewriter effect. The chat backend returns answers in one piece, so the
// streaming appearance is fabricated locally frame by frame.
package reveal

import (
	"context"
	"sync"
	"time"
	"unicode"

	"github.com/myrjola/interrogame/internal/models"
)

// Pacing holds the pause durations per character class.
type Pacing struct {
	Normal      time.Duration
	Punctuation time.Duration
	Space       time.Duration
	Bracket     time.Duration
}

// NewPacing converts the loaded gameplay settings into a Pacing.
func NewPacing(s models.PacingSettings) Pacing {
	return Pacing{
		Normal:      s.Normal,
		Punctuation: s.Punctuation,
		Space:       s.Space,
		Bracket:     s.Bracket,
	}
}

// Frame is one snapshot of the reveal. Delay is the pause before the next
// frame; the final frame has no delay.
type Frame struct {
	Text  string
	Delay time.Duration
}

// DelayAfter picks the pause that follows revealing r.
func DelayAfter(r rune, p Pacing) time.Duration {
	switch {
	case isSentencePunctuation(r):
		return p.Punctuation
	case unicode.IsSpace(r):
		return p.Space
	case isBracket(r):
		return p.Bracket
	default:
		return p.Normal
	}
}

func isSentencePunctuation(r rune) bool {
	switch r {
	case '。', '、', '．', '，', '.', ',', '!', '?', '！', '？', ';', '；':
		return true
	}
	return false
}

func isBracket(r rune) bool {
	switch r {
	case '（', '）', '(', ')', '「', '」', '『', '』', '[', ']':
		return true
	}
	return false
}

// Plan computes the full frame sequence for text. The result has exactly one
// frame per rune index 0..len(runes): frame i is the first i runes. The delay
// attached to frame i is classified by the rune revealed next, so the pacing
// builds anticipation before punctuation-heavy passages resolve.
//
// Plan is pure: it never fails and an empty string yields a single "" frame.
func Plan(text string, p Pacing) []Frame {
	runes := []rune(text)
	frames := make([]Frame, len(runes)+1)
	for i := range frames {
		frames[i] = Frame{Text: string(runes[:i])}
		if i < len(runes) {
			frames[i].Delay = DelayAfter(runes[i], p)
		}
	}
	return frames
}

// Reveal plays a planned frame sequence over wall-clock time. A Reveal is
// single use: cancelling or skipping ends the sequence and a fresh Reveal is
// needed to start over.
type Reveal struct {
	frames    []Frame
	minSkip   time.Duration
	startedAt time.Time

	mu      sync.Mutex
	started bool
	skip    chan struct{}
	skipped bool
}

// New prepares a reveal of text. Skip requests are honored only after minSkip
// has elapsed since Start, which guards against accidental instant skips.
func New(text string, p Pacing, minSkip time.Duration) *Reveal {
	return &Reveal{
		frames:  Plan(text, p),
		minSkip: minSkip,
		skip:    make(chan struct{}),
	}
}

// Start begins emitting frames on the returned channel. The channel is closed
// after the final frame, after a skip (which emits the final frame first), or
// when ctx is cancelled (without emitting the final frame).
func (r *Reveal) Start(ctx context.Context) <-chan string {
	r.mu.Lock()
	r.started = true
	r.startedAt = time.Now()
	r.mu.Unlock()

	out := make(chan string)
	final := r.frames[len(r.frames)-1].Text
	emitFinal := func() {
		select {
		case out <- final:
		case <-ctx.Done():
		}
	}
	go func() {
		defer close(out)
		timer := time.NewTimer(0)
		defer timer.Stop()
		if !timer.Stop() {
			<-timer.C
		}
		for i, frame := range r.frames {
			select {
			case out <- frame.Text:
			case <-r.skip:
				emitFinal()
				return
			case <-ctx.Done():
				return
			}
			if i == len(r.frames)-1 {
				return
			}
			timer.Reset(frame.Delay)
			select {
			case <-timer.C:
			case <-r.skip:
				emitFinal()
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Skip jumps to the final frame. It reports whether the request was honored:
// skipping is refused before Start and before the minimum elapsed time.
func (r *Reveal) Skip() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started || r.skipped {
		return false
	}
	if time.Since(r.startedAt) < r.minSkip {
		return false
	}
	r.skipped = true
	close(r.skip)
	return true
}
