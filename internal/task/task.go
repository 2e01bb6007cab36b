package task

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// StaleAfter is how long an incomplete task may sit before it is flagged.
const StaleAfter = 24 * time.Hour

type randReader struct{}

func (randReader) Read(p []byte) (int, error) { return rand.Read(p) }

// Task is a single to-do entry.
type Task struct {
	ID        string
	Text      string
	Completed bool
	CreatedAt time.Time
}

// wireTask keeps the stored shape: createdAt in epoch milliseconds.
type wireTask struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	CreatedAt int64  `json:"createdAt"`
}

func (t Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireTask{
		ID:        t.ID,
		Text:      t.Text,
		Completed: t.Completed,
		CreatedAt: t.CreatedAt.UnixMilli(),
	})
}

func (t *Task) UnmarshalJSON(b []byte) error {
	var w wireTask
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	t.ID = w.ID
	t.Text = w.Text
	t.Completed = w.Completed
	t.CreatedAt = time.UnixMilli(w.CreatedAt).UTC()
	return nil
}

// New builds an incomplete task with a fresh id. text is trimmed.
func New(text string, now time.Time) Task {
	return Task{
		ID:        NewID(now),
		Text:      strings.TrimSpace(text),
		CreatedAt: now,
	}
}

// NewID returns "tsk_" followed by an upper-case ULID for now.
func NewID(now time.Time) string {
	entropy := ulid.Monotonic(randReader{}, 0)
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		// fallback
		return fmt.Sprintf("tsk_%d", now.UnixNano())
	}
	return "tsk_" + strings.ToUpper(id.String())
}

// Valid reports whether a decoded task is usable.
func (t Task) Valid() bool {
	return strings.TrimSpace(t.ID) != "" && strings.TrimSpace(t.Text) != ""
}

// IsStale reports whether an incomplete task is older than StaleAfter at now.
// Completed tasks are never stale.
func (t Task) IsStale(now time.Time) bool {
	if t.Completed {
		return false
	}
	return now.Sub(t.CreatedAt) > StaleAfter
}

func (t Task) IDShort(n int) string {
	s := strings.TrimPrefix(t.ID, "tsk_")
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (t Task) StatusAbbrev() string {
	if t.Completed {
		return "✓"
	}
	return "o"
}

// Age renders a coarse age like "3h" or "2d".
func (t Task) Age(now time.Time) string {
	d := now.Sub(t.CreatedAt)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
	}
}
