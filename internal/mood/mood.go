// Package mood holds the mascot's moods, the quote pools it speaks from and
// the picker that draws a quote for a reaction.
package mood

import (
	"embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

type Mood string

const (
	Happy    Mood = "HAPPY"
	Thinking Mood = "THINKING"
	Excited  Mood = "EXCITED"
	Shocked  Mood = "SHOCKED"
)

// Category keys a quote pool.
type Category string

const (
	Welcome  Category = "welcome"
	Add      Category = "add"
	Complete Category = "complete"
	Delete   Category = "delete"
	Full     Category = "full"
	Idle     Category = "idle"
	Restored Category = "restored"
)

var Categories = []Category{Welcome, Add, Complete, Delete, Full, Idle, Restored}

// Reaction is what an action does to the mascot. An empty Mood leaves the
// mood as it is; an empty Quote leaves the quote as it is.
type Reaction struct {
	Mood  Mood
	Quote Category
}

func (r Reaction) IsZero() bool { return r.Mood == "" && r.Quote == "" }

// Notices are the fixed, non-random strings shown by the presentation layer.
type Notices struct {
	UndoFull     string `yaml:"undo_full"`
	ClearConfirm string `yaml:"clear_confirm"`
	Deleted      string `yaml:"deleted"`
	ListFull     string `yaml:"list_full"`
	Empty        string `yaml:"empty"`
	Stale        string `yaml:"stale"`
}

type Pool struct {
	Locale  string                `yaml:"locale"`
	Quotes  map[Category][]string `yaml:"quotes"`
	Notices Notices               `yaml:"notices"`
}

const DefaultLocale = "en"

//go:embed quotes/*.yaml
var quoteFiles embed.FS

// LoadPool returns the embedded pool for locale, falling back to English for
// unknown locales.
func LoadPool(locale string) (*Pool, error) {
	name := strings.TrimSpace(locale)
	if name == "" {
		name = DefaultLocale
	}
	b, err := quoteFiles.ReadFile("quotes/" + name + ".yaml")
	if err != nil {
		b, err = quoteFiles.ReadFile("quotes/" + DefaultLocale + ".yaml")
		if err != nil {
			return nil, err
		}
	}
	return ParsePool(b)
}

// ParsePool decodes a YAML pool and checks every category has at least one quote.
func ParsePool(b []byte) (*Pool, error) {
	var p Pool
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	for _, c := range Categories {
		if len(p.Quotes[c]) == 0 {
			return nil, fmt.Errorf("quote pool %q: category %q is empty", p.Locale, c)
		}
	}
	if strings.TrimSpace(p.Notices.UndoFull) == "" || strings.TrimSpace(p.Notices.ClearConfirm) == "" {
		return nil, errors.New("quote pool: undo_full and clear_confirm notices are required")
	}
	return &p, nil
}

// Picker draws quotes at random within a category. The randomness source is
// injectable so tests can pin the choice.
type Picker struct {
	mu   sync.Mutex
	pool *Pool
	rnd  *rand.Rand
}

func NewPicker(pool *Pool, src rand.Source) *Picker {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Picker{pool: pool, rnd: rand.New(src)}
}

func (p *Picker) Pick(c Category) string {
	options := p.pool.Quotes[c]
	switch len(options) {
	case 0:
		return ""
	case 1:
		return options[0]
	}
	p.mu.Lock()
	i := p.rnd.IntN(len(options))
	p.mu.Unlock()
	return options[i]
}

func (p *Picker) Pool() *Pool { return p.pool }

// Contains reports whether quote belongs to category c.
func (p *Pool) Contains(c Category, quote string) bool {
	for _, q := range p.Quotes[c] {
		if q == quote {
			return true
		}
	}
	return false
}
