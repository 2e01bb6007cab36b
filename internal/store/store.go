package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/amirbrooks/fivetask/internal/kv"
	"github.com/amirbrooks/fivetask/internal/mood"
	"github.com/amirbrooks/fivetask/internal/task"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInvalid       = errors.New("invalid")
	ErrFull          = errors.New("list full")
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrCanceled      = errors.New("canceled")
)

const (
	DefaultKey        = "5task_data"
	DefaultUndoWindow = 4 * time.Second
)

// MatchConflictError provides details when a selector matches multiple tasks.
// It still satisfies errors.Is(err, ErrConflict).
type MatchConflictError struct {
	Reason  string
	Matches []task.Task
}

func (e *MatchConflictError) Error() string {
	if e == nil || strings.TrimSpace(e.Reason) == "" {
		return "conflict"
	}
	return "conflict: " + e.Reason
}

func (e *MatchConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Confirmer guards destructive actions.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Snapshot is a point-in-time copy of everything the presentation layer shows.
type Snapshot struct {
	Tasks        []task.Task
	Mood         mood.Mood
	Quote        string
	Remaining    int
	Undo         *task.Task
	UndoDeadline time.Time
	Now          time.Time
}

func (s Snapshot) Full() bool { return s.Remaining == 0 }

// IsStale evaluates staleness at the snapshot's time.
func (s Snapshot) IsStale(t task.Task) bool { return t.IsStale(s.Now) }

type undoSlot struct {
	token    uint64
	deadline time.Time
	timer    Timer
}

// undoEntry is the persisted form of a pending undo.
type undoEntry struct {
	Task      task.Task `json:"task"`
	ExpiresAt int64     `json:"expiresAt"`
}

// Store owns the task list, the mascot's mood and the undo buffer. All
// methods are safe to call from the UI goroutine while an undo timer fires.
type Store struct {
	mu      sync.Mutex
	kv      kv.Store
	key     string
	undoKey string
	clock   Clock
	logger  *log.Logger
	picker  *mood.Picker
	window  time.Duration

	state   State
	undo    undoSlot
	seq     uint64
	mood    mood.Mood
	quote   string
	updates chan Snapshot
}

type Option func(*Store)

func WithClock(c Clock) Option { return func(s *Store) { s.clock = c } }

func WithLogger(l *log.Logger) Option { return func(s *Store) { s.logger = l } }

func WithPicker(p *mood.Picker) Option { return func(s *Store) { s.picker = p } }

func WithUndoWindow(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithKey sets the storage key of the task list. The pending undo entry is
// kept next to it ("5task_data" -> "5task_undo").
func WithKey(key string) Option {
	return func(s *Store) {
		key = strings.TrimSpace(key)
		if key != "" {
			s.key = key
		}
	}
}

// Open loads the task list from st. Malformed stored data starts an empty
// list; only read failures are returned.
func Open(st kv.Store, opts ...Option) (*Store, error) {
	s := &Store{
		kv:      st,
		key:     DefaultKey,
		clock:   realClock{},
		window:  DefaultUndoWindow,
		updates: make(chan Snapshot, 1),
	}
	for _, o := range opts {
		o(s)
	}
	s.undoKey = undoKeyFor(s.key)
	if s.logger == nil {
		s.logger = log.New(io.Discard, "", 0)
	}
	if s.picker == nil {
		pool, err := mood.LoadPool(mood.DefaultLocale)
		if err != nil {
			return nil, err
		}
		s.picker = mood.NewPicker(pool, nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tasks, err := s.loadTasks()
	if err != nil {
		return nil, err
	}
	s.state.Tasks = tasks
	if err := s.loadUndo(); err != nil {
		return nil, err
	}
	s.react(Greeting(tasks, s.clock.Now()))
	return s, nil
}

func undoKeyFor(key string) string {
	if strings.HasSuffix(key, "_data") {
		return strings.TrimSuffix(key, "_data") + "_undo"
	}
	return key + "_undo"
}

func (s *Store) loadTasks() ([]task.Task, error) {
	b, err := s.kv.Get(s.key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return []task.Task{}, nil
		}
		return nil, fmt.Errorf("load %s: %w", s.key, err)
	}
	var raw []task.Task
	if err := json.Unmarshal(b, &raw); err != nil {
		s.logger.Printf("ignoring malformed %s: %v", s.key, err)
		return []task.Task{}, nil
	}
	out := make([]task.Task, 0, len(raw))
	seen := map[string]bool{}
	for _, t := range raw {
		if !t.Valid() || seen[t.ID] {
			s.logger.Printf("ignoring malformed task entry %q", t.ID)
			continue
		}
		if len(out) == Capacity {
			s.logger.Printf("dropping tasks beyond capacity %d", Capacity)
			break
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) loadUndo() error {
	b, err := s.kv.Get(s.undoKey)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load %s: %w", s.undoKey, err)
	}
	var e *undoEntry
	if err := json.Unmarshal(b, &e); err != nil {
		s.logger.Printf("ignoring malformed %s: %v", s.undoKey, err)
		return nil
	}
	if e == nil || !e.Task.Valid() || indexOf(s.state.Tasks, e.Task.ID) >= 0 {
		return nil
	}
	deadline := time.UnixMilli(e.ExpiresAt).UTC()
	remaining := deadline.Sub(s.clock.Now())
	if remaining <= 0 {
		s.saveUndoLocked()
		return nil
	}
	t := e.Task
	s.state.Deleted = &t
	s.armUndoLocked(deadline, remaining)
	return nil
}

// Close stops the undo timer and closes the underlying key-value store. A
// pending undo stays persisted and is picked up by the next Open.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.undo.timer != nil {
		s.undo.timer.Stop()
	}
	s.undo.token = 0
	return s.kv.Close()
}

// Updates delivers the latest snapshot after every change, including undo
// expiry. Slow readers only see the most recent snapshot.
func (s *Store) Updates() <-chan Snapshot { return s.updates }

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Notices returns the fixed strings of the active quote pool.
func (s *Store) Notices() mood.Notices { return s.picker.Pool().Notices }

// Add prepends a task. Empty text is ErrInvalid; a full list is ErrFull and
// shocks the mascot.
func (s *Store) Add(text string) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := task.New(text, s.clock.Now())
	if err := s.applyLocked(Add{Task: t}); err != nil {
		return task.Task{}, err
	}
	s.saveTasksLocked()
	s.publishLocked()
	return s.state.Tasks[0], nil
}

func (s *Store) ToggleComplete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.applyLocked(Toggle{ID: id}); err != nil {
		return err
	}
	s.saveTasksLocked()
	s.publishLocked()
	return nil
}

// Delete removes a task into the undo buffer and restarts the undo window.
// A previous pending undo is dropped.
func (s *Store) Delete(id string) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.applyLocked(Delete{ID: id}); err != nil {
		return task.Task{}, err
	}
	removed := *s.state.Deleted
	s.armUndoLocked(s.clock.Now().Add(s.window), s.window)
	s.saveTasksLocked()
	s.saveUndoLocked()
	s.publishLocked()
	return removed, nil
}

// UndoDelete restores the last deleted task at the front of the list. When
// the list is full it returns ErrFull and keeps the buffer.
func (s *Store) UndoDelete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Deleted != nil && !s.clock.Now().Before(s.undo.deadline) {
		s.closeUndoLocked(Expire{})
		return ErrNothingToUndo
	}
	if err := s.applyLocked(Undo{}); err != nil {
		return err
	}
	s.cancelUndoLocked()
	s.saveTasksLocked()
	s.saveUndoLocked()
	s.publishLocked()
	return nil
}

// DismissUndo drops the pending undo without restoring it.
func (s *Store) DismissUndo() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Deleted == nil {
		return
	}
	s.closeUndoLocked(Dismiss{})
}

func (s *Store) EditText(id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.applyLocked(Edit{ID: id, Text: text}); err != nil {
		return err
	}
	s.saveTasksLocked()
	s.publishLocked()
	return nil
}

// ClearAll empties the list once c confirms. Declining returns ErrCanceled.
// An empty list is left alone without asking.
func (s *Store) ClearAll(c Confirmer) error {
	s.mu.Lock()
	empty := len(s.state.Tasks) == 0
	s.mu.Unlock()
	if empty {
		return nil
	}
	if c == nil || !c.Confirm(s.Notices().ClearConfirm) {
		return ErrCanceled
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.applyLocked(Clear{}); err != nil {
		return err
	}
	s.saveTasksLocked()
	s.publishLocked()
	return nil
}

// Idle nudges the mascot after a stretch without input.
func (s *Store) Idle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.applyLocked(Idle{}); err != nil {
		return
	}
	s.publishLocked()
}

// Resolve maps a 1-based position or an id prefix to a task id.
func (s *Store) Resolve(selector string) (string, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return "", fmt.Errorf("%w: empty selector", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := s.state.Tasks
	// Positions are single digits; longer numerals are id prefixes.
	if n, err := strconv.Atoi(selector); err == nil && len(selector) == 1 {
		if n < 1 || n > len(tasks) {
			return "", fmt.Errorf("%w: no task at position %d", ErrNotFound, n)
		}
		return tasks[n-1].ID, nil
	}
	norm := strings.ToUpper(strings.TrimPrefix(strings.ToLower(selector), "tsk_"))
	var matches []task.Task
	for _, t := range tasks {
		if strings.HasPrefix(strings.TrimPrefix(t.ID, "tsk_"), norm) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %q", ErrNotFound, selector)
	case 1:
		return matches[0].ID, nil
	default:
		return "", &MatchConflictError{Reason: "prefix", Matches: matches}
	}
}

func (s *Store) applyLocked(a Action) error {
	next, r, err := Reduce(s.state, a)
	s.react(r)
	if err != nil {
		if !r.IsZero() {
			s.publishLocked()
		}
		return err
	}
	s.state = next
	return nil
}

func (s *Store) react(r mood.Reaction) {
	if r.Mood != "" {
		s.mood = r.Mood
	}
	if r.Quote != "" {
		s.quote = s.picker.Pick(r.Quote)
	}
}

// armUndoLocked replaces any pending expiry with a fresh token.
func (s *Store) armUndoLocked(deadline time.Time, after time.Duration) {
	if s.undo.timer != nil {
		s.undo.timer.Stop()
	}
	s.seq++
	token := s.seq
	s.undo = undoSlot{
		token:    token,
		deadline: deadline,
		timer:    s.clock.AfterFunc(after, func() { s.expire(token) }),
	}
}

func (s *Store) cancelUndoLocked() {
	if s.undo.timer != nil {
		s.undo.timer.Stop()
	}
	s.undo = undoSlot{}
}

func (s *Store) closeUndoLocked(a Action) {
	_ = s.applyLocked(a)
	s.cancelUndoLocked()
	s.saveUndoLocked()
	s.publishLocked()
}

func (s *Store) expire(token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Deleted == nil || s.undo.token != token {
		return
	}
	s.closeUndoLocked(Expire{})
}

func (s *Store) saveTasksLocked() {
	b, err := json.Marshal(s.state.Tasks)
	if err != nil {
		s.logger.Printf("encode %s: %v", s.key, err)
		return
	}
	if err := s.kv.Put(s.key, b); err != nil {
		s.logger.Printf("save %s: %v", s.key, err)
	}
}

func (s *Store) saveUndoLocked() {
	var e *undoEntry
	if s.state.Deleted != nil {
		e = &undoEntry{Task: *s.state.Deleted, ExpiresAt: s.undo.deadline.UnixMilli()}
	}
	b, err := json.Marshal(e)
	if err != nil {
		s.logger.Printf("encode %s: %v", s.undoKey, err)
		return
	}
	if err := s.kv.Put(s.undoKey, b); err != nil {
		s.logger.Printf("save %s: %v", s.undoKey, err)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Tasks:     clone(s.state.Tasks),
		Mood:      s.mood,
		Quote:     s.quote,
		Remaining: Capacity - len(s.state.Tasks),
		Now:       s.clock.Now(),
	}
	if s.state.Deleted != nil {
		t := *s.state.Deleted
		snap.Undo = &t
		snap.UndoDeadline = s.undo.deadline
	}
	return snap
}

func (s *Store) publishLocked() {
	snap := s.snapshotLocked()
	select {
	case s.updates <- snap:
	default:
		select {
		case <-s.updates:
		default:
		}
		select {
		case s.updates <- snap:
		default:
		}
	}
}
