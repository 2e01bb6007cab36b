package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/amirbrooks/fivetask/internal/mood"
	"github.com/amirbrooks/fivetask/internal/task"
)

// Capacity is the hard limit on concurrent tasks.
const Capacity = 5

// State is the part of the store the reducer owns: the task list, newest
// first, and the one-slot undo buffer.
type State struct {
	Tasks   []task.Task
	Deleted *task.Task
}

// Action is one user or timer event fed to Reduce.
type Action interface{ action() }

type (
	Add     struct{ Task task.Task }
	Toggle  struct{ ID string }
	Delete  struct{ ID string }
	Undo    struct{}
	Edit    struct{ ID, Text string }
	Clear   struct{}
	Expire  struct{}
	Dismiss struct{}
	Idle    struct{}
)

func (Add) action()     {}
func (Toggle) action()  {}
func (Delete) action()  {}
func (Undo) action()    {}
func (Edit) action()    {}
func (Clear) action()   {}
func (Expire) action()  {}
func (Dismiss) action() {}
func (Idle) action()    {}

// Reduce applies a to s. It never modifies s. On error the returned state is
// s itself; the reaction may still be non-zero (adding to a full list
// shocks the mascot).
func Reduce(s State, a Action) (State, mood.Reaction, error) {
	switch a := a.(type) {
	case Add:
		if strings.TrimSpace(a.Task.Text) == "" {
			return s, mood.Reaction{}, fmt.Errorf("%w: task text is required", ErrInvalid)
		}
		if len(s.Tasks) >= Capacity {
			return s, mood.Reaction{Mood: mood.Shocked, Quote: mood.Full}, fmt.Errorf("%w: %d of %d slots used", ErrFull, len(s.Tasks), Capacity)
		}
		t := a.Task
		t.Text = strings.TrimSpace(t.Text)
		next := State{Tasks: prepend(s.Tasks, t), Deleted: s.Deleted}
		if len(next.Tasks) >= Capacity {
			return next, mood.Reaction{Mood: mood.Shocked, Quote: mood.Full}, nil
		}
		return next, mood.Reaction{Mood: mood.Thinking, Quote: mood.Add}, nil

	case Toggle:
		i := indexOf(s.Tasks, a.ID)
		if i < 0 {
			return s, mood.Reaction{}, fmt.Errorf("%w: task %q", ErrNotFound, a.ID)
		}
		tasks := clone(s.Tasks)
		tasks[i].Completed = !tasks[i].Completed
		next := State{Tasks: tasks, Deleted: s.Deleted}
		if tasks[i].Completed {
			return next, mood.Reaction{Mood: mood.Happy, Quote: mood.Complete}, nil
		}
		return next, mood.Reaction{Mood: mood.Thinking}, nil

	case Delete:
		i := indexOf(s.Tasks, a.ID)
		if i < 0 {
			return s, mood.Reaction{}, fmt.Errorf("%w: task %q", ErrNotFound, a.ID)
		}
		removed := s.Tasks[i]
		tasks := make([]task.Task, 0, len(s.Tasks)-1)
		tasks = append(tasks, s.Tasks[:i]...)
		tasks = append(tasks, s.Tasks[i+1:]...)
		return State{Tasks: tasks, Deleted: &removed}, mood.Reaction{Mood: mood.Excited, Quote: mood.Delete}, nil

	case Undo:
		if s.Deleted == nil {
			return s, mood.Reaction{}, ErrNothingToUndo
		}
		if len(s.Tasks) >= Capacity {
			return s, mood.Reaction{}, fmt.Errorf("%w: cannot undo", ErrFull)
		}
		return State{Tasks: prepend(s.Tasks, *s.Deleted)}, mood.Reaction{Mood: mood.Happy, Quote: mood.Restored}, nil

	case Edit:
		text := strings.TrimSpace(a.Text)
		if text == "" {
			return s, mood.Reaction{}, fmt.Errorf("%w: task text is required", ErrInvalid)
		}
		i := indexOf(s.Tasks, a.ID)
		if i < 0 {
			return s, mood.Reaction{}, fmt.Errorf("%w: task %q", ErrNotFound, a.ID)
		}
		tasks := clone(s.Tasks)
		tasks[i].Text = text
		return State{Tasks: tasks, Deleted: s.Deleted}, mood.Reaction{}, nil

	case Clear:
		if len(s.Tasks) == 0 {
			return s, mood.Reaction{}, nil
		}
		return State{Tasks: []task.Task{}, Deleted: s.Deleted}, mood.Reaction{Mood: mood.Shocked, Quote: mood.Delete}, nil

	case Expire, Dismiss:
		next := State{Tasks: s.Tasks}
		if len(s.Tasks) == 0 {
			return next, mood.Reaction{Mood: mood.Thinking, Quote: mood.Welcome}, nil
		}
		return next, mood.Reaction{}, nil

	case Idle:
		return s, mood.Reaction{Mood: mood.Thinking, Quote: mood.Idle}, nil
	}
	return s, mood.Reaction{}, fmt.Errorf("%w: unknown action %T", ErrInvalid, a)
}

// Greeting is the reaction shown when a list is first loaded.
func Greeting(tasks []task.Task, now time.Time) mood.Reaction {
	if len(tasks) == 0 {
		return mood.Reaction{Mood: mood.Thinking, Quote: mood.Welcome}
	}
	if len(tasks) >= Capacity {
		return mood.Reaction{Mood: mood.Shocked, Quote: mood.Full}
	}
	for _, t := range tasks {
		if t.IsStale(now) {
			return mood.Reaction{Mood: mood.Thinking, Quote: mood.Idle}
		}
	}
	return mood.Reaction{Mood: mood.Thinking, Quote: mood.Welcome}
}

func indexOf(tasks []task.Task, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func clone(tasks []task.Task) []task.Task {
	out := make([]task.Task, len(tasks))
	copy(out, tasks)
	return out
}

func prepend(tasks []task.Task, t task.Task) []task.Task {
	out := make([]task.Task, 0, len(tasks)+1)
	out = append(out, t)
	return append(out, tasks...)
}
