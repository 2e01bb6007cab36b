package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirbrooks/fivetask/internal/kv"
	"github.com/amirbrooks/fivetask/internal/mood"
	"github.com/amirbrooks/fivetask/internal/task"
)

var epoch = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type fixture struct {
	st    *Store
	kv    *kv.Memory
	clock *ManualClock
	pool  *mood.Pool
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	return openFixture(t, kv.NewMemory(), NewManualClock(epoch), opts...)
}

func openFixture(t *testing.T, mem *kv.Memory, clock *ManualClock, opts ...Option) fixture {
	t.Helper()
	pool, err := mood.LoadPool("en")
	require.NoError(t, err)
	base := []Option{WithClock(clock), WithPicker(mood.NewPicker(pool, rand.NewPCG(1, 1)))}
	st, err := Open(mem, append(base, opts...)...)
	require.NoError(t, err)
	return fixture{st: st, kv: mem, clock: clock, pool: pool}
}

func (f fixture) mustAdd(t *testing.T, text string) task.Task {
	t.Helper()
	tk, err := f.st.Add(text)
	require.NoError(t, err)
	return tk
}

func (f fixture) stored(t *testing.T) []task.Task {
	t.Helper()
	b, err := f.kv.Get(DefaultKey)
	require.NoError(t, err)
	var out []task.Task
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func never(string) bool  { return false }
func always(string) bool { return true }

func TestOpenEmptyGreets(t *testing.T) {
	f := newFixture(t)
	snap := f.st.Snapshot()
	assert.Empty(t, snap.Tasks)
	assert.Equal(t, mood.Thinking, snap.Mood)
	assert.True(t, f.pool.Contains(mood.Welcome, snap.Quote))
	assert.Equal(t, Capacity, snap.Remaining)
}

func TestAddPrependsAndPersists(t *testing.T) {
	f := newFixture(t)
	a := f.mustAdd(t, "first")
	f.clock.Advance(time.Second)
	b := f.mustAdd(t, "  second  ")

	snap := f.st.Snapshot()
	require.Len(t, snap.Tasks, 2)
	assert.Equal(t, b.ID, snap.Tasks[0].ID)
	assert.Equal(t, "second", snap.Tasks[0].Text)
	assert.Equal(t, a.ID, snap.Tasks[1].ID)
	assert.Equal(t, epoch.Add(time.Second), snap.Tasks[0].CreatedAt)
	assert.Equal(t, mood.Thinking, snap.Mood)
	assert.True(t, f.pool.Contains(mood.Add, snap.Quote))
	assert.Equal(t, 3, snap.Remaining)

	assert.Equal(t, snap.Tasks, f.stored(t))
}

func TestAddRejectsBlankText(t *testing.T) {
	f := newFixture(t)
	for _, text := range []string{"", "   ", "\t\n"} {
		_, err := f.st.Add(text)
		assert.ErrorIs(t, err, ErrInvalid)
	}
	assert.Empty(t, f.st.Snapshot().Tasks)
	_, err := f.kv.Get(DefaultKey)
	assert.ErrorIs(t, err, kv.ErrNotFound, "no-op must not write")
}

func TestCapacityIsFive(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < Capacity; i++ {
		f.mustAdd(t, "task")
	}
	snap := f.st.Snapshot()
	assert.Len(t, snap.Tasks, Capacity)
	assert.Equal(t, mood.Shocked, snap.Mood, "filling the list shocks the mascot")
	assert.True(t, snap.Full())

	for i := 0; i < 3; i++ {
		_, err := f.st.Add("one too many")
		assert.ErrorIs(t, err, ErrFull)
	}
	snap = f.st.Snapshot()
	assert.Len(t, snap.Tasks, Capacity)
	assert.Equal(t, mood.Shocked, snap.Mood)
	assert.True(t, f.pool.Contains(mood.Full, snap.Quote))
}

func TestToggleTwiceRestores(t *testing.T) {
	f := newFixture(t)
	f.mustAdd(t, "a")
	b := f.mustAdd(t, "b")
	f.mustAdd(t, "c")
	before := f.st.Snapshot().Tasks

	require.NoError(t, f.st.ToggleComplete(b.ID))
	snap := f.st.Snapshot()
	assert.True(t, snap.Tasks[1].Completed)
	assert.Equal(t, mood.Happy, snap.Mood)
	assert.True(t, f.pool.Contains(mood.Complete, snap.Quote))
	quote := snap.Quote

	require.NoError(t, f.st.ToggleComplete(b.ID))
	snap = f.st.Snapshot()
	assert.Equal(t, before, snap.Tasks)
	assert.Equal(t, mood.Thinking, snap.Mood)
	assert.Equal(t, quote, snap.Quote, "un-completing keeps the quote")
}

func TestToggleUnknownIsNoop(t *testing.T) {
	f := newFixture(t)
	f.mustAdd(t, "a")
	before := f.st.Snapshot()
	assert.ErrorIs(t, f.st.ToggleComplete("tsk_nope"), ErrNotFound)
	assert.Equal(t, before, f.st.Snapshot())
}

func TestDeleteThenUndoRestoresIdentically(t *testing.T) {
	f := newFixture(t)
	a := f.mustAdd(t, "a")
	b := f.mustAdd(t, "b")
	require.NoError(t, f.st.ToggleComplete(a.ID))
	orig := f.st.Snapshot().Tasks[1]

	removed, err := f.st.Delete(a.ID)
	require.NoError(t, err)
	assert.Equal(t, orig, removed)
	snap := f.st.Snapshot()
	assert.Len(t, snap.Tasks, 1)
	require.NotNil(t, snap.Undo)
	assert.Equal(t, orig, *snap.Undo)
	assert.Equal(t, epoch.Add(DefaultUndoWindow), snap.UndoDeadline)
	assert.Equal(t, mood.Excited, snap.Mood)
	assert.True(t, f.pool.Contains(mood.Delete, snap.Quote))

	require.NoError(t, f.st.UndoDelete())
	snap = f.st.Snapshot()
	require.Len(t, snap.Tasks, 2)
	assert.Equal(t, orig, snap.Tasks[0], "undo reinserts at the front")
	assert.Equal(t, b.ID, snap.Tasks[1].ID)
	assert.Nil(t, snap.Undo)
	assert.Equal(t, mood.Happy, snap.Mood)
	assert.Equal(t, f.pool.Quotes[mood.Restored][0], snap.Quote)
	assert.Zero(t, f.clock.Pending(), "undo cancels the expiry")

	assert.ErrorIs(t, f.st.UndoDelete(), ErrNothingToUndo)
}

func TestDeleteUnknownIsNoop(t *testing.T) {
	f := newFixture(t)
	f.mustAdd(t, "a")
	_, err := f.st.Delete("tsk_missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, f.st.Snapshot().Undo)
	assert.Zero(t, f.clock.Pending())
}

func TestUndoWhileFullKeepsBuffer(t *testing.T) {
	f := newFixture(t)
	var ids []string
	for i := 0; i < Capacity; i++ {
		ids = append(ids, f.mustAdd(t, "t").ID)
	}
	_, err := f.st.Delete(ids[0])
	require.NoError(t, err)
	f.mustAdd(t, "refill")
	before := f.st.Snapshot()
	require.NotNil(t, before.Undo)

	err = f.st.UndoDelete()
	assert.ErrorIs(t, err, ErrFull)
	after := f.st.Snapshot()
	assert.Equal(t, before.Tasks, after.Tasks)
	assert.Equal(t, before.Undo, after.Undo)
	assert.Equal(t, 1, f.clock.Pending(), "expiry keeps running")
}

func TestUndoExpiresAfterWindow(t *testing.T) {
	f := newFixture(t)
	a := f.mustAdd(t, "a")
	f.mustAdd(t, "b")
	_, err := f.st.Delete(a.ID)
	require.NoError(t, err)

	f.clock.Advance(DefaultUndoWindow - time.Millisecond)
	assert.NotNil(t, f.st.Snapshot().Undo)

	f.clock.Advance(time.Millisecond)
	snap := f.st.Snapshot()
	assert.Nil(t, snap.Undo)
	assert.Equal(t, mood.Excited, snap.Mood, "non-empty list keeps its mood on expiry")
	assert.ErrorIs(t, f.st.UndoDelete(), ErrNothingToUndo)
	assert.Len(t, f.st.Snapshot().Tasks, 1)
}

func TestSecondDeleteSupersedesFirst(t *testing.T) {
	f := newFixture(t)
	a := f.mustAdd(t, "a")
	b := f.mustAdd(t, "b")
	f.mustAdd(t, "c")

	_, err := f.st.Delete(a.ID)
	require.NoError(t, err)
	f.clock.Advance(3 * time.Second)
	_, err = f.st.Delete(b.ID)
	require.NoError(t, err)

	// the first delete's timer would fire here; it must not clear b
	f.clock.Advance(2 * time.Second)
	snap := f.st.Snapshot()
	require.NotNil(t, snap.Undo)
	assert.Equal(t, b.ID, snap.Undo.ID)

	require.NoError(t, f.st.UndoDelete())
	snap = f.st.Snapshot()
	assert.Equal(t, b.ID, snap.Tasks[0].ID)
	for _, tk := range snap.Tasks {
		assert.NotEqual(t, a.ID, tk.ID, "only the latest deletion is recoverable")
	}
}

func TestStaleTimerCannotClearNewerBuffer(t *testing.T) {
	f := newFixture(t)
	a := f.mustAdd(t, "a")
	b := f.mustAdd(t, "b")
	_, err := f.st.Delete(a.ID)
	require.NoError(t, err)
	oldToken := f.st.undo.token

	_, err = f.st.Delete(b.ID)
	require.NoError(t, err)

	// simulate a callback that raced past Stop
	f.st.expire(oldToken)
	snap := f.st.Snapshot()
	require.NotNil(t, snap.Undo)
	assert.Equal(t, b.ID, snap.Undo.ID)
}

func TestUndoAfterDeadlineEvenIfTimerLate(t *testing.T) {
	mem := kv.NewMemory()
	clock := NewManualClock(epoch)
	f := openFixture(t, mem, clock)
	a := f.mustAdd(t, "a")
	_, err := f.st.Delete(a.ID)
	require.NoError(t, err)

	// stop the timer so only the deadline check protects undo
	f.st.undo.timer.Stop()
	clock.Advance(DefaultUndoWindow)
	assert.ErrorIs(t, f.st.UndoDelete(), ErrNothingToUndo)
	assert.Nil(t, f.st.Snapshot().Undo)
}

func TestExpiryOnEmptyListResetsToWelcome(t *testing.T) {
	f := newFixture(t)
	a := f.mustAdd(t, "only")
	_, err := f.st.Delete(a.ID)
	require.NoError(t, err)
	assert.Equal(t, mood.Excited, f.st.Snapshot().Mood)

	f.clock.Advance(DefaultUndoWindow)
	snap := f.st.Snapshot()
	assert.Equal(t, mood.Thinking, snap.Mood)
	assert.True(t, f.pool.Contains(mood.Welcome, snap.Quote))
}

func TestDismissUndo(t *testing.T) {
	f := newFixture(t)
	a := f.mustAdd(t, "a")
	_, err := f.st.Delete(a.ID)
	require.NoError(t, err)

	f.st.DismissUndo()
	assert.Nil(t, f.st.Snapshot().Undo)
	assert.Zero(t, f.clock.Pending())
	assert.ErrorIs(t, f.st.UndoDelete(), ErrNothingToUndo)
	f.st.DismissUndo()
}

func TestEditText(t *testing.T) {
	f := newFixture(t)
	a := f.mustAdd(t, "a")
	b := f.mustAdd(t, "b")
	moodBefore := f.st.Snapshot().Mood
	quoteBefore := f.st.Snapshot().Quote

	assert.ErrorIs(t, f.st.EditText(a.ID, ""), ErrInvalid)
	assert.ErrorIs(t, f.st.EditText(a.ID, "   "), ErrInvalid)
	assert.Equal(t, "a", f.st.Snapshot().Tasks[1].Text)

	require.NoError(t, f.st.EditText(a.ID, "Buy milk"))
	snap := f.st.Snapshot()
	assert.Equal(t, "Buy milk", snap.Tasks[1].Text)
	assert.Equal(t, "b", snap.Tasks[0].Text)
	assert.Equal(t, b.ID, snap.Tasks[0].ID)
	assert.Equal(t, moodBefore, snap.Mood)
	assert.Equal(t, quoteBefore, snap.Quote)

	assert.ErrorIs(t, f.st.EditText("tsk_x", "y"), ErrNotFound)
	assert.Equal(t, "Buy milk", f.stored(t)[1].Text)
}

func TestClearAllNeedsConfirmation(t *testing.T) {
	f := newFixture(t)
	f.mustAdd(t, "a")
	f.mustAdd(t, "b")
	before := f.st.Snapshot()

	var asked string
	err := f.st.ClearAll(ConfirmFunc(func(p string) bool { asked = p; return false }))
	assert.ErrorIs(t, err, ErrCanceled)
	assert.Equal(t, f.pool.Notices.ClearConfirm, asked)
	assert.Equal(t, before, f.st.Snapshot())

	assert.ErrorIs(t, f.st.ClearAll(nil), ErrCanceled)

	require.NoError(t, f.st.ClearAll(ConfirmFunc(always)))
	snap := f.st.Snapshot()
	assert.Empty(t, snap.Tasks)
	assert.Equal(t, mood.Shocked, snap.Mood)
	assert.True(t, f.pool.Contains(mood.Delete, snap.Quote))
	assert.Empty(t, f.stored(t))
}

func TestClearAllOnEmptyDoesNotAsk(t *testing.T) {
	f := newFixture(t)
	asked := false
	require.NoError(t, f.st.ClearAll(ConfirmFunc(func(string) bool { asked = true; return true })))
	assert.False(t, asked)
}

func TestIdle(t *testing.T) {
	f := newFixture(t)
	f.mustAdd(t, "a")
	f.st.Idle()
	snap := f.st.Snapshot()
	assert.Equal(t, mood.Thinking, snap.Mood)
	assert.True(t, f.pool.Contains(mood.Idle, snap.Quote))
}

func TestScenarioWriteSpec(t *testing.T) {
	f := newFixture(t)
	tk := f.mustAdd(t, "Write spec")
	snap := f.st.Snapshot()
	require.Len(t, snap.Tasks, 1)
	assert.Equal(t, "Write spec", snap.Tasks[0].Text)
	assert.False(t, snap.Tasks[0].Completed)
	assert.Equal(t, mood.Thinking, snap.Mood)

	require.NoError(t, f.st.ToggleComplete(tk.ID))
	snap = f.st.Snapshot()
	assert.True(t, snap.Tasks[0].Completed)
	assert.Equal(t, mood.Happy, snap.Mood)

	_, err := f.st.Delete(tk.ID)
	require.NoError(t, err)
	snap = f.st.Snapshot()
	assert.Empty(t, snap.Tasks)
	require.NotNil(t, snap.Undo)
	assert.Equal(t, tk.ID, snap.Undo.ID)
	assert.Equal(t, mood.Excited, snap.Mood)

	require.NoError(t, f.st.UndoDelete())
	snap = f.st.Snapshot()
	require.Len(t, snap.Tasks, 1)
	assert.True(t, snap.Tasks[0].Completed)
	assert.Equal(t, tk.ID, snap.Tasks[0].ID)
}

func TestStaleness(t *testing.T) {
	f := newFixture(t)
	a := f.mustAdd(t, "old")
	b := f.mustAdd(t, "old but done")
	require.NoError(t, f.st.ToggleComplete(b.ID))

	f.clock.Advance(86_400_001 * time.Millisecond)
	snap := f.st.Snapshot()
	for _, tk := range snap.Tasks {
		switch tk.ID {
		case a.ID:
			assert.True(t, snap.IsStale(tk))
		case b.ID:
			assert.False(t, snap.IsStale(tk))
		}
	}
}

func TestReopenRestoresTasksAndPendingUndo(t *testing.T) {
	mem := kv.NewMemory()
	clock := NewManualClock(epoch)
	f := openFixture(t, mem, clock)
	a := f.mustAdd(t, "a")
	f.mustAdd(t, "b")
	_, err := f.st.Delete(a.ID)
	require.NoError(t, err)

	clock.Advance(time.Second)
	g := openFixture(t, mem, clock)
	snap := g.st.Snapshot()
	require.Len(t, snap.Tasks, 1)
	require.NotNil(t, snap.Undo)
	assert.Equal(t, a.ID, snap.Undo.ID)
	assert.Equal(t, epoch.Add(DefaultUndoWindow), snap.UndoDeadline)

	require.NoError(t, g.st.UndoDelete())
	assert.Len(t, g.st.Snapshot().Tasks, 2)
}

func TestReopenAfterWindowDropsUndo(t *testing.T) {
	mem := kv.NewMemory()
	clock := NewManualClock(epoch)
	f := openFixture(t, mem, clock)
	a := f.mustAdd(t, "a")
	_, err := f.st.Delete(a.ID)
	require.NoError(t, err)

	other := NewManualClock(epoch.Add(5 * time.Second))
	g := openFixture(t, mem, other)
	assert.Nil(t, g.st.Snapshot().Undo)
	assert.ErrorIs(t, g.st.UndoDelete(), ErrNothingToUndo)

	b, err := mem.Get("5task_undo")
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}

func TestMalformedDataStartsEmpty(t *testing.T) {
	cases := map[string]string{
		"garbage":     `{not json`,
		"wrong shape": `{"id":"x"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			mem := kv.NewMemory()
			require.NoError(t, mem.Put(DefaultKey, []byte(payload)))
			require.NoError(t, mem.Put("5task_undo", []byte(`[1,2`)))
			var logs bytes.Buffer
			f := openFixture(t, mem, NewManualClock(epoch), WithLogger(log.New(&logs, "", 0)))
			snap := f.st.Snapshot()
			assert.Empty(t, snap.Tasks)
			assert.Nil(t, snap.Undo)
			assert.Equal(t, mood.Thinking, snap.Mood)
			assert.Contains(t, logs.String(), "malformed")
		})
	}
}

func TestLoadSanitizesEntries(t *testing.T) {
	mem := kv.NewMemory()
	payload := `[
		{"id":"tsk_1","text":"one","completed":false,"createdAt":1},
		{"id":"","text":"no id","completed":false,"createdAt":1},
		{"id":"tsk_1","text":"dup","completed":false,"createdAt":1},
		{"id":"tsk_2","text":"two","completed":true,"createdAt":2},
		{"id":"tsk_3","text":"three","completed":false,"createdAt":3},
		{"id":"tsk_4","text":"four","completed":false,"createdAt":4},
		{"id":"tsk_5","text":"five","completed":false,"createdAt":5},
		{"id":"tsk_6","text":"six","completed":false,"createdAt":6}
	]`
	require.NoError(t, mem.Put(DefaultKey, []byte(payload)))
	f := openFixture(t, mem, NewManualClock(epoch))
	snap := f.st.Snapshot()
	require.Len(t, snap.Tasks, Capacity)
	assert.Equal(t, "tsk_1", snap.Tasks[0].ID)
	assert.Equal(t, "tsk_5", snap.Tasks[4].ID)
	assert.Equal(t, mood.Shocked, snap.Mood, "opening a full list shocks the mascot")
}

func TestOpenWithStaleTaskUsesIdleQuote(t *testing.T) {
	mem := kv.NewMemory()
	old := task.Task{ID: "tsk_old", Text: "old", CreatedAt: epoch.Add(-48 * time.Hour)}
	b, err := json.Marshal([]task.Task{old})
	require.NoError(t, err)
	require.NoError(t, mem.Put(DefaultKey, b))

	f := openFixture(t, mem, NewManualClock(epoch))
	assert.True(t, f.pool.Contains(mood.Idle, f.st.Snapshot().Quote))
}

type failingKV struct{ kv.Memory }

func (failingKV) Get(string) ([]byte, error) { return nil, errors.New("disk on fire") }

func TestOpenReportsReadFailure(t *testing.T) {
	_, err := Open(&failingKV{}, WithClock(NewManualClock(epoch)))
	assert.Error(t, err)
}

type brokenWrites struct{ *kv.Memory }

func (brokenWrites) Put(string, []byte) error { return errors.New("read-only") }

func TestSaveFailureIsLoggedNotReturned(t *testing.T) {
	var logs bytes.Buffer
	st, err := Open(brokenWrites{kv.NewMemory()}, WithClock(NewManualClock(epoch)), WithLogger(log.New(&logs, "", 0)))
	require.NoError(t, err)
	_, err = st.Add("still works")
	require.NoError(t, err)
	assert.Len(t, st.Snapshot().Tasks, 1)
	assert.Contains(t, logs.String(), "read-only")
}

func TestCustomKey(t *testing.T) {
	mem := kv.NewMemory()
	f := openFixture(t, mem, NewManualClock(epoch), WithKey("work"))
	a := f.mustAdd(t, "a")
	_, err := f.st.Delete(a.ID)
	require.NoError(t, err)

	_, err = mem.Get("work")
	assert.NoError(t, err)
	_, err = mem.Get("work_undo")
	assert.NoError(t, err)
	_, err = mem.Get(DefaultKey)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestUndoWindowOption(t *testing.T) {
	f := newFixture(t, WithUndoWindow(10*time.Second))
	a := f.mustAdd(t, "a")
	_, err := f.st.Delete(a.ID)
	require.NoError(t, err)
	f.clock.Advance(DefaultUndoWindow)
	assert.NotNil(t, f.st.Snapshot().Undo)
	f.clock.Advance(6 * time.Second)
	assert.Nil(t, f.st.Snapshot().Undo)
}

func TestUpdatesCarryLatestSnapshot(t *testing.T) {
	f := newFixture(t)
	a := f.mustAdd(t, "a")
	f.mustAdd(t, "b")

	snap := <-f.st.Updates()
	assert.Len(t, snap.Tasks, 2, "older snapshots are coalesced")

	_, err := f.st.Delete(a.ID)
	require.NoError(t, err)
	<-f.st.Updates()

	f.clock.Advance(DefaultUndoWindow)
	select {
	case snap = <-f.st.Updates():
		assert.Nil(t, snap.Undo)
	default:
		t.Fatal("expected an update after undo expiry")
	}
}

func TestResolve(t *testing.T) {
	mem := kv.NewMemory()
	payload := `[
		{"id":"tsk_01AAAA","text":"one","completed":false,"createdAt":1},
		{"id":"tsk_01AABB","text":"two","completed":false,"createdAt":2},
		{"id":"tsk_02CCCC","text":"three","completed":false,"createdAt":3}
	]`
	require.NoError(t, mem.Put(DefaultKey, []byte(payload)))
	f := openFixture(t, mem, NewManualClock(epoch))

	id, err := f.st.Resolve("2")
	require.NoError(t, err)
	assert.Equal(t, "tsk_01AABB", id)

	id, err = f.st.Resolve("02")
	require.NoError(t, err)
	assert.Equal(t, "tsk_02CCCC", id)

	id, err = f.st.Resolve("tsk_01aabb")
	require.NoError(t, err)
	assert.Equal(t, "tsk_01AABB", id)

	_, err = f.st.Resolve("01AA")
	var conflict *MatchConflictError
	require.ErrorAs(t, err, &conflict)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Len(t, conflict.Matches, 2)

	_, err = f.st.Resolve("9")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.st.Resolve("ZZ")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.st.Resolve(" ")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSnapshotIsACopy(t *testing.T) {
	f := newFixture(t)
	f.mustAdd(t, "a")
	snap := f.st.Snapshot()
	snap.Tasks[0].Text = "mutated"
	assert.Equal(t, "a", f.st.Snapshot().Tasks[0].Text)
}

func TestCloseStopsTimerButKeepsUndo(t *testing.T) {
	f := newFixture(t)
	a := f.mustAdd(t, "a")
	_, err := f.st.Delete(a.ID)
	require.NoError(t, err)
	require.Equal(t, 1, f.clock.Pending())

	require.NoError(t, f.st.Close())
	assert.Equal(t, 0, f.clock.Pending())

	b, err := f.kv.Get("5task_undo")
	require.NoError(t, err)
	var e undoEntry
	require.NoError(t, json.Unmarshal(b, &e))
	assert.Equal(t, a.ID, e.Task.ID)
}
