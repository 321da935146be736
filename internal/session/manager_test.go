package session

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"practice-service/internal/models"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testQuestions(n int) []models.Question {
	qs := make([]models.Question, 0, n)
	for i := 0; i < n; i++ {
		qs = append(qs, models.Question{
			ID:      fmt.Sprintf("q%d", i),
			Subject: "maths",
			Topic:   "fractions",
			Content: fmt.Sprintf("Question %d", i),
			Options: [models.OptionCount]models.Option{
				{ID: "a", Text: "A"}, {ID: "b", Text: "B"}, {ID: "c", Text: "C"}, {ID: "d", Text: "D"},
			},
			Difficulty:    models.TierStandard,
			CorrectOption: "a",
			Published:     true,
		})
	}
	return qs
}

func startedManager(t *testing.T, n, limit int) (*Manager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	m := NewManager("sess-1", "child-1", models.SessionQuick)
	m.now = clock.now
	if err := m.Start(testQuestions(n), limit); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return m, clock
}

func TestLifecycleTransitions(t *testing.T) {
	m := NewManager("sess-1", "child-1", models.SessionQuick)
	if m.State() != StateIdle {
		t.Fatalf("expected idle, got %s", m.State())
	}
	if _, err := m.SubmitAnswer("a"); !errors.Is(err, ErrNotActive) {
		t.Errorf("expected ErrNotActive before start, got %v", err)
	}

	if err := m.Start(testQuestions(3), 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if m.State() != StateActive {
		t.Errorf("expected active after start, got %s", m.State())
	}
	if err := m.Start(testQuestions(3), 0); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestStartRequiresQuestions(t *testing.T) {
	m := NewManager("sess-1", "child-1", models.SessionQuick)
	if err := m.Start(nil, 0); !errors.Is(err, ErrNoQuestions) {
		t.Errorf("expected ErrNoQuestions, got %v", err)
	}
}

func TestSubmitAnswer(t *testing.T) {
	m, clock := startedManager(t, 3, 0)

	if _, err := m.SubmitAnswer("z"); !errors.Is(err, ErrUnknownOption) {
		t.Errorf("expected ErrUnknownOption, got %v", err)
	}

	// Instant answers still record the one-second floor.
	outcome, err := m.SubmitAnswer("a")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if !outcome.Correct {
		t.Error("expected option a to be correct")
	}
	if outcome.TimeTakenSeconds != 1 {
		t.Errorf("expected minimum 1s recorded, got %d", outcome.TimeTakenSeconds)
	}

	if _, err := m.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	clock.advance(5 * time.Second)
	outcome, err = m.SubmitAnswer("b")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if outcome.Correct {
		t.Error("expected option b to be incorrect")
	}
	if outcome.TimeTakenSeconds != 5 {
		t.Errorf("expected 5s recorded, got %d", outcome.TimeTakenSeconds)
	}
}

func TestNextCompletesOnLastQuestion(t *testing.T) {
	m, _ := startedManager(t, 2, 0)

	done, err := m.Next()
	if err != nil || done {
		t.Fatalf("mid-session Next: done=%v err=%v", done, err)
	}

	done, err = m.Next()
	if err != nil {
		t.Fatalf("final Next: %v", err)
	}
	if !done {
		t.Error("expected done=true on the last question")
	}
	if m.State() != StateComplete {
		t.Errorf("expected complete, got %s", m.State())
	}

	if _, err := m.Next(); !errors.Is(err, ErrAlreadyComplete) {
		t.Errorf("expected ErrAlreadyComplete, got %v", err)
	}
	if _, err := m.SubmitAnswer("a"); !errors.Is(err, ErrNotActive) {
		t.Errorf("expected ErrNotActive after completion, got %v", err)
	}
}

func TestPreviousIsNoOpOnFirstQuestion(t *testing.T) {
	m, _ := startedManager(t, 3, 0)

	if err := m.Previous(); err != nil {
		t.Fatalf("Previous on first question: %v", err)
	}
	if m.Snapshot().CurrentIndex != 0 {
		t.Errorf("expected index 0, got %d", m.Snapshot().CurrentIndex)
	}

	if _, err := m.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if err := m.Previous(); err != nil {
		t.Fatalf("Previous: %v", err)
	}
	if m.Snapshot().CurrentIndex != 0 {
		t.Errorf("expected index back at 0, got %d", m.Snapshot().CurrentIndex)
	}
}

func TestPauseAndResume(t *testing.T) {
	m, clock := startedManager(t, 3, 0)

	if err := m.Resume(); !errors.Is(err, ErrNotActive) {
		t.Errorf("expected ErrNotActive resuming an active session, got %v", err)
	}
	if err := m.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if m.State() != StatePaused {
		t.Errorf("expected paused, got %s", m.State())
	}
	if _, err := m.SubmitAnswer("a"); !errors.Is(err, ErrNotActive) {
		t.Errorf("expected ErrNotActive while paused, got %v", err)
	}

	// Paused ticks must not accumulate elapsed time.
	before := m.Snapshot().ElapsedSeconds
	m.tick()
	if got := m.Snapshot().ElapsedSeconds; got != before {
		t.Errorf("elapsed advanced while paused: %d -> %d", before, got)
	}

	// Time spent paused does not count against the current question.
	clock.advance(30 * time.Second)
	if err := m.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	clock.advance(2 * time.Second)
	outcome, err := m.SubmitAnswer("a")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if outcome.TimeTakenSeconds != 2 {
		t.Errorf("expected 2s after resume, got %d", outcome.TimeTakenSeconds)
	}
}

func TestTimeLimitAutoCompletes(t *testing.T) {
	m, _ := startedManager(t, 5, 3)

	completions := 0
	m.SetOnComplete(func(snap Snapshot) {
		completions++
		if snap.State != StateComplete {
			t.Errorf("completion snapshot in state %s", snap.State)
		}
	})

	m.tick()
	m.tick()
	if m.State() != StateActive {
		t.Fatalf("completed early at %d elapsed", m.Snapshot().ElapsedSeconds)
	}
	m.tick()
	if m.State() != StateComplete {
		t.Errorf("expected auto-completion at the limit, got %s", m.State())
	}
	if completions != 1 {
		t.Errorf("expected one completion callback, got %d", completions)
	}

	// Further ticks and an explicit Complete change nothing.
	m.tick()
	if err := m.Complete(); !errors.Is(err, ErrAlreadyComplete) {
		t.Errorf("expected ErrAlreadyComplete, got %v", err)
	}
	if completions != 1 {
		t.Errorf("completion callback ran again, count %d", completions)
	}
}

func TestCompleteFromIdle(t *testing.T) {
	m := NewManager("sess-1", "child-1", models.SessionQuick)
	if err := m.Complete(); !errors.Is(err, ErrNotActive) {
		t.Errorf("expected ErrNotActive completing an idle session, got %v", err)
	}
}

func TestMirrorFiresOnMutation(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	m := NewManager("sess-1", "child-1", models.SessionQuick)
	m.now = clock.now

	var snaps []Snapshot
	m.SetMirror(func(snap Snapshot) { snaps = append(snaps, snap) })

	if err := m.Start(testQuestions(2), 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := m.SubmitAnswer("a"); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if _, err := m.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}

	if len(snaps) != 3 {
		t.Fatalf("expected a snapshot per mutation, got %d", len(snaps))
	}
	last := snaps[len(snaps)-1]
	if last.Answers["q0"] != "a" {
		t.Errorf("snapshot missing recorded answer: %v", last.Answers)
	}
	if last.CurrentIndex != 1 {
		t.Errorf("expected snapshot index 1, got %d", last.CurrentIndex)
	}
}

func TestRestore(t *testing.T) {
	questions := testQuestions(3)
	snap := Snapshot{
		SessionID:        "sess-1",
		ChildID:          "child-1",
		SessionType:      models.SessionQuick,
		QuestionIDs:      []string{"q0", "q1", "q2"},
		CurrentIndex:     1,
		Answers:          map[string]string{"q0": "a"},
		TimeSpent:        map[string]int{"q0": 4},
		State:            StatePaused,
		StartTime:        time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		ElapsedSeconds:   42,
		TimeLimitSeconds: 0,
	}

	m, err := Restore(snap, questions)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if m.State() != StatePaused {
		t.Errorf("expected restored paused state, got %s", m.State())
	}

	got := m.Snapshot()
	if got.CurrentIndex != 1 || got.ElapsedSeconds != 42 {
		t.Errorf("restored snapshot mismatch: %+v", got)
	}
	if got.Answers["q0"] != "a" || got.TimeSpent["q0"] != 4 {
		t.Errorf("restored answers lost: %+v", got)
	}

	if err := m.Resume(); err != nil {
		t.Fatalf("Resume after restore: %v", err)
	}
	if q := m.CurrentQuestion(); q == nil || q.ID != "q1" {
		t.Errorf("expected q1 current after restore, got %+v", q)
	}

	if _, err := Restore(snap, nil); !errors.Is(err, ErrNoQuestions) {
		t.Errorf("expected ErrNoQuestions restoring without questions, got %v", err)
	}

	// Out-of-range index from a corrupted snapshot resets to the start.
	bad := snap
	bad.CurrentIndex = 99
	m, err = Restore(bad, questions)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := m.Snapshot().CurrentIndex; got != 0 {
		t.Errorf("expected index reset for bad snapshot, got %d", got)
	}
}
