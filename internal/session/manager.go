package session

import (
	"errors"
	"sync"
	"time"

	"practice-service/internal/models"
)

type State string

const (
	StateIdle     State = "idle"
	StateActive   State = "active"
	StatePaused   State = "paused"
	StateComplete State = "complete"
)

var (
	ErrNotActive       = errors.New("session is not active")
	ErrAlreadyComplete = errors.New("session already complete")
	ErrAlreadyStarted  = errors.New("session already started")
	ErrUnknownOption   = errors.New("answer does not match any option")
	ErrNoQuestions     = errors.New("session has no questions")
)

// minAnswerSeconds is the floor on recorded per-question time.
const minAnswerSeconds = 1

// AnswerOutcome reports the result of submitting an answer.
type AnswerOutcome struct {
	QuestionID       string `json:"question_id"`
	SelectedOption   string `json:"selected_option"`
	Correct          bool   `json:"correct"`
	TimeTakenSeconds int    `json:"time_taken_seconds"`
}

// Snapshot is the serializable session state mirrored to the ephemeral cache
// on every mutation so an interrupted session can resume. The durable record
// is written only at completion.
type Snapshot struct {
	SessionID        string             `json:"session_id"`
	ChildID          string             `json:"child_id"`
	SessionType      models.SessionType `json:"session_type"`
	QuestionIDs      []string           `json:"question_ids"`
	CurrentIndex     int                `json:"current_index"`
	Answers          map[string]string  `json:"answers"`
	TimeSpent        map[string]int     `json:"time_spent"`
	State            State              `json:"state"`
	StartTime        time.Time          `json:"start_time"`
	ElapsedSeconds   int                `json:"elapsed_seconds"`
	TimeLimitSeconds int                `json:"time_limit_seconds"`
}

// Manager is the state machine for one in-progress practice session:
// idle -> active -> {paused <-> active} -> complete. A background one-second
// timer accumulates elapsed time while active and, when a time limit is set
// (mock tests), forces completion at the limit.
type Manager struct {
	mu sync.Mutex

	sessionID   string
	childID     string
	sessionType models.SessionType

	questions []models.Question
	index     int
	answers   map[string]string
	timeSpent map[string]int
	shownAt   map[string]time.Time

	state            State
	startTime        time.Time
	elapsedSeconds   int
	timeLimitSeconds int

	stopTimer chan struct{}
	now       func() time.Time

	onMutate   func(Snapshot)
	onAnswer   func(AnswerOutcome)
	onComplete func(Snapshot)
}

// NewManager creates an idle manager for the given session identity.
func NewManager(sessionID, childID string, sessionType models.SessionType) *Manager {
	return &Manager{
		sessionID:   sessionID,
		childID:     childID,
		sessionType: sessionType,
		answers:     make(map[string]string),
		timeSpent:   make(map[string]int),
		shownAt:     make(map[string]time.Time),
		state:       StateIdle,
		now:         time.Now,
	}
}

// SetMirror registers the snapshot callback invoked after every mutation.
func (m *Manager) SetMirror(fn func(Snapshot)) { m.onMutate = fn }

// SetOnAnswer registers the fire-and-forget answer callback.
func (m *Manager) SetOnAnswer(fn func(AnswerOutcome)) { m.onAnswer = fn }

// SetOnComplete registers the completion callback. It runs once, with the
// final snapshot, whether completion came from Next, auto-submit or Complete.
func (m *Manager) SetOnComplete(fn func(Snapshot)) { m.onComplete = fn }

// Start moves idle -> active and begins the background timer.
// timeLimitSeconds <= 0 means untimed.
func (m *Manager) Start(questions []models.Question, timeLimitSeconds int) error {
	m.mu.Lock()

	if m.state != StateIdle {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	if len(questions) == 0 {
		m.mu.Unlock()
		return ErrNoQuestions
	}

	m.questions = questions
	m.index = 0
	m.startTime = m.now()
	m.timeLimitSeconds = timeLimitSeconds
	m.state = StateActive
	m.markShownLocked()

	m.stopTimer = make(chan struct{})
	go m.runTimer(m.stopTimer)

	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.mirror(snap)
	return nil
}

// SubmitAnswer records the answer for the current question along with the
// wall-clock time since the question was first shown (minimum one second).
// Valid only while active.
func (m *Manager) SubmitAnswer(optionID string) (*AnswerOutcome, error) {
	m.mu.Lock()

	if m.state != StateActive {
		m.mu.Unlock()
		return nil, ErrNotActive
	}

	q := m.questions[m.index]
	if !validOption(&q, optionID) {
		m.mu.Unlock()
		return nil, ErrUnknownOption
	}

	elapsed := minAnswerSeconds
	if shown, ok := m.shownAt[q.ID]; ok {
		if secs := int(m.now().Sub(shown).Seconds()); secs > elapsed {
			elapsed = secs
		}
	}

	m.answers[q.ID] = optionID
	m.timeSpent[q.ID] = elapsed

	outcome := AnswerOutcome{
		QuestionID:       q.ID,
		SelectedOption:   optionID,
		Correct:          q.IsCorrect(optionID),
		TimeTakenSeconds: elapsed,
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if m.onAnswer != nil {
		m.onAnswer(outcome)
	}
	m.mirror(snap)
	return &outcome, nil
}

// Next advances the pointer. On the last question it transitions to complete
// and reports done=true.
func (m *Manager) Next() (done bool, err error) {
	m.mu.Lock()

	if m.state == StateComplete {
		m.mu.Unlock()
		return true, ErrAlreadyComplete
	}
	if m.state != StateActive {
		m.mu.Unlock()
		return false, ErrNotActive
	}

	if m.index >= len(m.questions)-1 {
		snap := m.completeLocked()
		m.mu.Unlock()
		m.finish(snap)
		return true, nil
	}

	m.index++
	m.markShownLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.mirror(snap)
	return false, nil
}

// Previous moves the pointer back. A no-op on the first question.
func (m *Manager) Previous() error {
	m.mu.Lock()

	if m.state != StateActive {
		m.mu.Unlock()
		return ErrNotActive
	}
	if m.index == 0 {
		m.mu.Unlock()
		return nil
	}

	m.index--
	m.markShownLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.mirror(snap)
	return nil
}

// Pause halts the elapsed-time timer.
func (m *Manager) Pause() error {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return ErrNotActive
	}
	m.state = StatePaused
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.mirror(snap)
	return nil
}

// Resume restarts the timer and re-marks the current question as shown so
// paused time does not count against it.
func (m *Manager) Resume() error {
	m.mu.Lock()
	if m.state != StatePaused {
		m.mu.Unlock()
		return ErrNotActive
	}
	m.state = StateActive
	m.markShownLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.mirror(snap)
	return nil
}

// Complete forces the session to complete regardless of position.
func (m *Manager) Complete() error {
	m.mu.Lock()
	if m.state == StateComplete {
		m.mu.Unlock()
		return ErrAlreadyComplete
	}
	if m.state == StateIdle {
		m.mu.Unlock()
		return ErrNotActive
	}
	snap := m.completeLocked()
	m.mu.Unlock()

	m.finish(snap)
	return nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CurrentQuestion returns the question at the pointer, or nil when idle or
// complete.
func (m *Manager) CurrentQuestion() *models.Question {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive && m.state != StatePaused {
		return nil
	}
	q := m.questions[m.index]
	return &q
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Restore rebuilds a manager from a cached snapshot plus the re-fetched
// question records. The timer resumes only if the snapshot was active.
func Restore(snap Snapshot, questions []models.Question) (*Manager, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	m := NewManager(snap.SessionID, snap.ChildID, snap.SessionType)
	m.questions = questions
	m.index = snap.CurrentIndex
	if m.index < 0 || m.index >= len(questions) {
		m.index = 0
	}
	for id, a := range snap.Answers {
		m.answers[id] = a
	}
	for id, t := range snap.TimeSpent {
		m.timeSpent[id] = t
	}
	m.startTime = snap.StartTime
	m.elapsedSeconds = snap.ElapsedSeconds
	m.timeLimitSeconds = snap.TimeLimitSeconds
	m.state = snap.State
	if m.state == StateActive || m.state == StatePaused {
		m.markShownLocked()
		m.stopTimer = make(chan struct{})
		go m.runTimer(m.stopTimer)
	}
	return m, nil
}

// runTimer ticks once per second while the session is live. Stopped by
// completion; paused ticks are ignored rather than stopping the goroutine.
func (m *Manager) runTimer(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// tick advances elapsed time by one second and enforces the time limit.
// Exposed on the struct so tests can drive time without sleeping.
func (m *Manager) tick() {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return
	}

	m.elapsedSeconds++
	if m.timeLimitSeconds > 0 && m.elapsedSeconds >= m.timeLimitSeconds {
		snap := m.completeLocked()
		m.mu.Unlock()
		m.finish(snap)
		return
	}
	m.mu.Unlock()
}

func (m *Manager) completeLocked() Snapshot {
	m.state = StateComplete
	if m.stopTimer != nil {
		close(m.stopTimer)
		m.stopTimer = nil
	}
	return m.snapshotLocked()
}

func (m *Manager) finish(snap Snapshot) {
	m.mirror(snap)
	if m.onComplete != nil {
		m.onComplete(snap)
	}
}

func (m *Manager) mirror(snap Snapshot) {
	if m.onMutate != nil {
		m.onMutate(snap)
	}
}

// markShownLocked records first-display time for the current question. The
// timestamp resets on navigation and resume so time-spent reflects visible
// time only.
func (m *Manager) markShownLocked() {
	if m.index >= 0 && m.index < len(m.questions) {
		m.shownAt[m.questions[m.index].ID] = m.now()
	}
}

func (m *Manager) snapshotLocked() Snapshot {
	ids := make([]string, len(m.questions))
	for i, q := range m.questions {
		ids[i] = q.ID
	}
	answers := make(map[string]string, len(m.answers))
	for k, v := range m.answers {
		answers[k] = v
	}
	timeSpent := make(map[string]int, len(m.timeSpent))
	for k, v := range m.timeSpent {
		timeSpent[k] = v
	}
	return Snapshot{
		SessionID:        m.sessionID,
		ChildID:          m.childID,
		SessionType:      m.sessionType,
		QuestionIDs:      ids,
		CurrentIndex:     m.index,
		Answers:          answers,
		TimeSpent:        timeSpent,
		State:            m.state,
		StartTime:        m.startTime,
		ElapsedSeconds:   m.elapsedSeconds,
		TimeLimitSeconds: m.timeLimitSeconds,
	}
}

func validOption(q *models.Question, optionID string) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}
