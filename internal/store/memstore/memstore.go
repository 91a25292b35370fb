// Package memstore implements the store repositories in memory. It backs
// engine tests and mirrors the conditional-write semantics of the SQL store.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/checkin/internal/domain"
	"github.com/abhisek/checkin/internal/store"
)

// Store is an in-memory, concurrency-safe store.
type Store struct {
	mu            sync.Mutex
	children      map[string]domain.ChildProfile
	sessions      map[string]domain.Session
	locks         map[string]lock // by child id
	questions     map[string]domain.Question
	questionOrder []string
	progress      map[string]*domain.ProgressRecord // child|date
	lessons       []domain.Lesson
	notifications []domain.NotificationLog
	llmEvents     []store.LLMRequestEvent

	// Fail, when set, is consulted before every write. A non-nil return
	// aborts the write with that error.
	Fail func(op string) error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		children:  map[string]domain.ChildProfile{},
		sessions:  map[string]domain.Session{},
		locks:     map[string]lock{},
		questions: map[string]domain.Question{},
		progress:  map[string]*domain.ProgressRecord{},
	}
}

func (s *Store) fail(op string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op)
}

func (s *Store) ChildRepo() store.ChildRepo               { return childRepo{s} }
func (s *Store) SessionRepo() store.SessionRepo           { return sessionRepo{s} }
func (s *Store) QuestionRepo() store.QuestionRepo         { return questionRepo{s} }
func (s *Store) ProgressRepo() store.ProgressRepo         { return progressRepo{s} }
func (s *Store) LessonRepo() store.LessonRepo             { return lessonRepo{s} }
func (s *Store) NotificationRepo() store.NotificationRepo { return notificationRepo{s} }
func (s *Store) LLMEventRepo() store.LLMEventRepo         { return llmEventRepo{s} }

// Notifications returns a copy of the notification log, oldest first.
func (s *Store) Notifications() []domain.NotificationLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.notifications)
}

// Questions returns a copy of every stored question in insertion order.
func (s *Store) Questions() []domain.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Question, 0, len(s.questionOrder))
	for _, id := range s.questionOrder {
		out = append(out, cloneQuestion(s.questions[id]))
	}
	return out
}

// LockHolder returns the session holding the child's lock, if any.
func (s *Store) LockHolder(childID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[childID]
	return l.sessionID, ok
}

// AgeLock backdates the child's lock by d.
func (s *Store) AgeLock(childID string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[childID]; ok {
		l.acquiredAt = l.acquiredAt.Add(-d)
		s.locks[childID] = l
	}
}

type lock struct {
	sessionID  string
	acquiredAt time.Time
}

type childRepo struct{ s *Store }

func (r childRepo) Create(_ context.Context, c *domain.ChildProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("child.create"); err != nil {
		return err
	}
	if _, ok := r.s.children[c.ID]; ok {
		return fmt.Errorf("child %s: %w", c.ID, store.ErrConflict)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.UpdatedAt = c.CreatedAt
	r.s.children[c.ID] = *c
	return nil
}

func (r childRepo) Get(_ context.Context, id string) (*domain.ChildProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.children[id]
	if !ok {
		return nil, fmt.Errorf("get child %s: %w", id, store.ErrNotFound)
	}
	return &c, nil
}

func (r childRepo) List(_ context.Context, guardianID string) ([]*domain.ChildProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.ChildProfile
	for _, c := range r.s.children {
		if guardianID == "" || c.GuardianID == guardianID {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type sessionRepo struct{ s *Store }

func (r sessionRepo) Acquire(_ context.Context, childID, sessionID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("session.acquire"); err != nil {
		return err
	}
	now := time.Now().UTC()
	if held, ok := r.s.locks[childID]; ok {
		holder, exists := r.s.sessions[held.sessionID]
		if !store.LockIsStale(exists, holder.Status, held.acquiredAt, now) {
			return store.ErrConflict
		}
	}
	r.s.locks[childID] = lock{sessionID: sessionID, acquiredAt: now}
	return nil
}

func (r sessionRepo) Release(_ context.Context, childID, sessionID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("session.release"); err != nil {
		return err
	}
	if r.s.locks[childID].sessionID == sessionID {
		delete(r.s.locks, childID)
	}
	return nil
}

func (r sessionRepo) Create(_ context.Context, sess *domain.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("session.create"); err != nil {
		return err
	}
	r.s.sessions[sess.ID] = *sess
	return nil
}

func (r sessionRepo) Get(_ context.Context, id string) (*domain.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("get session %s: %w", id, store.ErrNotFound)
	}
	return &sess, nil
}

func (r sessionRepo) Update(_ context.Context, id string, expected domain.SessionStatus, p store.SessionPatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("session.update"); err != nil {
		return err
	}
	sess, ok := r.s.sessions[id]
	if !ok {
		return fmt.Errorf("update session %s: %w", id, store.ErrNotFound)
	}
	if sess.Status != expected {
		return store.ErrConflict
	}
	p.Apply(&sess)
	r.s.sessions[id] = sess
	return nil
}

func (r sessionRepo) Active(_ context.Context, childID string) (*domain.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *domain.Session
	for _, sess := range r.s.sessions {
		if sess.ChildID != childID || sess.Status.Terminal() {
			continue
		}
		if found == nil || sess.StartedAt.After(found.StartedAt) {
			sess := sess
			found = &sess
		}
	}
	return found, nil
}

func (r sessionRepo) ListByChild(_ context.Context, childID string, opts store.QueryOpts) ([]*domain.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Session
	for _, sess := range r.s.sessions {
		if sess.ChildID != childID {
			continue
		}
		if !opts.From.IsZero() && sess.StartedAt.Before(opts.From) {
			continue
		}
		if !opts.To.IsZero() && sess.StartedAt.After(opts.To) {
			continue
		}
		sess := sess
		out = append(out, &sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

type questionRepo struct{ s *Store }

func cloneQuestion(q domain.Question) domain.Question {
	q.Options = slices.Clone(q.Options)
	if q.IsCorrect != nil {
		v := *q.IsCorrect
		q.IsCorrect = &v
	}
	if q.AnsweredAt != nil {
		t := *q.AnsweredAt
		q.AnsweredAt = &t
	}
	return q
}

func (r questionRepo) insert(q *domain.Question) {
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	r.s.questions[q.ID] = cloneQuestion(*q)
	r.s.questionOrder = append(r.s.questionOrder, q.ID)
}

func (r questionRepo) Create(_ context.Context, q *domain.Question) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("question.create"); err != nil {
		return err
	}
	r.insert(q)
	return nil
}

func (r questionRepo) CreateBatch(_ context.Context, qs []*domain.Question, _ int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("question.create_batch"); err != nil {
		return err
	}
	for _, q := range qs {
		r.insert(q)
	}
	return nil
}

func (r questionRepo) Get(_ context.Context, id string) (*domain.Question, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.questions[id]
	if !ok {
		return nil, fmt.Errorf("get question %s: %w", id, store.ErrNotFound)
	}
	q = cloneQuestion(q)
	return &q, nil
}

func (r questionRepo) ListReady(_ context.Context, childID string, limit int) ([]*domain.Question, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Question
	for _, id := range r.s.questionOrder {
		q := r.s.questions[id]
		if q.ChildID != childID || q.Status != domain.QuestionReady {
			continue
		}
		q = cloneQuestion(q)
		out = append(out, &q)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r questionRepo) CountReady(_ context.Context, childID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, q := range r.s.questions {
		if q.ChildID == childID && q.Status == domain.QuestionReady {
			n++
		}
	}
	return n, nil
}

func (r questionRepo) Claim(_ context.Context, id, sessionID string, attempt int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("question.claim"); err != nil {
		return err
	}
	q, ok := r.s.questions[id]
	if !ok || q.Status != domain.QuestionReady {
		return store.ErrConflict
	}
	q.Status = domain.QuestionUsed
	q.SessionID = sessionID
	q.AttemptNumber = attempt
	r.s.questions[id] = q
	return nil
}

func (r questionRepo) RecordAnswer(_ context.Context, id, answer string, correct bool, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("question.record_answer"); err != nil {
		return err
	}
	q, ok := r.s.questions[id]
	if !ok {
		return fmt.Errorf("record answer on %s: %w", id, store.ErrNotFound)
	}
	if q.IsCorrect != nil {
		return store.ErrConflict
	}
	q.ChildAnswer = answer
	q.IsCorrect = &correct
	q.AnsweredAt = &at
	r.s.questions[id] = q
	return nil
}

func (r questionRepo) ListBySession(_ context.Context, sessionID string) ([]*domain.Question, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Question
	for _, id := range r.s.questionOrder {
		q := r.s.questions[id]
		if q.SessionID != sessionID {
			continue
		}
		q = cloneQuestion(q)
		out = append(out, &q)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AttemptNumber < out[j].AttemptNumber })
	return store.SortByAnswerOrder(out), nil
}

type progressRepo struct{ s *Store }

func progressKey(childID, date string) string {
	return childID + "|" + date
}

func (r progressRepo) Increment(_ context.Context, childID, date string, d store.ProgressDelta) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("progress.increment"); err != nil {
		return err
	}
	key := progressKey(childID, date)
	rec, ok := r.s.progress[key]
	if !ok {
		now := time.Now().UTC()
		rec = &domain.ProgressRecord{
			ID:             uuid.NewString(),
			ChildID:        childID,
			Date:           date,
			TopicBreakdown: map[string]domain.TopicCount{},
			CreatedAt:      now,
		}
		r.s.progress[key] = rec
	}
	rec.TotalQuestions += d.TotalQuestions
	rec.CorrectAnswers += d.CorrectAnswers
	rec.IncorrectAnswers += d.IncorrectAnswers
	rec.SessionsCompleted += d.SessionsCompleted
	rec.SessionsLockedOut += d.SessionsLockedOut
	rec.TimeSpentSeconds += d.TimeSpentSeconds
	if d.Topic != "" && (d.TopicCorrect != 0 || d.TopicIncorrect != 0) {
		tc := rec.TopicBreakdown[d.Topic]
		tc.Correct += d.TopicCorrect
		tc.Incorrect += d.TopicIncorrect
		rec.TopicBreakdown[d.Topic] = tc
	}
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (r progressRepo) Range(_ context.Context, childID, start, end string) ([]*domain.ProgressRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.ProgressRecord
	prefix := childID + "|"
	for key, rec := range r.s.progress {
		if !strings.HasPrefix(key, prefix) || rec.Date < start || rec.Date > end {
			continue
		}
		cp := *rec
		cp.TopicBreakdown = make(map[string]domain.TopicCount, len(rec.TopicBreakdown))
		for k, v := range rec.TopicBreakdown {
			cp.TopicBreakdown[k] = v
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

type lessonRepo struct{ s *Store }

func (r lessonRepo) Create(_ context.Context, l *domain.Lesson) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("lesson.create"); err != nil {
		return err
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	r.s.lessons = append(r.s.lessons, *l)
	return nil
}

func (r lessonRepo) LatestForSession(_ context.Context, sessionID string) (*domain.Lesson, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := len(r.s.lessons) - 1; i >= 0; i-- {
		if r.s.lessons[i].SessionID == sessionID {
			l := r.s.lessons[i]
			return &l, nil
		}
	}
	return nil, fmt.Errorf("lesson for session %s: %w", sessionID, store.ErrNotFound)
}

func (r lessonRepo) IncrementWatch(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("lesson.increment_watch"); err != nil {
		return err
	}
	for i := range r.s.lessons {
		if r.s.lessons[i].ID == id {
			r.s.lessons[i].WatchCount++
			return nil
		}
	}
	return store.ErrNotFound
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) Append(_ context.Context, n *domain.NotificationLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("notification.append"); err != nil {
		return err
	}
	r.s.notifications = append(r.s.notifications, *n)
	return nil
}

func (r notificationRepo) MarkDelivered(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.notifications {
		if r.s.notifications[i].ID == id {
			r.s.notifications[i].Delivered = true
			return nil
		}
	}
	return store.ErrNotFound
}

func (r notificationRepo) ListByGuardian(_ context.Context, guardianID string, opts store.QueryOpts) ([]*domain.NotificationLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.NotificationLog
	for i := len(r.s.notifications) - 1; i >= 0; i-- {
		n := r.s.notifications[i]
		if n.GuardianID != guardianID {
			continue
		}
		if !opts.From.IsZero() && n.SentAt.Before(opts.From) {
			continue
		}
		out = append(out, &n)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

type llmEventRepo struct{ s *Store }

func (r llmEventRepo) AppendLLMRequest(_ context.Context, data store.LLMRequestEventData) error {
	if err := r.s.fail("llm.append"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.llmEvents = append(r.s.llmEvents, store.LLMRequestEvent{
		ID:                  len(r.s.llmEvents) + 1,
		Timestamp:           time.Now().UTC(),
		LLMRequestEventData: data,
	})
	return nil
}

func (r llmEventRepo) QueryLLMEvents(_ context.Context, opts store.QueryOpts) ([]store.LLMRequestEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []store.LLMRequestEvent
	for i := len(r.s.llmEvents) - 1; i >= 0; i-- {
		out = append(out, r.s.llmEvents[i])
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (r llmEventRepo) GetLLMEvent(_ context.Context, id int) (*store.LLMRequestEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if id < 1 || id > len(r.s.llmEvents) {
		return nil, nil
	}
	e := r.s.llmEvents[id-1]
	return &e, nil
}
