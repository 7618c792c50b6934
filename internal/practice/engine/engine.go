// Package engine implements adaptive question selection: difficulty
// estimation from rolling performance, topic focus per practice mode, and
// candidate filtering with progressive fallback.
package engine

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/tachyonedu/practice-engine/internal/practice/models"
)

// Config holds the engine's tunable policy constants. The defaults are
// policy choices, not values derived from data.
type Config struct {
	DifficultyWindow       int
	DefaultDifficulty      int
	RaiseAccuracy          float64
	LowerAccuracy          float64
	WeakTopicWindow        time.Duration
	MinTopicAttempts       int
	RevisionMinAttempts    int
	RevisionAccuracyCutoff float64
	RecencyExclusion       int
}

func DefaultConfig() Config {
	return Config{
		DifficultyWindow:       20,
		DefaultDifficulty:      2,
		RaiseAccuracy:          0.8,
		LowerAccuracy:          0.4,
		WeakTopicWindow:        30 * 24 * time.Hour,
		MinTopicAttempts:       3,
		RevisionMinAttempts:    2,
		RevisionAccuracyCutoff: 0.6,
		RecencyExclusion:       30,
	}
}

// QuestionFilter is the single typed predicate the engine hands to the
// store. Zero-value fields are not applied; list fields combine with AND
// across fields and IN within a field.
type QuestionFilter struct {
	Subjects     []string
	Chapters     []string
	Topics       []string
	Difficulties []int
	IDs          []uint // restrict candidates to these ids (revision mode)
	ExcludeIDs   []uint // recently attempted ids, never re-served
	ActiveOnly   bool
}

// AttemptSample is one attempt joined with its question's difficulty,
// the unit the difficulty estimator works on.
type AttemptSample struct {
	IsCorrect  bool
	Difficulty int
}

// TopicStat aggregates a student's attempts for one topic.
type TopicStat struct {
	Subject  string
	Topic    string
	Total    int
	Correct  int
}

// Accuracy returns correct/total, 0 for an empty row.
func (t TopicStat) Accuracy() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Correct) / float64(t.Total)
}

// QuestionStat aggregates a student's attempts on one question.
type QuestionStat struct {
	QuestionID uint
	Total      int
	Correct    int
}

func (q QuestionStat) Accuracy() float64 {
	if q.Total == 0 {
		return 0
	}
	return float64(q.Correct) / float64(q.Total)
}

// Store is the bounded read surface the engine needs from the attempt log
// and the question bank.
type Store interface {
	// RecentAttempts returns up to limit most-recent attempts for the
	// student, newest first, optionally filtered by subject/topic.
	RecentAttempts(ctx context.Context, studentID uint, limit int, subjects, topics []string) ([]AttemptSample, error)

	// TopicAccuracy aggregates attempts since the cutoff grouped by topic,
	// keeping only topics with at least minAttempts, in deterministic
	// (topic name) order.
	TopicAccuracy(ctx context.Context, studentID uint, since time.Time, subjects []string, minAttempts int) ([]TopicStat, error)

	// LeastCoveredTopic returns the in-scope topic with the fewest attempts
	// by the student, counting unattempted topics as zero. Empty string if
	// no topics exist in scope.
	LeastCoveredTopic(ctx context.Context, studentID uint, subjects []string) (string, error)

	// RecentQuestionIDs returns the ids of the student's last limit
	// attempted questions, any scope.
	RecentQuestionIDs(ctx context.Context, studentID uint, limit int) ([]uint, error)

	// QuestionAccuracy aggregates the student's attempts per question,
	// keeping questions with at least minAttempts, within optional scope.
	QuestionAccuracy(ctx context.Context, studentID uint, subjects, chapters, topics []string, minAttempts int) ([]QuestionStat, error)

	// FindCandidates returns questions matching the filter.
	FindCandidates(ctx context.Context, f QuestionFilter) ([]models.Question, error)
}

// Engine selects the next practice question for a student.
type Engine struct {
	store   Store
	cfg     Config
	randInt func(n int) int
}

func New(store Store, cfg Config) *Engine {
	return &Engine{
		store:   store,
		cfg:     cfg,
		randInt: rand.IntN,
	}
}

// SetRandom overrides the random source. Tests use this for determinism.
func (e *Engine) SetRandom(randInt func(n int) int) {
	e.randInt = randInt
}

// NextQuestion picks one question for the session, or nil when the pool is
// exhausted under the session's scope. Exhaustion is a valid terminal
// outcome, not an error.
func (e *Engine) NextQuestion(ctx context.Context, studentID uint, session *models.PracticeSession) (*models.Question, error) {
	subjects := []string(session.Subjects)
	chapters := []string(session.Chapters)
	topics := []string(session.Topics)

	filter := QuestionFilter{ActiveOnly: true}

	switch session.Mode {
	case models.ModeAdaptive:
		weakTopic, err := e.WeakestTopic(ctx, studentID, subjects)
		if err != nil {
			return nil, err
		}
		if weakTopic != "" {
			filter.Topics = []string{weakTopic}
		} else {
			filter.Subjects = subjects
		}

	case models.ModeTopic:
		filter.Topics = topics

	case models.ModeChapter, models.ModeMultiChapter:
		filter.Chapters = chapters

	case models.ModeMultiSubject:
		filter.Subjects = subjects

	case models.ModeRevision:
		ids, err := e.RevisionCandidates(ctx, studentID, subjects, chapters, topics)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			filter.IDs = ids
		} else {
			filter.Subjects = subjects
		}
	}

	// Never re-serve the most recently attempted questions, any scope.
	recentIDs, err := e.store.RecentQuestionIDs(ctx, studentID, e.cfg.RecencyExclusion)
	if err != nil {
		return nil, err
	}
	filter.ExcludeIDs = recentIDs

	target, err := e.TargetDifficulty(ctx, studentID, subjects, topics)
	if err != nil {
		return nil, err
	}

	// Difficulty is a soft preference: target plus one step either side,
	// within [1,5].
	preferred := filter
	preferred.Difficulties = difficultyBand(target)

	candidates, err := e.store.FindCandidates(ctx, preferred)
	if err != nil {
		return nil, err
	}
	if len(candidates) > 0 {
		return e.pick(candidates), nil
	}

	// Widen: drop the difficulty preference, keep recency exclusion.
	candidates, err = e.store.FindCandidates(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(candidates) > 0 {
		return e.pick(candidates), nil
	}

	return nil, nil
}

// TargetDifficulty derives the difficulty level [1,5] to aim for from the
// student's recent attempts, optionally scoped by subject/topic. A student
// with no history gets the default. The 0.8/0.4 bands act as hysteresis:
// difficulty only moves on sustained high or low accuracy.
func (e *Engine) TargetDifficulty(ctx context.Context, studentID uint, subjects, topics []string) (int, error) {
	window, err := e.store.RecentAttempts(ctx, studentID, e.cfg.DifficultyWindow, subjects, topics)
	if err != nil {
		return 0, err
	}

	if len(window) == 0 {
		return e.cfg.DefaultDifficulty, nil
	}

	correct := 0
	difficultySum := 0
	for _, a := range window {
		if a.IsCorrect {
			correct++
		}
		difficultySum += a.Difficulty
	}

	accuracy := float64(correct) / float64(len(window))
	avgDifficulty := int(float64(difficultySum) / float64(len(window)))

	var target int
	switch {
	case accuracy >= e.cfg.RaiseAccuracy:
		target = avgDifficulty + 1
	case accuracy <= e.cfg.LowerAccuracy:
		target = avgDifficulty - 1
	default:
		target = avgDifficulty
	}

	return clampDifficulty(target), nil
}

// WeakestTopic returns the topic with the lowest recent accuracy among
// topics with enough attempts to be statistically meaningful. With no topic
// over the floor it falls back to the least-covered topic in scope. Empty
// string means no topic-level narrowing is possible.
func (e *Engine) WeakestTopic(ctx context.Context, studentID uint, subjects []string) (string, error) {
	cutoff := time.Now().UTC().Add(-e.cfg.WeakTopicWindow)

	stats, err := e.store.TopicAccuracy(ctx, studentID, cutoff, subjects, e.cfg.MinTopicAttempts)
	if err != nil {
		return "", err
	}

	if len(stats) == 0 {
		return e.store.LeastCoveredTopic(ctx, studentID, subjects)
	}

	weakest := ""
	lowest := 1.1
	for _, s := range stats {
		if acc := s.Accuracy(); acc < lowest {
			lowest = acc
			weakest = s.Topic
		}
	}

	return weakest, nil
}

// RevisionCandidates returns ids of questions the student keeps getting
// wrong: attempted at least RevisionMinAttempts times with accuracy below
// the cutoff, within optional scope.
func (e *Engine) RevisionCandidates(ctx context.Context, studentID uint, subjects, chapters, topics []string) ([]uint, error) {
	stats, err := e.store.QuestionAccuracy(ctx, studentID, subjects, chapters, topics, e.cfg.RevisionMinAttempts)
	if err != nil {
		return nil, err
	}

	var ids []uint
	for _, s := range stats {
		if s.Accuracy() < e.cfg.RevisionAccuracyCutoff {
			ids = append(ids, s.QuestionID)
		}
	}

	return ids, nil
}

func (e *Engine) pick(candidates []models.Question) *models.Question {
	q := candidates[e.randInt(len(candidates))]
	return &q
}

func difficultyBand(target int) []int {
	band := []int{target}
	if target > 1 {
		band = append(band, target-1)
	}
	if target < 5 {
		band = append(band, target+1)
	}
	return band
}

func clampDifficulty(d int) int {
	if d < 1 {
		return 1
	}
	if d > 5 {
		return 5
	}
	return d
}
