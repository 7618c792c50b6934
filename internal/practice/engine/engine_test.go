package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tachyonedu/practice-engine/internal/practice/models"
)

// fakeStore returns canned data and records the filters it was queried with.
type fakeStore struct {
	attempts        []AttemptSample
	topicStats      []TopicStat
	leastCovered    string
	recentIDs       []uint
	questionStats   []QuestionStat
	candidatesByCall [][]models.Question

	findCalls []QuestionFilter
}

func (f *fakeStore) RecentAttempts(_ context.Context, _ uint, limit int, _, _ []string) ([]AttemptSample, error) {
	if len(f.attempts) > limit {
		return f.attempts[:limit], nil
	}
	return f.attempts, nil
}

func (f *fakeStore) TopicAccuracy(_ context.Context, _ uint, _ time.Time, _ []string, minAttempts int) ([]TopicStat, error) {
	var out []TopicStat
	for _, s := range f.topicStats {
		if s.Total >= minAttempts {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) LeastCoveredTopic(_ context.Context, _ uint, _ []string) (string, error) {
	return f.leastCovered, nil
}

func (f *fakeStore) RecentQuestionIDs(_ context.Context, _ uint, limit int) ([]uint, error) {
	if len(f.recentIDs) > limit {
		return f.recentIDs[:limit], nil
	}
	return f.recentIDs, nil
}

func (f *fakeStore) QuestionAccuracy(_ context.Context, _ uint, _, _, _ []string, minAttempts int) ([]QuestionStat, error) {
	var out []QuestionStat
	for _, s := range f.questionStats {
		if s.Total >= minAttempts {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) FindCandidates(_ context.Context, filter QuestionFilter) ([]models.Question, error) {
	f.findCalls = append(f.findCalls, filter)
	if len(f.candidatesByCall) == 0 {
		return nil, nil
	}
	batch := f.candidatesByCall[0]
	f.candidatesByCall = f.candidatesByCall[1:]
	return batch, nil
}

func newTestEngine(store Store) *Engine {
	e := New(store, DefaultConfig())
	e.SetRandom(func(int) int { return 0 })
	return e
}

func samples(correct int, total int, difficulty int) []AttemptSample {
	out := make([]AttemptSample, total)
	for i := range out {
		out[i] = AttemptSample{IsCorrect: i < correct, Difficulty: difficulty}
	}
	return out
}

func TestTargetDifficulty_NoHistory(t *testing.T) {
	e := newTestEngine(&fakeStore{})

	target, err := e.TargetDifficulty(context.Background(), 1, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, target)
}

func TestTargetDifficulty_HighAccuracyRaises(t *testing.T) {
	e := newTestEngine(&fakeStore{attempts: samples(18, 20, 3)})

	target, err := e.TargetDifficulty(context.Background(), 1, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 4, target)
}

func TestTargetDifficulty_LowAccuracyLowers(t *testing.T) {
	e := newTestEngine(&fakeStore{attempts: samples(4, 20, 3)})

	target, err := e.TargetDifficulty(context.Background(), 1, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, target)
}

func TestTargetDifficulty_MidAccuracyHolds(t *testing.T) {
	e := newTestEngine(&fakeStore{attempts: samples(12, 20, 3)})

	target, err := e.TargetDifficulty(context.Background(), 1, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, target)
}

func TestTargetDifficulty_ClampsAtCeiling(t *testing.T) {
	e := newTestEngine(&fakeStore{attempts: samples(20, 20, 5)})

	target, err := e.TargetDifficulty(context.Background(), 1, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 5, target)
}

func TestTargetDifficulty_ClampsAtFloor(t *testing.T) {
	e := newTestEngine(&fakeStore{attempts: samples(0, 20, 1)})

	target, err := e.TargetDifficulty(context.Background(), 1, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, target)
}

func TestTargetDifficulty_ExactBoundaryRaises(t *testing.T) {
	// Accuracy exactly 0.8 counts as sustained high accuracy.
	e := newTestEngine(&fakeStore{attempts: samples(16, 20, 2)})

	target, err := e.TargetDifficulty(context.Background(), 1, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, target)
}

func TestWeakestTopic_LowestAccuracyWins(t *testing.T) {
	e := newTestEngine(&fakeStore{
		topicStats: []TopicStat{
			{Subject: "Physics", Topic: "Friction", Total: 5, Correct: 4},
			{Subject: "Physics", Topic: "Kinematics", Total: 5, Correct: 1},
			{Subject: "Physics", Topic: "Optics", Total: 5, Correct: 3},
		},
	})

	topic, err := e.WeakestTopic(context.Background(), 1, []string{"Physics"})

	require.NoError(t, err)
	assert.Equal(t, "Kinematics", topic)
}

func TestWeakestTopic_TieBreaksOnTopicOrder(t *testing.T) {
	// Stats arrive in topic order; the strict < scan keeps the first.
	e := newTestEngine(&fakeStore{
		topicStats: []TopicStat{
			{Subject: "Physics", Topic: "Friction", Total: 4, Correct: 1},
			{Subject: "Physics", Topic: "Kinematics", Total: 4, Correct: 1},
		},
	})

	topic, err := e.WeakestTopic(context.Background(), 1, []string{"Physics"})

	require.NoError(t, err)
	assert.Equal(t, "Friction", topic)
}

func TestWeakestTopic_FallsBackToLeastCovered(t *testing.T) {
	// No topic clears the attempt floor, so coverage decides.
	e := newTestEngine(&fakeStore{
		topicStats:   []TopicStat{{Topic: "Friction", Total: 2, Correct: 0}},
		leastCovered: "Projectile Motion",
	})

	topic, err := e.WeakestTopic(context.Background(), 1, []string{"Physics"})

	require.NoError(t, err)
	assert.Equal(t, "Projectile Motion", topic)
}

func TestWeakestTopic_EmptyWhenNothingInScope(t *testing.T) {
	e := newTestEngine(&fakeStore{})

	topic, err := e.WeakestTopic(context.Background(), 1, []string{"Physics"})

	require.NoError(t, err)
	assert.Equal(t, "", topic)
}

func TestRevisionCandidates_BelowCutoffOnly(t *testing.T) {
	e := newTestEngine(&fakeStore{
		questionStats: []QuestionStat{
			{QuestionID: 1, Total: 3, Correct: 0}, // 0.00, included
			{QuestionID: 2, Total: 2, Correct: 1}, // 0.50, included
			{QuestionID: 3, Total: 3, Correct: 2}, // 0.67, excluded
			{QuestionID: 4, Total: 1, Correct: 0}, // under the attempt floor
			{QuestionID: 5, Total: 5, Correct: 3}, // 0.60 is not below the cutoff
		},
	})

	ids, err := e.RevisionCandidates(context.Background(), 1, nil, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2}, ids)
}

func TestNextQuestion_ExcludesRecentQuestions(t *testing.T) {
	store := &fakeStore{
		recentIDs:        []uint{10, 11, 12},
		candidatesByCall: [][]models.Question{{{ID: 42}}},
	}
	e := newTestEngine(store)

	session := &models.PracticeSession{Mode: models.ModeMultiSubject, Subjects: []string{"Physics"}}
	q, err := e.NextQuestion(context.Background(), 1, session)

	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, uint(42), q.ID)

	require.Len(t, store.findCalls, 1)
	assert.Equal(t, []uint{10, 11, 12}, store.findCalls[0].ExcludeIDs)
	assert.True(t, store.findCalls[0].ActiveOnly)
}

func TestNextQuestion_PrefersDifficultyBandThenWidens(t *testing.T) {
	store := &fakeStore{
		candidatesByCall: [][]models.Question{
			nil,          // band-filtered query comes up empty
			{{ID: 7}},    // unrestricted difficulty succeeds
		},
	}
	e := newTestEngine(store)

	session := &models.PracticeSession{Mode: models.ModeMultiSubject, Subjects: []string{"Physics"}}
	q, err := e.NextQuestion(context.Background(), 1, session)

	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, uint(7), q.ID)

	require.Len(t, store.findCalls, 2)
	assert.ElementsMatch(t, []int{1, 2, 3}, store.findCalls[0].Difficulties)
	assert.Empty(t, store.findCalls[1].Difficulties)
}

func TestNextQuestion_NilOnExhaustion(t *testing.T) {
	e := newTestEngine(&fakeStore{})

	session := &models.PracticeSession{Mode: models.ModeMultiSubject, Subjects: []string{"Physics"}}
	q, err := e.NextQuestion(context.Background(), 1, session)

	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestNextQuestion_AdaptiveNarrowsToWeakTopic(t *testing.T) {
	store := &fakeStore{
		topicStats: []TopicStat{
			{Subject: "Physics", Topic: "Friction", Total: 5, Correct: 1},
		},
		candidatesByCall: [][]models.Question{{{ID: 3}}},
	}
	e := newTestEngine(store)

	session := &models.PracticeSession{Mode: models.ModeAdaptive, Subjects: []string{"Physics"}}
	_, err := e.NextQuestion(context.Background(), 1, session)

	require.NoError(t, err)
	require.Len(t, store.findCalls, 1)
	assert.Equal(t, []string{"Friction"}, store.findCalls[0].Topics)
	assert.Empty(t, store.findCalls[0].Subjects)
}

func TestNextQuestion_RevisionFallsBackToSubjects(t *testing.T) {
	// No question qualifies for revision, so the scope stays subject-wide.
	store := &fakeStore{
		candidatesByCall: [][]models.Question{{{ID: 9}}},
	}
	e := newTestEngine(store)

	session := &models.PracticeSession{Mode: models.ModeRevision, Subjects: []string{"Chemistry"}}
	_, err := e.NextQuestion(context.Background(), 1, session)

	require.NoError(t, err)
	require.Len(t, store.findCalls, 1)
	assert.Equal(t, []string{"Chemistry"}, store.findCalls[0].Subjects)
	assert.Empty(t, store.findCalls[0].IDs)
}

func TestDifficultyBand_InteriorAndEdges(t *testing.T) {
	assert.ElementsMatch(t, []int{2, 3, 4}, difficultyBand(3))
	assert.ElementsMatch(t, []int{1, 2}, difficultyBand(1))
	assert.ElementsMatch(t, []int{4, 5}, difficultyBand(5))
}
