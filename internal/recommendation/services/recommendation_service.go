package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tachyonedu/practice-engine/internal/lecture/repository"
	"github.com/tachyonedu/practice-engine/internal/practice/engine"
	"github.com/tachyonedu/practice-engine/internal/recommendation/models"

	practicerepo "github.com/tachyonedu/practice-engine/internal/practice/repository"
	recrepo "github.com/tachyonedu/practice-engine/internal/recommendation/repository"
)

// Post-lecture recommendations stay in the medium band: practice right
// after being taught, not diagnostic extremes.
const (
	postLectureMinDifficulty = 2
	postLectureMaxDifficulty = 3

	questionsPerLectureTopic = 5
	questionsPerSubjectOnly  = 10

	weakTopicFocusCount   = 3
	questionsPerWeakTopic = 3
	exploreSubjectCount   = 2
)

// SimilarityProvider scores semantic similarity between questions. The
// embedding subsystem implements it when configured; a nil provider
// degrades to topic-based matching.
type SimilarityProvider interface {
	SimilarQuestionIDs(ctx context.Context, questionID uint, limit int) ([]uint, error)
}

// Service generates and assembles practice recommendations.
type Service struct {
	recs       *recrepo.RecommendationRepository
	lectures   *repository.LectureRepository
	attempts   *practicerepo.AttemptRepository
	cfg        engine.Config
	similarity SimilarityProvider
}

func NewService(
	recs *recrepo.RecommendationRepository,
	lectures *repository.LectureRepository,
	attempts *practicerepo.AttemptRepository,
	cfg engine.Config,
	similarity SimilarityProvider,
) *Service {
	return &Service{
		recs:       recs,
		lectures:   lectures,
		attempts:   attempts,
		cfg:        cfg,
		similarity: similarity,
	}
}

// GenerateForLecture creates persistent recommendation rows after a lecture
// is authored. Topic-linked lectures get up to five medium questions per
// syllabus topic at high priority; lectures without topic links fall back
// to ten subject-wide questions at medium priority. Returns the number of
// rows created.
func (s *Service) GenerateForLecture(ctx context.Context, lectureID uint) (int, error) {
	lecture, err := s.lectures.GetByID(ctx, lectureID)
	if err != nil {
		return 0, err
	}

	topics, err := s.lectures.TopicsForLecture(ctx, lectureID)
	if err != nil {
		return 0, err
	}

	if len(topics) == 0 {
		return s.generateSubjectRecommendations(ctx, lecture.ID, lecture.Subject)
	}

	var rows []*models.PracticeRecommendation
	for _, lt := range topics {
		item := lt.SyllabusItem
		if item == nil {
			continue
		}

		questions, err := s.recs.QuestionsForTopic(ctx, item.Subject, item.Chapter, item.Topic,
			postLectureMinDifficulty, postLectureMaxDifficulty, questionsPerLectureTopic)
		if err != nil {
			return 0, err
		}

		for _, q := range questions {
			syllabusID := item.ID
			rows = append(rows, &models.PracticeRecommendation{
				LectureID:  lectureID,
				Subject:    item.Subject,
				Topic:      item.Topic,
				QuestionID: q.ID,
				SyllabusID: &syllabusID,
				Priority:   models.PriorityHigh,
			})
		}
	}

	if err := s.recs.CreateBatch(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *Service) generateSubjectRecommendations(ctx context.Context, lectureID uint, subject string) (int, error) {
	questions, err := s.recs.QuestionsForSubject(ctx, subject,
		postLectureMinDifficulty, postLectureMaxDifficulty, questionsPerSubjectOnly)
	if err != nil {
		return 0, err
	}

	var rows []*models.PracticeRecommendation
	for _, q := range questions {
		rows = append(rows, &models.PracticeRecommendation{
			LectureID:  lectureID,
			Subject:    subject,
			Topic:      q.Topic,
			QuestionID: q.ID,
			Priority:   models.PriorityMedium,
		})
	}

	if err := s.recs.CreateBatch(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Personalized assembles a student's recommendation list from three
// classes: pending lecture follow-ups, weak-topic practice, and exploratory
// fill. Every entry carries the reason it was chosen.
func (s *Service) Personalized(ctx context.Context, studentID uint, limit int) ([]models.RecommendedQuestion, error) {
	if limit <= 0 {
		limit = 10
	}

	attempted, err := s.recs.AttemptedQuestionIDs(ctx, studentID)
	if err != nil {
		return nil, err
	}
	attemptedSet := make(map[uint]bool, len(attempted))
	for _, id := range attempted {
		attemptedSet[id] = true
	}

	recommendations := make([]models.RecommendedQuestion, 0, limit)

	// Later stages must never repeat a question an earlier stage picked.
	exclude := append([]uint{}, attempted...)

	lectureRecs, err := s.lectureFollowups(ctx, attemptedSet, limit/2)
	if err != nil {
		return nil, err
	}
	recommendations = append(recommendations, lectureRecs...)
	for _, r := range lectureRecs {
		exclude = append(exclude, r.QuestionID)
	}

	if remaining := limit - len(recommendations); remaining > 0 {
		weakRecs, err := s.weakTopicRecommendations(ctx, studentID, exclude, remaining)
		if err != nil {
			return nil, err
		}
		recommendations = append(recommendations, weakRecs...)
		for _, r := range weakRecs {
			exclude = append(exclude, r.QuestionID)
		}
	}

	if remaining := limit - len(recommendations); remaining > 0 {
		generalRecs, err := s.exploratoryRecommendations(ctx, studentID, exclude, remaining)
		if err != nil {
			return nil, err
		}
		recommendations = append(recommendations, generalRecs...)
	}

	if len(recommendations) > limit {
		recommendations = recommendations[:limit]
	}
	return recommendations, nil
}

func (s *Service) lectureFollowups(ctx context.Context, attempted map[uint]bool, limit int) ([]models.RecommendedQuestion, error) {
	if limit <= 0 {
		return nil, nil
	}

	pending, err := s.recs.PendingGlobal(ctx, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(pending))
	for _, rec := range pending {
		ids = append(ids, rec.QuestionID)
	}
	questions, err := s.recs.QuestionsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	var out []models.RecommendedQuestion
	for _, rec := range pending {
		if attempted[rec.QuestionID] {
			continue
		}
		q, ok := questions[rec.QuestionID]
		if !ok {
			continue
		}

		lectureID := rec.LectureID
		out = append(out, models.RecommendedQuestion{
			QuestionID: q.ID,
			Subject:    q.Subject,
			Chapter:    q.Chapter,
			Topic:      q.Topic,
			Difficulty: q.Difficulty,
			Type:       models.TypeLectureFollowup,
			Reason:     "Follow-up practice from recent lecture",
			Priority:   rec.Priority,
			LectureID:  &lectureID,
		})
	}
	return out, nil
}

func (s *Service) weakTopicRecommendations(ctx context.Context, studentID uint, exclude []uint, limit int) ([]models.RecommendedQuestion, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.WeakTopicWindow)
	stats, err := s.attempts.TopicAccuracy(ctx, studentID, cutoff, nil, s.cfg.MinTopicAttempts)
	if err != nil {
		return nil, err
	}

	weak := weakTopics(stats, s.cfg.RevisionAccuracyCutoff)
	if len(weak) > weakTopicFocusCount {
		weak = weak[:weakTopicFocusCount]
	}

	var out []models.RecommendedQuestion
	for _, topic := range weak {
		if len(out) >= limit {
			break
		}

		questions, err := s.recs.UnattemptedForTopic(ctx, topic.Subject, topic.Topic, exclude, questionsPerWeakTopic)
		if err != nil {
			return nil, err
		}

		for _, q := range questions {
			if len(out) >= limit {
				break
			}
			out = append(out, models.RecommendedQuestion{
				QuestionID: q.ID,
				Subject:    q.Subject,
				Chapter:    q.Chapter,
				Topic:      q.Topic,
				Difficulty: q.Difficulty,
				Type:       models.TypeWeakTopic,
				Reason:     fmt.Sprintf("Weak topic (accuracy: %.1f%%)", topic.Accuracy()*100),
				Priority:   models.PriorityHigh,
			})
		}
	}
	return out, nil
}

// weakTopics filters topic stats below the accuracy cutoff, weakest first
// (insertion sort keeps the repository's deterministic topic order for
// ties).
func weakTopics(stats []engine.TopicStat, cutoff float64) []engine.TopicStat {
	var weak []engine.TopicStat
	for _, s := range stats {
		if s.Accuracy() >= cutoff {
			continue
		}
		pos := len(weak)
		for i, w := range weak {
			if s.Accuracy() < w.Accuracy() {
				pos = i
				break
			}
		}
		weak = append(weak, engine.TopicStat{})
		copy(weak[pos+1:], weak[pos:])
		weak[pos] = s
	}
	return weak
}

func (s *Service) exploratoryRecommendations(ctx context.Context, studentID uint, exclude []uint, limit int) ([]models.RecommendedQuestion, error) {
	subjects, err := s.recs.RecentSubjects(ctx, studentID, exploreSubjectCount)
	if err != nil {
		return nil, err
	}
	if len(subjects) == 0 {
		// Brand-new student: explore the default science pair.
		subjects = []string{"Physics", "Chemistry"}
	}

	questions, err := s.recs.RandomMediumForSubjects(ctx, subjects, exclude,
		postLectureMinDifficulty, postLectureMaxDifficulty, limit)
	if err != nil {
		return nil, err
	}

	var out []models.RecommendedQuestion
	for _, q := range questions {
		out = append(out, models.RecommendedQuestion{
			QuestionID: q.ID,
			Subject:    q.Subject,
			Chapter:    q.Chapter,
			Topic:      q.Topic,
			Difficulty: q.Difficulty,
			Type:       models.TypeGeneral,
			Reason:     "Explore new topics",
			Priority:   models.PriorityLow,
		})
	}
	return out, nil
}

// Revision surfaces specific questions answered wrong in the lookback
// window that the student has not answered correctly since, most recently
// missed first.
func (s *Service) Revision(ctx context.Context, studentID uint, limit int) ([]models.RecommendedQuestion, error) {
	if limit <= 0 {
		limit = 10
	}

	cutoff := time.Now().UTC().Add(-s.cfg.WeakTopicWindow)
	missed, err := s.recs.IncorrectQuestions(ctx, studentID, cutoff, limit)
	if err != nil {
		return nil, err
	}

	var out []models.RecommendedQuestion
	for _, m := range missed {
		corrected, err := s.recs.HasCorrectSince(ctx, studentID, m.QuestionID, m.LastAttempt)
		if err != nil {
			return nil, err
		}
		if corrected {
			continue
		}

		lastAttempt := m.LastAttempt
		out = append(out, models.RecommendedQuestion{
			QuestionID:    m.QuestionID,
			Subject:       m.Subject,
			Chapter:       m.Chapter,
			Topic:         m.Topic,
			Difficulty:    m.Difficulty,
			Type:          models.TypeRevision,
			Reason:        fmt.Sprintf("Incorrect %d time(s)", m.Attempts),
			Priority:      clampPriority(m.Attempts),
			LastAttempted: &lastAttempt,
		})
	}
	return out, nil
}

// Similar recommends questions like the given one. With a similarity
// provider configured the semantic ids come first; without one (or when it
// returns too few) topic-based matching fills the list.
func (s *Service) Similar(ctx context.Context, questionID, studentID uint, limit int) ([]models.RecommendedQuestion, error) {
	if limit <= 0 {
		limit = 5
	}

	attempted, err := s.recs.AttemptedQuestionIDs(ctx, studentID)
	if err != nil {
		return nil, err
	}
	attemptedSet := make(map[uint]bool, len(attempted))
	for _, id := range attempted {
		attemptedSet[id] = true
	}

	var out []models.RecommendedQuestion

	if s.similarity != nil {
		ids, err := s.similarity.SimilarQuestionIDs(ctx, questionID, limit*2)
		if err != nil {
			return nil, err
		}

		questions, err := s.recs.QuestionsByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}

		for _, id := range ids {
			if len(out) >= limit || attemptedSet[id] {
				continue
			}
			q, ok := questions[id]
			if !ok || !q.IsActive {
				continue
			}
			out = append(out, models.RecommendedQuestion{
				QuestionID: q.ID,
				Subject:    q.Subject,
				Chapter:    q.Chapter,
				Topic:      q.Topic,
				Difficulty: q.Difficulty,
				Type:       models.TypeSimilar,
				Reason:     "Similar to your recent practice",
				Priority:   models.PriorityMedium,
			})
		}
	}

	if len(out) < limit {
		base, err := s.recs.QuestionsByIDs(ctx, []uint{questionID})
		if err != nil {
			return nil, err
		}
		original, ok := base[questionID]
		if !ok {
			return out, nil
		}

		exclude := append([]uint{}, attempted...)
		for _, r := range out {
			exclude = append(exclude, r.QuestionID)
		}

		topicMatches, err := s.recs.SameTopicQuestions(ctx, original.Subject, original.Topic, questionID, exclude, limit-len(out))
		if err != nil {
			return nil, err
		}

		for _, q := range topicMatches {
			out = append(out, models.RecommendedQuestion{
				QuestionID: q.ID,
				Subject:    q.Subject,
				Chapter:    q.Chapter,
				Topic:      q.Topic,
				Difficulty: q.Difficulty,
				Type:       models.TypeTopicSimilar,
				Reason:     fmt.Sprintf("Same topic: %s", q.Topic),
				Priority:   models.PriorityMedium,
			})
		}
	}

	return out, nil
}

// MarkCompleted flags a recommendation as done.
func (s *Service) MarkCompleted(ctx context.Context, id uint) error {
	return s.recs.MarkCompleted(ctx, id)
}

func clampPriority(attempts int) int {
	if attempts > models.PriorityLow {
		return models.PriorityLow
	}
	if attempts < models.PriorityHigh {
		return models.PriorityHigh
	}
	return attempts
}
