package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tachyonedu/practice-engine/internal/common/database"

	lecture "github.com/tachyonedu/practice-engine/internal/lecture/models"
	practice "github.com/tachyonedu/practice-engine/internal/practice/models"
)

type seedConfig struct {
	DBType            string
	DSN               string
	QuestionsPerTopic int
}

var cfg seedConfig

func init() {
	flag.StringVar(&cfg.DBType, "db-type", "sqlite", "Database type: sqlite or postgres")
	flag.StringVar(&cfg.DSN, "dsn", "./data/practice_engine.db?mode=rwc", "Database DSN")
	flag.IntVar(&cfg.QuestionsPerTopic, "questions-per-topic", 12, "Questions to generate per syllabus topic")
}

// syllabus is the seed curriculum: subject -> chapter -> topics.
var syllabus = map[string]map[string][]string{
	practice.SubjectPhysics: {
		"Kinematics":     {"Motion in a Straight Line", "Projectile Motion", "Relative Velocity"},
		"Laws of Motion": {"Newton's Laws", "Friction", "Circular Motion"},
		"Work and Energy": {"Work-Energy Theorem", "Conservation of Energy", "Power"},
	},
	practice.SubjectChemistry: {
		"Atomic Structure":  {"Bohr Model", "Quantum Numbers", "Electronic Configuration"},
		"Chemical Bonding":  {"Ionic Bonds", "Covalent Bonds", "Hybridization"},
		"States of Matter":  {"Gas Laws", "Kinetic Theory", "Liquefaction"},
	},
	practice.SubjectBiology: {
		"Cell Biology":   {"Cell Membrane", "Mitochondria", "Cell Division"},
		"Genetics":       {"Mendelian Inheritance", "DNA Replication", "Mutations"},
		"Human Physiology": {"Digestion", "Respiration", "Circulation"},
	},
	practice.SubjectMathematics: {
		"Algebra":      {"Quadratic Equations", "Sequences and Series", "Complex Numbers"},
		"Calculus":     {"Limits", "Differentiation", "Integration"},
		"Trigonometry": {"Trigonometric Ratios", "Identities", "Equations"},
	},
}

func main() {
	flag.Parse()

	db, err := database.Connect(cfg.DBType, cfg.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("🌱 Starting data seeding...")

	items, err := seedSyllabus(db)
	if err != nil {
		log.Fatalf("Failed to seed syllabus: %v", err)
	}
	log.Printf("✅ Created %d syllabus items", len(items))

	questions, err := seedQuestions(db, items)
	if err != nil {
		log.Fatalf("Failed to seed questions: %v", err)
	}
	log.Printf("✅ Created %d questions", questions)

	lectures, err := seedLectures(db, items)
	if err != nil {
		log.Fatalf("Failed to seed lectures: %v", err)
	}
	log.Printf("✅ Created %d lectures with topic links", lectures)

	log.Println("🎉 Seeding complete")
}

func seedSyllabus(db *gorm.DB) ([]*lecture.SyllabusItem, error) {
	var items []*lecture.SyllabusItem

	for subject, chapters := range syllabus {
		for chapter, topics := range chapters {
			for _, topic := range topics {
				items = append(items, &lecture.SyllabusItem{
					Subject: subject,
					Chapter: chapter,
					Topic:   topic,
				})
			}
		}
	}

	if err := db.Create(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func seedQuestions(db *gorm.DB, items []*lecture.SyllabusItem) (int, error) {
	var questions []*practice.Question

	for _, item := range items {
		for i := 0; i < cfg.QuestionsPerTopic; i++ {
			difficulty := 1 + rand.IntN(5)
			correct := []string{"A", "B", "C", "D"}[rand.IntN(4)]

			questions = append(questions, &practice.Question{
				Subject:      item.Subject,
				Chapter:      item.Chapter,
				Topic:        item.Topic,
				Difficulty:   difficulty,
				QuestionText: fmt.Sprintf("Sample question %d on %s (level %d)", i+1, item.Topic, difficulty),
				Options: datatypes.NewJSONType(map[string]string{
					"A": "Option A",
					"B": "Option B",
					"C": "Option C",
					"D": "Option D",
				}),
				CorrectAnswer: correct,
				Hint:          fmt.Sprintf("Recall the key concept of %s.", item.Topic),
				Explanation:   fmt.Sprintf("The answer follows from the definition of %s.", item.Topic),
				Source:        "seed",
				IsActive:      true,
			})
		}
	}

	if err := db.CreateInBatches(&questions, 200).Error; err != nil {
		return 0, err
	}
	return len(questions), nil
}

// seedLectures creates one lecture per chapter, linked to the chapter's
// first two topics.
func seedLectures(db *gorm.DB, items []*lecture.SyllabusItem) (int, error) {
	byChapter := make(map[string][]*lecture.SyllabusItem)
	for _, item := range items {
		key := item.Subject + "/" + item.Chapter
		byChapter[key] = append(byChapter[key], item)
	}

	created := 0
	for _, chapterItems := range byChapter {
		first := chapterItems[0]

		lec := &lecture.Lecture{
			Title:   fmt.Sprintf("%s: %s", first.Subject, first.Chapter),
			Subject: first.Subject,
			Chapter: first.Chapter,
		}
		if err := db.Create(lec).Error; err != nil {
			return created, err
		}

		links := chapterItems
		if len(links) > 2 {
			links = links[:2]
		}
		for _, item := range links {
			link := &lecture.LectureTopic{
				LectureID:  lec.ID,
				SyllabusID: item.ID,
			}
			if err := db.Create(link).Error; err != nil {
				return created, err
			}
		}

		created++
	}
	return created, nil
}
