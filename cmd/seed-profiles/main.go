package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/stemsi/examinator/internal/config"
	"github.com/stemsi/examinator/internal/database"
	"github.com/stemsi/examinator/internal/logger"
	"github.com/stemsi/examinator/internal/model"
	"github.com/stemsi/examinator/internal/repository"
)

var firstNames = []string{
	"Ada", "Grace", "Alan", "Edsger", "Barbara", "Donald", "Frances", "Ken",
	"Margaret", "Dennis", "Radia", "John", "Hedy", "Niklaus", "Sophie", "Tony",
}

var lastNames = []string{
	"Lovelace", "Hopper", "Turing", "Dijkstra", "Liskov", "Knuth", "Allen", "Thompson",
	"Hamilton", "Ritchie", "Perlman", "Backus", "Lamarr", "Wirth", "Wilson", "Hoare",
}

func main() {
	var (
		count   int
		courses string
		prefix  string
		teacher string
	)
	flag.IntVar(&count, "count", 50, "Number of student profiles")
	flag.StringVar(&courses, "courses", "cs101", "Comma separated course ids every seeded profile joins")
	flag.StringVar(&prefix, "prefix", "student", "Student subject id prefix")
	flag.StringVar(&teacher, "teacher", "teacher-1", "Teacher subject id (empty to skip)")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	courseIDs := splitCourses(courses)
	for _, id := range courseIDs {
		if !known(cfg.Courses, id) {
			log.Fatal().Str("course_id", id).Msg("Course is not in COURSE_CATALOG")
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	profiles := repository.NewProfileRepository(pool)

	if teacher != "" {
		p := &model.Profile{
			SubjectID: teacher,
			Role:      model.RoleTeacher,
			Email:     teacher + "@examinator.local",
			FirstName: "Course",
			LastName:  "Teacher",
			Courses:   courseIDs,
		}
		if err := profiles.Upsert(ctx, p); err != nil {
			log.Fatal().Err(err).Str("subject_id", teacher).Msg("Failed to seed teacher")
		}
		fmt.Printf("Seeded teacher %s\n", teacher)
	}

	fmt.Printf("=== Seeding %d Students ===\n", count)

	success := 0
	for i := 1; i <= count; i++ {
		subjectID := fmt.Sprintf("%s-%03d", prefix, i)
		p := &model.Profile{
			SubjectID: subjectID,
			Role:      model.RoleStudent,
			Email:     subjectID + "@examinator.local",
			FirstName: firstNames[(i-1)%len(firstNames)],
			LastName:  lastNames[(i-1)/len(firstNames)%len(lastNames)],
			Courses:   courseIDs,
		}
		if err := profiles.Upsert(ctx, p); err != nil {
			log.Error().Err(err).Str("subject_id", subjectID).Msg("Failed to seed student")
			continue
		}
		success++
	}

	fmt.Printf("Seeding completed. %d/%d students seeded.\n", success, count)
}

func splitCourses(raw string) []string {
	var out []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func known(catalog []model.Course, id string) bool {
	for _, c := range catalog {
		if c.ID == id {
			return true
		}
	}
	return false
}
