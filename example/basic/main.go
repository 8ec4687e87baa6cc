package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/siherrmann/coursesearch"
	"github.com/siherrmann/coursesearch/core/pipeline"
	"github.com/siherrmann/coursesearch/helper"
	"github.com/siherrmann/coursesearch/model"
)

var catalog = []*model.Course{
	{
		ID:      "COMP1511",
		Title:   "Programming Fundamentals",
		Content: "An introduction to problem solving and programming in C, covering loops, functions, arrays and pointers.",
		People:  []*model.Person{{ID: "a.smith", Name: "Alice Smith"}},
	},
	{
		ID:      "MATH1231",
		Title:   "Linear Algebra",
		Content: "Vector spaces, linear maps, eigenvalues and their applications in geometry and data analysis.",
		People:  []*model.Person{{ID: "e.noether", Name: "Emmy Noether"}},
	},
	{
		ID:      "CHEM1011",
		Title:   "Chemistry of Life",
		Content: "Atoms, molecules and the chemical reactions that drive biological systems.",
	},
}

func main() {
	ctx := context.Background()

	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(ctx)

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	logger := helper.NewLogger(os.Stdout, slog.LevelInfo)

	embedder, err := pipeline.NewHugotEmbedder(pipeline.DefaultModel, helper.DefaultOnnxFilePath, 384, logger)
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}

	opts := coursesearch.DefaultOptions()
	opts.Logger = logger
	s, err := coursesearch.NewSearcher(dbConfig, embedder, opts)
	if err != nil {
		log.Fatalf("Failed to create searcher: %v", err)
	}
	defer s.Close()

	for _, course := range catalog {
		if _, err := s.UpsertCourse(ctx, course); err != nil {
			log.Fatalf("Failed to upsert course %s: %v", course.ID, err)
		}
	}

	// Courses only become searchable once their embeddings are fresh
	reports, err := s.SyncOnce(ctx)
	if err != nil {
		log.Fatalf("Failed to sync embeddings: %v", err)
	}
	for _, report := range reports {
		fmt.Printf("Synced %s: %d embedded\n", report.Target, report.Embedded)
	}

	for _, query := range []string{"learn to code in C", "eigenvalues", "Emmy Noether"} {
		ranked, err := s.SearchDetailed(ctx, query)
		if err != nil {
			log.Fatalf("Failed to search: %v", err)
		}

		fmt.Printf("\nQuerying: %s\n", query)
		for i, r := range ranked {
			fmt.Printf("%d. %s (total %.3f, title %.3f, content %.3f, person %.3f)\n",
				i+1, r.ID, r.TotalDistance, r.TitleDistance, r.ContentDistance, r.PersonDistance)
		}
	}
}
