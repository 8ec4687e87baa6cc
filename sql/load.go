package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed courses.sql
var coursesSQL string

//go:embed people.sql
var peopleSQL string

//go:embed associations.sql
var associationsSQL string

//go:embed embeddings.sql
var embeddingsSQL string

//go:embed ranking.sql
var rankingSQL string

// Function lists for verification
var CoursesFunctions = []string{
	"init_courses",
	"upsert_course",
	"select_course",
	"select_courses_by_ids",
	"select_stale_course_ids",
	"delete_course",
}

var PeopleFunctions = []string{
	"init_people",
	"select_person",
	"select_people_by_ids",
	"select_people_missing_embedding",
}

var AssociationsFunctions = []string{
	"init_course_people",
	"select_people_by_course",
	"select_course_ids_by_person",
}

var EmbeddingsFunctions = []string{
	"init_embeddings",
	"upsert_course_embedding",
	"insert_person_embedding",
	"select_course_embeddings",
	"select_person_embedding",
	"delete_course_embeddings",
	"select_field_distances",
	"select_person_distances",
}

var RankingFunctions = []string{
	"select_most_relevant_courses",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadCoursesSql loads course-related SQL functions
func LoadCoursesSql(db *sql.DB, force bool) error {
	return loadSql(db, "courses", coursesSQL, CoursesFunctions, force)
}

// LoadPeopleSql loads person-related SQL functions
func LoadPeopleSql(db *sql.DB, force bool) error {
	return loadSql(db, "people", peopleSQL, PeopleFunctions, force)
}

// LoadAssociationsSql loads the course to person association functions
func LoadAssociationsSql(db *sql.DB, force bool) error {
	return loadSql(db, "associations", associationsSQL, AssociationsFunctions, force)
}

// LoadEmbeddingsSql loads embedding-related SQL functions
func LoadEmbeddingsSql(db *sql.DB, force bool) error {
	return loadSql(db, "embeddings", embeddingsSQL, EmbeddingsFunctions, force)
}

// LoadRankingSql loads the ranking query function
func LoadRankingSql(db *sql.DB, force bool) error {
	return loadSql(db, "ranking", rankingSQL, RankingFunctions, force)
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadCoursesSql(db, force); err != nil {
		return err
	}

	if err := LoadPeopleSql(db, force); err != nil {
		return err
	}

	if err := LoadAssociationsSql(db, force); err != nil {
		return err
	}

	if err := LoadEmbeddingsSql(db, force); err != nil {
		return err
	}

	if err := LoadRankingSql(db, force); err != nil {
		return err
	}

	return nil
}

func loadSql(db *sql.DB, name string, script string, functions []string, force bool) error {
	if !force {
		exist, err := checkFunctions(db, functions)
		if err != nil {
			return fmt.Errorf("error checking existing %s functions: %w", name, err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(script)
	if err != nil {
		return fmt.Errorf("error executing %s SQL: %w", name, err)
	}

	exist, err := checkFunctions(db, functions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Printf("SQL %s functions loaded successfully", name)
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
