package retrieval

import (
	"context"
	"log"
	"testing"

	"github.com/siherrmann/coursesearch/database"
	"github.com/siherrmann/coursesearch/helper"
	"github.com/siherrmann/coursesearch/model"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

const testDim = 3

var dbPort string

func TestMain(m *testing.M) {
	var teardown func(ctx context.Context, opts ...testcontainers.TerminateOption) error
	var err error
	teardown, dbPort, err = helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("error starting postgres container: %v", err)
	}

	m.Run()

	if teardown != nil && teardown(context.Background()) != nil {
		log.Fatalf("error tearing down postgres container: %v", err)
	}
}

func initDB(t *testing.T) *helper.Database {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err, "failed to create database configuration")
	db := helper.NewTestDatabase(dbConfig)
	t.Cleanup(func() { db.Close() })

	return db
}

func initHandlers(t *testing.T) (*database.CoursesDBHandler, *database.EmbeddingsDBHandler) {
	db := initDB(t)

	courses, err := database.NewCoursesDBHandler(db, true)
	require.NoError(t, err)
	_, err = database.NewPeopleDBHandler(db, true)
	require.NoError(t, err)
	_, err = database.NewAssociationsDBHandler(db, true)
	require.NoError(t, err)
	embeddings, err := database.NewEmbeddingsDBHandler(db, testDim, true)
	require.NoError(t, err)

	_, err = db.Instance.Exec(`TRUNCATE courses, people CASCADE;`)
	require.NoError(t, err)

	return courses, embeddings
}

// seed stores a fully embedded course with one person per name vector.
// Vectors [x,0,0] are |1-x| away from the query [1,0,0].
func seed(t *testing.T, courses *database.CoursesDBHandler, embeddings *database.EmbeddingsDBHandler, id string, title float32, content float32, people ...float32) {
	t.Helper()
	ctx := context.Background()

	course := &model.Course{ID: id, Title: "Title " + id, Content: "Content " + id}
	for i := range people {
		course.People = append(course.People, &model.Person{ID: id + "-person-" + string(rune('a'+i)), Name: "Name"})
	}
	_, err := courses.UpsertCourse(ctx, course)
	require.NoError(t, err)

	_, err = embeddings.UpsertCourseEmbeddings(ctx, []*model.CourseEmbedding{{
		CourseID:     id,
		Title:        []float32{title, 0, 0},
		Content:      []float32{content, 0, 0},
		LastModified: course.LastModified,
	}})
	require.NoError(t, err)

	for i, p := range people {
		_, err = embeddings.InsertPersonEmbeddings(ctx, []*model.PersonEmbedding{{
			PersonID:  course.People[i].ID,
			Embedding: []float32{p, 0, 0},
		}})
		require.NoError(t, err)
	}
}
