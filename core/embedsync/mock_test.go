package embedsync

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/siherrmann/coursesearch/core/pipeline"
	"github.com/siherrmann/coursesearch/model"
)

// memoryStore is an in memory stand in for the course, people and embedding handlers
type memoryStore struct {
	mu               sync.Mutex
	courses          map[string]*model.Course
	courseEmbeddings map[string]*model.CourseEmbedding
	people           map[string]*model.Person
	personEmbeddings map[string]*model.PersonEmbedding
	clock            time.Time
	failSelect       error
	failPersist      error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		courses:          map[string]*model.Course{},
		courseEmbeddings: map[string]*model.CourseEmbedding{},
		people:           map[string]*model.Person{},
		personEmbeddings: map[string]*model.PersonEmbedding{},
		clock:            time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *memoryStore) upsertCourse(id, title, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clock = s.clock.Add(time.Second)
	existing, ok := s.courses[id]
	if ok && existing.Title == title && existing.Content == content {
		return
	}
	s.courses[id] = &model.Course{ID: id, Title: title, Content: content, LastModified: s.clock}
}

func (s *memoryStore) addPerson(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.people[id] = &model.Person{ID: id, Name: name}
}

func (s *memoryStore) SelectStaleCourseIDs(ctx context.Context, fields []model.Field) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSelect != nil {
		return nil, s.failSelect
	}

	var ids []string
	for id, course := range s.courses {
		e, ok := s.courseEmbeddings[id]
		if !ok || course.LastModified.After(e.LastModified) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *memoryStore) SelectCoursesByIDs(ctx context.Context, ids []string) ([]*model.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSelect != nil {
		return nil, s.failSelect
	}

	var courses []*model.Course
	for _, id := range ids {
		if c, ok := s.courses[id]; ok {
			copied := *c
			courses = append(courses, &copied)
		}
	}
	return courses, nil
}

func (s *memoryStore) UpsertCourseEmbeddings(ctx context.Context, embeddings []*model.CourseEmbedding) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPersist != nil {
		return 0, s.failPersist
	}

	written := 0
	for _, e := range embeddings {
		if existing, ok := s.courseEmbeddings[e.CourseID]; ok && existing.LastModified.After(e.LastModified) {
			continue
		}
		s.courseEmbeddings[e.CourseID] = e
		written += 2
	}
	return written, nil
}

func (s *memoryStore) SelectPeopleMissingEmbedding(ctx context.Context) ([]*model.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSelect != nil {
		return nil, s.failSelect
	}

	var people []*model.Person
	for id, p := range s.people {
		if _, ok := s.personEmbeddings[id]; !ok {
			people = append(people, p)
		}
	}
	sort.Slice(people, func(i, j int) bool { return people[i].ID < people[j].ID })
	return people, nil
}

func (s *memoryStore) SelectPeopleByIDs(ctx context.Context, ids []string) ([]*model.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var people []*model.Person
	for _, id := range ids {
		if p, ok := s.people[id]; ok {
			people = append(people, p)
		}
	}
	return people, nil
}

func (s *memoryStore) InsertPersonEmbeddings(ctx context.Context, embeddings []*model.PersonEmbedding) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPersist != nil {
		return 0, s.failPersist
	}

	written := 0
	for _, e := range embeddings {
		if _, ok := s.personEmbeddings[e.PersonID]; ok {
			continue
		}
		s.personEmbeddings[e.PersonID] = e
		written++
	}
	return written, nil
}

// mockEmbedder fails every batch containing a text with failOn as substring
type mockEmbedder struct {
	mu       sync.Mutex
	dim      int
	maxBatch int
	failOn   string
	batches  int
	onEmbed  func()
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string, role pipeline.ContentRole) ([][]float32, error) {
	m.mu.Lock()
	m.batches++
	failOn := m.failOn
	onEmbed := m.onEmbed
	m.mu.Unlock()

	if onEmbed != nil {
		onEmbed()
	}
	if len(texts) > m.maxBatch {
		return nil, pipeline.ErrBatchTooLarge
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if failOn != "" && strings.Contains(text, failOn) {
			return nil, errors.New("model failed")
		}
		vectors[i] = make([]float32, m.dim)
		vectors[i][0] = float32(len(text))
	}
	return vectors, nil
}

func (m *mockEmbedder) Dimension() int    { return m.dim }
func (m *mockEmbedder) MaxBatchSize() int { return m.maxBatch }

func (m *mockEmbedder) setFailOn(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn = s
}

// mockLocker hands out one lock per name
type mockLocker struct {
	mu    sync.Mutex
	held  map[string]bool
	err   error
	taken int
	freed int
}

func (l *mockLocker) TryLock(ctx context.Context, name string) (func() error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[name] {
		return nil, false, nil
	}
	l.held[name] = true
	l.taken++
	return func() error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held[name] = false
		l.freed++
		return nil
	}, true, nil
}
