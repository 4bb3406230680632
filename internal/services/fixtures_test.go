package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SAP-F-2025/enrollment-service/internal/certificate"
	"github.com/SAP-F-2025/enrollment-service/internal/events"
	"github.com/SAP-F-2025/enrollment-service/internal/metrics"
	"github.com/SAP-F-2025/enrollment-service/internal/models"
	"github.com/SAP-F-2025/enrollment-service/internal/repositories"
	"github.com/SAP-F-2025/enrollment-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/enrollment-service/internal/storage"
	"github.com/SAP-F-2025/enrollment-service/internal/validator"
)

// fakeUsers stands in for the Casdoor directory
type fakeUsers struct {
	users map[string]*models.User
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeUsers) ExistsByID(ctx context.Context, id string) (bool, error) {
	_, ok := f.users[id]
	return ok, nil
}

func (f *fakeUsers) HasRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	u, ok := f.users[id]
	return ok && u.Role == role, nil
}

// fakeTemplates serves fixed bytes or a fixed error and counts fetches
type fakeTemplates struct {
	mu    sync.Mutex
	data  []byte
	err   error
	calls int
}

func (f *fakeTemplates) Fetch(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

// fakeRenderer records the documents it was asked to draw
type fakeRenderer struct {
	mu   sync.Mutex
	docs []certificate.Document
	err  error
}

func (f *fakeRenderer) Render(template []byte, doc certificate.Document) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, doc)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.3 " + doc.Code), nil
}

type fixture struct {
	db        *gorm.DB
	repo      repositories.Repository
	redis     *miniredis.Miniredis
	logger    *slog.Logger
	validator *validator.Validator
	publisher *events.MockEventPublisher
	metrics   *metrics.Metrics
	blobs     *storage.MemoryStore
	templates *fakeTemplates
	renderer  *fakeRenderer
	users     *fakeUsers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	users := &fakeUsers{users: map[string]*models.User{}}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	return &fixture{
		db: db,
		repo: postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{
			DB:             db,
			RedisClient:    client,
			UserRepository: users,
		}),
		redis:     mr,
		logger:    log,
		validator: validator.New(),
		publisher: events.NewMockEventPublisher(log),
		metrics:   metrics.NewMetrics(prometheus.NewRegistry()),
		blobs:     storage.NewMemoryStore("https://certs.example.com"),
		templates: &fakeTemplates{data: []byte("template")},
		renderer:  &fakeRenderer{},
		users:     users,
	}
}

func (f *fixture) courses() *courseService {
	return NewCourseService(f.repo, f.db, f.logger, f.validator, NewReconciler(3), f.blobs, f.metrics).(*courseService)
}

func (f *fixture) registrations() *registrationService {
	return NewRegistrationService(f.repo, f.db, f.logger, f.validator, f.publisher, f.metrics).(*registrationService)
}

func (f *fixture) certificates() *certificateService {
	return NewCertificateService(f.repo, f.db, f.logger, f.validator, f.templates, f.renderer, f.blobs, f.publisher, f.metrics).(*certificateService)
}

func (f *fixture) addUser(role models.UserRole) *models.User {
	u := &models.User{ID: uuid.NewString(), FullName: string(role) + " user", Role: role}
	f.users.users[u.ID] = u
	return u
}

func (f *fixture) seedStudent(t *testing.T, name string) *models.Student {
	t.Helper()
	student := &models.Student{
		Name:         name,
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
	}
	require.NoError(t, f.repo.Student().Create(context.Background(), nil, student))
	return student
}

func (f *fixture) seedTicket(t *testing.T, code string) *models.Ticket {
	t.Helper()
	ticket := &models.Ticket{Code: code}
	require.NoError(t, f.repo.Ticket().Create(context.Background(), nil, ticket))
	return ticket
}

// seedCourse creates a course with the given number of lessons and one
// exam holding one question with a correct and a wrong option.
func (f *fixture) seedCourse(t *testing.T, lessons int) *models.Course {
	t.Helper()
	ctx := context.Background()

	course := &models.Course{Name: "Go avançado", Duration: "40 horas", Price: decimal.NewFromInt(100)}
	require.NoError(t, f.repo.Course().Create(ctx, nil, course))

	for i := 0; i < lessons; i++ {
		require.NoError(t, f.repo.Lesson().Create(ctx, nil, &models.Lesson{
			CourseID: course.ID,
			Title:    fmt.Sprintf("Lesson %d", i+1),
			Position: i + 1,
		}))
	}

	exam := &models.Exam{CourseID: course.ID, Title: "Final"}
	require.NoError(t, f.repo.Exam().Create(ctx, nil, exam))
	question := &models.Question{ExamID: exam.ID, Prompt: "2+2?", Position: 1}
	require.NoError(t, f.repo.Question().Create(ctx, nil, question))
	require.NoError(t, f.repo.QuestionOption().Create(ctx, nil, &models.QuestionOption{QuestionID: question.ID, Answer: "4", IsCorrect: true, Position: 1}))
	require.NoError(t, f.repo.QuestionOption().Create(ctx, nil, &models.QuestionOption{QuestionID: question.ID, Answer: "5", Position: 2}))

	full, err := f.repo.Course().GetWithDetails(ctx, f.db, course.ID)
	require.NoError(t, err)
	return full
}

func (f *fixture) register(t *testing.T, student *models.Student, course *models.Course) *models.Registration {
	t.Helper()
	registration, err := f.registrations().CreateRegistration(context.Background(), &CreateRegistrationRequest{
		StudentID:    student.ID,
		CourseID:     course.ID,
		RegisterDate: "2024-03-01",
		SupportDate:  "2025-03-01",
	})
	require.NoError(t, err)
	return registration
}

func (f *fixture) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := f.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func date(s string) datatypes.Date {
	d, _ := time.Parse(validator.DateLayout, s)
	return datatypes.Date(d)
}
