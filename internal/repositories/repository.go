package repositories

import "context"

// Repository aggregates every repository of the enrollment service
type Repository interface {
	// Course aggregate
	Course() CourseRepository
	Lesson() LessonRepository
	Material() MaterialRepository
	Exam() ExamRepository
	Question() QuestionRepository
	QuestionOption() QuestionOptionRepository

	// People and codes
	Student() StudentRepository
	Ticket() TicketRepository

	// Registration aggregate
	Registration() RegistrationRepository
	LessonProgress() LessonProgressRepository
	StudentAnswer() StudentAnswerRepository

	// Staff identities (read-only, backed by Casdoor)
	User() UserRepository

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
