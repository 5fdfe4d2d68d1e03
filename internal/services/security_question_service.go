package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/pitwall/internal/models"
	pkgauth "github.com/BradenHooton/pitwall/pkg/auth"
	"github.com/BradenHooton/pitwall/pkg/logger"
)

// SecurityQuestionRepository stores one question set per user
type SecurityQuestionRepository interface {
	GetQuestions(ctx context.Context, userID string) (*models.SecurityQuestionSet, error)
	UpsertQuestions(ctx context.Context, set *models.SecurityQuestionSet) error
}

// SecurityQuestionService is the step-up verifier: two catalog questions
// whose answers are stored as argon2id hashes.
type SecurityQuestionService struct {
	repo        SecurityQuestionRepository
	logger      *slog.Logger
	auditLogger *logger.AuditLogger
}

func NewSecurityQuestionService(repo SecurityQuestionRepository, logger *slog.Logger, auditLogger *logger.AuditLogger) *SecurityQuestionService {
	return &SecurityQuestionService{
		repo:        repo,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Catalog returns the fixed list of questions a user may pick from
func (s *SecurityQuestionService) Catalog() []string {
	out := make([]string, len(models.SecurityQuestionCatalog))
	copy(out, models.SecurityQuestionCatalog)
	return out
}

// Setup validates and stores a question set, replacing any prior set
func (s *SecurityQuestionService) Setup(ctx context.Context, userID, q1, a1, q2, a2 string) error {
	if err := models.ValidateQuestions(q1, a1, q2, a2); err != nil {
		return err
	}

	h1, err := pkgauth.HashAnswer(a1)
	if err != nil {
		return fmt.Errorf("failed to hash answer: %w", err)
	}
	h2, err := pkgauth.HashAnswer(a2)
	if err != nil {
		return fmt.Errorf("failed to hash answer: %w", err)
	}

	set := &models.SecurityQuestionSet{
		UserID:      userID,
		Question1:   q1,
		Answer1Hash: h1,
		Question2:   q2,
		Answer2Hash: h2,
	}
	if err := s.repo.UpsertQuestions(ctx, set); err != nil {
		s.logger.ErrorContext(ctx, "failed to store security questions",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to store security questions: %w", err)
	}

	s.auditLogger.LogAccountAction(ctx, logger.EventQuestionsSetup, userID, "", nil)
	return nil
}

// Challenge returns the question texts for userID
func (s *SecurityQuestionService) Challenge(ctx context.Context, userID string) (*models.SecurityChallenge, error) {
	set, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return set.Challenge(), nil
}

// Status reports whether userID has a question set
func (s *SecurityQuestionService) Status(ctx context.Context, userID string) (bool, error) {
	_, err := s.load(ctx, userID)
	if errors.Is(err, models.ErrNotConfigured) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Verify checks both answers. Both are always compared so the time taken
// does not reveal which one was wrong.
func (s *SecurityQuestionService) Verify(ctx context.Context, userID, a1, a2 string) error {
	set, err := s.load(ctx, userID)
	if err != nil {
		return err
	}

	ok1, err1 := pkgauth.CompareAnswer(set.Answer1Hash, a1)
	ok2, err2 := pkgauth.CompareAnswer(set.Answer2Hash, a2)
	if err := errors.Join(err1, err2); err != nil {
		s.logger.ErrorContext(ctx, "stored answer hash is unreadable",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to verify answers: %w", models.ErrInternalServer)
	}

	success := ok1 && ok2
	event := logger.AuditEvent{
		EventType: logger.EventStepUp,
		UserID:    userID,
		Success:   success,
	}
	if !success {
		event.FailureReason = "answers did not match"
	}
	s.auditLogger.Log(ctx, "step_up", event)

	if !success {
		return models.ErrVerificationFailed
	}
	return nil
}

func (s *SecurityQuestionService) load(ctx context.Context, userID string) (*models.SecurityQuestionSet, error) {
	set, err := s.repo.GetQuestions(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrNotConfigured
	}
	if err != nil {
		return nil, storeUnavailable("security questions", err)
	}
	return set, nil
}
