package service

import (
	"context"
	"log/slog"
	"sync"

	"checkout-orchestrator/internal/checkout"

	lru "github.com/hashicorp/golang-lru/v2"
)

const maxResultsPerUser = 20

// UserService keeps the recent checkout results shown to each user.
type UserService interface {
	checkout.ResultSink
	GetResults(ctx context.Context, userID string) []checkout.Result
}

type userServiceImpl struct {
	mu      sync.Mutex
	results *lru.Cache[string, []checkout.Result]
	logger  *slog.Logger
}

func NewUserService(size int, logger *slog.Logger) (UserService, error) {
	cache, err := lru.New[string, []checkout.Result](size)
	if err != nil {
		return nil, err
	}
	return &userServiceImpl{
		results: cache,
		logger:  logger,
	}, nil
}

func (s *userServiceImpl) Show(_ context.Context, userID string, result checkout.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, _ := s.results.Get(userID)
	next := append([]checkout.Result{result}, prev...)
	if len(next) > maxResultsPerUser {
		next = next[:maxResultsPerUser]
	}
	s.results.Add(userID, next)

	s.logger.Info("checkout result", "user_id", userID, "order_id", result.OrderID, "status", result.Status)
}

// GetResults returns the user's results, newest first.
func (s *userServiceImpl) GetResults(_ context.Context, userID string) []checkout.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	results, _ := s.results.Get(userID)
	return append([]checkout.Result(nil), results...)
}
