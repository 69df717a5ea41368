package users

import (
	"context"
	"log/slog"
	"time"

	"github.com/promokod/promobot/bot/flow"
	"github.com/promokod/promobot/core/logger"
)

// registry is the storage surface the service needs; *Repository
// satisfies it.
type registry interface {
	Upsert(ctx context.Context, telegramID int64, fullName string) (User, error)
	SetStatus(ctx context.Context, telegramID int64, status Status) error
	AllTelegramIDs(ctx context.Context) ([]int64, error)
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
	CountCreatedSince(ctx context.Context, t time.Time) (int, error)
}

// Service keeps the registry in step with the conversation flow.
type Service struct {
	repo registry
}

// NewService wraps a repository.
func NewService(repo registry) *Service {
	return &Service{repo: repo}
}

// Register records first contact with a user.
func (s *Service) Register(ctx context.Context, telegramID int64, fullName string) error {
	u, err := s.repo.Upsert(ctx, telegramID, fullName)
	if err != nil {
		logger.Error(ctx, "users", "users.register",
			slog.Int64("user_id", telegramID), slog.Any("err", err))
		return err
	}
	logger.Debug(ctx, "users", "users.register",
		slog.Int64("user_id", telegramID), slog.String("username", u.FullName))
	return nil
}

// FlowHook returns a transition hook that advances a user's registry
// status as they pass the gate and verify their ID. Registry failures
// are logged and swallowed: the conversation must not stall on them.
func (s *Service) FlowHook() flow.TransitionHook {
	return func(ctx context.Context, userID int64, from, to flow.State) {
		var status Status
		switch {
		case from == flow.StateChannelCheck && to == flow.StateMainMenu:
			status = StatusChannelJoined
		case from == flow.StateAwaitingUserID && to == flow.StateCongratulation:
			status = StatusIDVerified
		default:
			return
		}
		if err := s.repo.SetStatus(ctx, userID, status); err != nil {
			logger.Warn(ctx, "users", "users.status",
				slog.Int64("user_id", userID),
				slog.String("status", string(status)),
				slog.Any("err", err))
			return
		}
		logger.Debug(ctx, "users", "users.status",
			slog.Int64("user_id", userID), slog.String("status", string(status)))
	}
}

// Recipients lists every registered user id for broadcast fan-out.
func (s *Service) Recipients(ctx context.Context) ([]int64, error) {
	return s.repo.AllTelegramIDs(ctx)
}

// Stats is a snapshot of registry totals for the admin panel.
type Stats struct {
	Total     int
	ByStatus  map[Status]int
	Today     int
	ThisWeek  int
	Collected time.Time
}

// Stats aggregates the registry counters.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	now := time.Now()
	total, err := s.repo.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	byStatus, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return Stats{}, err
	}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := s.repo.CountCreatedSince(ctx, dayStart)
	if err != nil {
		return Stats{}, err
	}
	week, err := s.repo.CountCreatedSince(ctx, now.AddDate(0, 0, -7))
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Total:     total,
		ByStatus:  byStatus,
		Today:     today,
		ThisWeek:  week,
		Collected: now,
	}, nil
}
