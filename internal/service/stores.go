package service

import (
	"context"
	"time"

	"github.com/iliyamo/coaching-practice/internal/model"
	"github.com/iliyamo/coaching-practice/internal/queue"
	"github.com/iliyamo/coaching-practice/internal/repository"
)

// UserStore is the persistence the services need for users.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	UpdatePassword(ctx context.Context, username, hash string) error
	List(ctx context.Context, limit, skip int) ([]model.User, error)
}

// ClientStore is the persistence the services need for clients.
type ClientStore interface {
	CreateWithQuestionnaire(ctx context.Context, c *model.Client, q *model.DiscoveryQuestionnaire, gen repository.IDGenerator, attempts int) error
	GetByID(ctx context.Context, id uint64) (*model.Client, error)
	GetWithCoach(ctx context.Context, id uint64) (*model.Client, *model.CoachName, error)
	NamesByCoach(ctx context.Context, coach string) ([]model.ClientName, error)
	NamesByCoaches(ctx context.Context, coaches []string) (map[string][]model.ClientName, error)
	List(ctx context.Context, limit, skip int) ([]model.Client, error)
	UpdateCoach(ctx context.Context, clientID uint64, coach string) error
}

// CoachingLogStore is the persistence of the coaching log ledger.
type CoachingLogStore interface {
	ListByClient(ctx context.Context, clientID uint64) ([]model.CoachingLog, error)
	Create(ctx context.Context, l *model.CoachingLog) (*model.Reimbursement, error)
	EditLatest(ctx context.Context, clientID uint64, version string, data []byte, editor string, at time.Time) (*model.CoachingLog, error)
}

// EventPublisher delivers domain events.  A nil publisher disables events.
type EventPublisher interface {
	PublishCoachingLogCreated(ctx context.Context, ev queue.CoachingLogCreatedEvent) error
}

var (
	_ UserStore        = (*repository.UserRepo)(nil)
	_ ClientStore      = (*repository.ClientRepo)(nil)
	_ CoachingLogStore = (*repository.CoachingLogRepo)(nil)
	_ EventPublisher   = (*queue.Publisher)(nil)
)
