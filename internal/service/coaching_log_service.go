package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/iliyamo/coaching-practice/internal/authz"
	"github.com/iliyamo/coaching-practice/internal/logger"
	"github.com/iliyamo/coaching-practice/internal/metrics"
	"github.com/iliyamo/coaching-practice/internal/model"
	"github.com/iliyamo/coaching-practice/internal/queue"
	"github.com/iliyamo/coaching-practice/internal/repository"
)

const publishTimeout = 3 * time.Second

// CoachingLogService runs the coaching log ledger: creating a log locks the
// previous one and only the latest unlocked log may be edited.
type CoachingLogService struct {
	Clients ClientStore
	Logs    CoachingLogStore
	Events  EventPublisher
	Now     func() time.Time
}

func NewCoachingLogService(clients ClientStore, logs CoachingLogStore, events EventPublisher) *CoachingLogService {
	return &CoachingLogService{Clients: clients, Logs: logs, Events: events, Now: time.Now}
}

// authorize loads the client and applies act.  Unknown clients are denied
// rather than reported missing.
func (s *CoachingLogService) authorize(ctx context.Context, actor *model.User, clientID uint64, act authz.Action) error {
	c, err := s.Clients.GetByID(ctx, clientID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUnauthorizedAccess
	}
	if err != nil {
		return err
	}
	return denied(authz.Authorize(authz.SubjectOf(*actor), act, authz.ResourceOf(*c)))
}

// Create appends a new unlocked log for the client, locking every earlier
// one, and records a pending reimbursement for actor.
func (s *CoachingLogService) Create(ctx context.Context, actor *model.User, clientID uint64, data json.RawMessage) (*model.CoachingLog, *model.Reimbursement, error) {
	if !isJSONObject(data) {
		return nil, nil, ErrLogDataNotObject
	}
	if err := s.authorize(ctx, actor, clientID, authz.ActionWriteCoachingLog); err != nil {
		return nil, nil, err
	}

	now := s.Now().UTC()
	l := &model.CoachingLog{
		ClientID:  clientID,
		Version:   model.CurrentCoachingLogVersion,
		Data:      data,
		CreatedBy: actor.Username,
		CreatedAt: now,
		EditedBy:  actor.Username,
		EditedAt:  now,
	}
	r, err := s.Logs.Create(ctx, l)
	if err != nil {
		// the coach may have been reassigned since the check above
		if errors.Is(err, repository.ErrForbidden) || errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrUnauthorizedAccess
		}
		return nil, nil, err
	}
	metrics.CoachingLogsCreatedTotal.Inc()
	log := logger.Get()
	log.Info().Uint64("client_id", clientID).Uint64("coaching_log_id", l.ID).Str("coach", actor.Username).Msg("coaching log created")

	s.publishCreated(ctx, l, r)
	return l, r, nil
}

func (s *CoachingLogService) publishCreated(ctx context.Context, l *model.CoachingLog, r *model.Reimbursement) {
	if s.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	ev := queue.CoachingLogCreatedEvent{
		CoachingLogID:   l.ID,
		ReimbursementID: r.ID,
		ClientID:        l.ClientID,
		Coach:           r.ReimbursedTo,
		CreatedAt:       l.CreatedAt.Format(time.RFC3339),
	}
	if err := s.Events.PublishCoachingLogCreated(ctx, ev); err != nil {
		metrics.EventsPublishFailuresTotal.Inc()
	}
}

// Edit overwrites the latest log of the client.  Locked logs are immutable.
func (s *CoachingLogService) Edit(ctx context.Context, actor *model.User, clientID uint64, data json.RawMessage) (*model.CoachingLog, error) {
	if !isJSONObject(data) {
		return nil, ErrLogDataNotObject
	}
	if err := s.authorize(ctx, actor, clientID, authz.ActionWriteCoachingLog); err != nil {
		return nil, err
	}
	l, err := s.Logs.EditLatest(ctx, clientID, model.CurrentCoachingLogVersion, data, actor.Username, s.Now().UTC())
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrLogNotFound
	case errors.Is(err, repository.ErrLocked):
		return nil, ErrLockedLog
	case err != nil:
		return nil, err
	}
	log := logger.Get()
	log.Info().Uint64("client_id", clientID).Uint64("coaching_log_id", l.ID).Str("coach", actor.Username).Msg("coaching log edited")
	return l, nil
}

// List returns the client's logs in creation order.
func (s *CoachingLogService) List(ctx context.Context, actor *model.User, clientID uint64) ([]model.CoachingLog, error) {
	if err := s.authorize(ctx, actor, clientID, authz.ActionListCoachingLogs); err != nil {
		return nil, err
	}
	return s.Logs.ListByClient(ctx, clientID)
}

func isJSONObject(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}
