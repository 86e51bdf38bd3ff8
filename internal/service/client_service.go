package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/iliyamo/coaching-practice/internal/authz"
	"github.com/iliyamo/coaching-practice/internal/logger"
	"github.com/iliyamo/coaching-practice/internal/metrics"
	"github.com/iliyamo/coaching-practice/internal/model"
	"github.com/iliyamo/coaching-practice/internal/repository"
)

// NewClient carries the fields of a client created by an admin.
type NewClient struct {
	FirstName       string
	LastName        string
	Email           string
	MobilePhone     string
	Sex             string
	Age             int
	CurrentLocation string
}

// RandomClientID draws a candidate id uniformly from [0, MaxRandomClientID].
func RandomClientID() uint64 {
	return uint64(rand.Int63n(model.MaxRandomClientID + 1))
}

// ClientService manages client records and coach assignment.
type ClientService struct {
	Clients  ClientStore
	Users    UserStore
	Attempts int
	IDGen    repository.IDGenerator
	Now      func() time.Time
}

func NewClientService(clients ClientStore, users UserStore, attempts int) *ClientService {
	return &ClientService{Clients: clients, Users: users, Attempts: attempts, IDGen: RandomClientID, Now: time.Now}
}

// Create stores a new unassigned client together with its discovery
// questionnaire and returns the client id.
func (s *ClientService) Create(ctx context.Context, actor *model.User, in NewClient, dq [][]string) (uint64, error) {
	if err := denied(authz.Authorize(authz.SubjectOf(*actor), authz.ActionManageClients, authz.Resource{})); err != nil {
		return 0, err
	}
	now := s.Now().UTC()
	creator := actor.Username
	c := &model.Client{
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		Email:           in.Email,
		MobilePhone:     in.MobilePhone,
		Sex:             in.Sex,
		Age:             in.Age,
		CurrentLocation: in.CurrentLocation,
		CreatedBy:       &creator,
		CreatedAt:       now,
	}
	if dq == nil {
		dq = [][]string{}
	}
	q := &model.DiscoveryQuestionnaire{Version: model.CurrentQuestionnaireVersion, Data: dq, CreatedAt: now}

	// remember the last candidate so the metric can tell the fallback apart
	var last uint64
	gen := func() uint64 {
		last = s.IDGen()
		return last
	}
	if err := s.Clients.CreateWithQuestionnaire(ctx, c, q, gen, s.Attempts); err != nil {
		return 0, err
	}
	source := "random"
	if c.ID != last {
		source = "auto_increment"
	}
	metrics.ClientsCreatedTotal.WithLabelValues(source).Inc()
	log := logger.Get()
	log.Info().Uint64("client_id", c.ID).Str("id_source", source).Str("created_by", creator).Msg("client created")
	return c.ID, nil
}

// AssignCoach makes coach the client's coach, replacing any previous one.
func (s *ClientService) AssignCoach(ctx context.Context, actor *model.User, clientID uint64, coach string) (*model.ClientCoachView, error) {
	if err := denied(authz.Authorize(authz.SubjectOf(*actor), authz.ActionManageClients, authz.Resource{})); err != nil {
		return nil, err
	}
	u, err := s.Users.GetByUsername(ctx, coach)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUsernameNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.Clients.UpdateCoach(ctx, clientID, coach); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	c, err := s.Clients.GetByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	log := logger.Get()
	log.Info().Uint64("client_id", clientID).Str("coach", coach).Str("by", actor.Username).Msg("coach assigned")
	return &model.ClientCoachView{Client: *c, Coach: model.CoachName{FirstName: u.FirstName, LastName: u.LastName}}, nil
}

// Get returns the client with its coach's name.  Unknown ids are reported
// the same way as clients the caller may not see.
func (s *ClientService) Get(ctx context.Context, actor *model.User, clientID uint64) (*model.ClientCoachView, error) {
	c, coach, err := s.Clients.GetWithCoach(ctx, clientID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnauthorizedAccess
	}
	if err != nil {
		return nil, err
	}
	if err := denied(authz.Authorize(authz.SubjectOf(*actor), authz.ActionViewClient, authz.ResourceOf(*c))); err != nil {
		return nil, err
	}

	view := &model.ClientCoachView{Client: *c}
	switch {
	case c.CoachedBy(actor.Username):
		view.Coach = model.CoachName{FirstName: actor.FirstName, LastName: actor.LastName}
	case coach != nil:
		view.Coach = *coach
	default:
		view.Coach = model.UnassignedCoach
	}
	return view, nil
}

// ListOwned returns the clients coached by actor, ordered by id.
func (s *ClientService) ListOwned(ctx context.Context, actor *model.User) ([]model.ClientName, error) {
	return s.Clients.NamesByCoach(ctx, actor.Username)
}

// ListAll returns every client ordered by id.  limit < 0 means no limit.
func (s *ClientService) ListAll(ctx context.Context, actor *model.User, limit, skip int) ([]model.Client, error) {
	if err := denied(authz.Authorize(authz.SubjectOf(*actor), authz.ActionManageClients, authz.Resource{})); err != nil {
		return nil, err
	}
	return s.Clients.List(ctx, limit, skip)
}
