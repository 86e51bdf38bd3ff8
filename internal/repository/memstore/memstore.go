// Package memstore is an in-memory implementation of the user, client and
// coaching log stores with the same semantics as the MySQL repositories:
// duplicate usernames fail, client ids fall back to a sequence after
// collisions, and creating a log locks the earlier ones.  Tests use it to run
// the services and HTTP handlers without a database.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/coaching-practice/internal/model"
	"github.com/iliyamo/coaching-practice/internal/repository"
)

// Store holds every table.  Users, Clients and Logs return the per-table views.
type Store struct {
	mu       sync.Mutex
	users    map[string]model.User
	clients  map[uint64]model.Client
	dqs      map[uint64]model.DiscoveryQuestionnaire
	logs     []model.CoachingLog
	reimbs   []model.Reimbursement
	nextAuto uint64
}

func New() *Store {
	return &Store{
		users:    map[string]model.User{},
		clients:  map[uint64]model.Client{},
		dqs:      map[uint64]model.DiscoveryQuestionnaire{},
		nextAuto: model.MaxRandomClientID + 1,
	}
}

func (s *Store) Users() *Users     { return &Users{s} }
func (s *Store) Clients() *Clients { return &Clients{s} }
func (s *Store) Logs() *Logs       { return &Logs{s} }

// Reimbursements returns a copy of every reimbursement row.
func (s *Store) Reimbursements() []model.Reimbursement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Reimbursement(nil), s.reimbs...)
}

// Questionnaire returns the questionnaire stored for the client.
func (s *Store) Questionnaire(clientID uint64) (model.DiscoveryQuestionnaire, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.dqs[clientID]
	return q, ok
}

// SetDisabled flips the disabled flag of a user.
func (s *Store) SetDisabled(username string, disabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[username]; ok {
		u.Disabled = disabled
		s.users[username] = u
	}
}

// LockLogs marks every log of the client locked, as an operator editing the
// table directly would.
func (s *Store) LockLogs(clientID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.logs {
		if s.logs[i].ClientID == clientID {
			s.logs[i].Locked = true
		}
	}
}

func window[T any](in []T, limit, skip int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip > len(in) {
		skip = len(in)
	}
	in = in[skip:]
	if limit >= 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

// Users is the users table.
type Users struct{ s *Store }

func (u *Users) Create(ctx context.Context, user *model.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if _, ok := u.s.users[user.Username]; ok {
		return repository.ErrDuplicate
	}
	user.ID = uint64(len(u.s.users) + 1)
	u.s.users[user.Username] = *user
	return nil
}

func (u *Users) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (u *Users) UpdatePassword(ctx context.Context, username, hash string) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[username]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = hash
	u.s.users[username] = user
	return nil
}

func (u *Users) List(ctx context.Context, limit, skip int) ([]model.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	out := []model.User{}
	for _, user := range u.s.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return window(out, limit, skip), nil
}

// Clients is the clients table with the questionnaires.
type Clients struct{ s *Store }

func (c *Clients) CreateWithQuestionnaire(ctx context.Context, cl *model.Client, q *model.DiscoveryQuestionnaire, gen repository.IDGenerator, attempts int) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	var id uint64
	found := false
	for i := 0; gen != nil && i < attempts && !found; i++ {
		cand := gen()
		if cand == 0 {
			// zero asks the database for an id, like the MySQL table
			break
		}
		if _, taken := c.s.clients[cand]; !taken {
			id, found = cand, true
		}
	}
	if !found {
		id = c.s.nextAuto
		c.s.nextAuto++
	}
	cl.ID = id
	q.ClientID = id
	q.ID = uint64(len(c.s.dqs) + 1)
	c.s.clients[id] = *cl
	c.s.dqs[id] = *q
	return nil
}

func (c *Clients) GetByID(ctx context.Context, id uint64) (*model.Client, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	cl, ok := c.s.clients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &cl, nil
}

func (c *Clients) GetWithCoach(ctx context.Context, id uint64) (*model.Client, *model.CoachName, error) {
	cl, err := c.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if cl.CoachUsername == nil {
		return cl, nil, nil
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	u := c.s.users[*cl.CoachUsername]
	return cl, &model.CoachName{FirstName: u.FirstName, LastName: u.LastName}, nil
}

func (c *Clients) NamesByCoach(ctx context.Context, coach string) ([]model.ClientName, error) {
	all, err := c.NamesByCoaches(ctx, []string{coach})
	if err != nil {
		return nil, err
	}
	if all[coach] == nil {
		return []model.ClientName{}, nil
	}
	return all[coach], nil
}

func (c *Clients) NamesByCoaches(ctx context.Context, coaches []string) (map[string][]model.ClientName, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	want := map[string]bool{}
	for _, name := range coaches {
		want[name] = true
	}
	out := map[string][]model.ClientName{}
	for _, cl := range c.sorted() {
		if cl.CoachUsername != nil && want[*cl.CoachUsername] {
			out[*cl.CoachUsername] = append(out[*cl.CoachUsername], model.ClientName{ID: cl.ID, FirstName: cl.FirstName, LastName: cl.LastName})
		}
	}
	return out, nil
}

func (c *Clients) List(ctx context.Context, limit, skip int) ([]model.Client, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return window(c.sorted(), limit, skip), nil
}

// sorted returns the clients ordered by id.  Callers hold the lock.
func (c *Clients) sorted() []model.Client {
	out := make([]model.Client, 0, len(c.s.clients))
	for _, cl := range c.s.clients {
		out = append(out, cl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Clients) UpdateCoach(ctx context.Context, clientID uint64, coach string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	cl, ok := c.s.clients[clientID]
	if !ok {
		return repository.ErrNotFound
	}
	cl.CoachUsername = &coach
	c.s.clients[clientID] = cl
	return nil
}

// Logs is the coaching log ledger with its reimbursements.
type Logs struct{ s *Store }

func (l *Logs) ListByClient(ctx context.Context, clientID uint64) ([]model.CoachingLog, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	out := []model.CoachingLog{}
	for _, log := range l.s.logs {
		if log.ClientID == clientID {
			out = append(out, log)
		}
	}
	return out, nil
}

func (l *Logs) Create(ctx context.Context, log *model.CoachingLog) (*model.Reimbursement, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	cl, ok := l.s.clients[log.ClientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !cl.CoachedBy(log.CreatedBy) {
		return nil, repository.ErrForbidden
	}
	for i := range l.s.logs {
		if l.s.logs[i].ClientID == log.ClientID {
			l.s.logs[i].Locked = true
		}
	}
	log.ID = uint64(len(l.s.logs) + 1)
	log.Locked = false
	l.s.logs = append(l.s.logs, *log)
	r := model.Reimbursement{ID: uint64(len(l.s.reimbs) + 1), CoachingLogID: log.ID, ReimbursedTo: log.CreatedBy}
	l.s.reimbs = append(l.s.reimbs, r)
	return &r, nil
}

func (l *Logs) EditLatest(ctx context.Context, clientID uint64, version string, data []byte, editor string, at time.Time) (*model.CoachingLog, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	for i := len(l.s.logs) - 1; i >= 0; i-- {
		log := &l.s.logs[i]
		if log.ClientID != clientID {
			continue
		}
		if log.Locked {
			return nil, repository.ErrLocked
		}
		log.Version = version
		log.Data = append([]byte(nil), data...)
		log.EditedBy = editor
		log.EditedAt = at
		out := *log
		return &out, nil
	}
	return nil, repository.ErrNotFound
}
