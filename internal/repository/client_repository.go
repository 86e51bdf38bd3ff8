package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/iliyamo/coaching-practice/internal/database"
	"github.com/iliyamo/coaching-practice/internal/model"
)

// ClientRepo stores clients and their discovery questionnaires.
type ClientRepo struct{ DB *sql.DB }

func NewClientRepo(db *sql.DB) *ClientRepo { return &ClientRepo{DB: db} }

const clientColumns = "c.id,c.coach_username,c.first_name,c.last_name,c.email,c.mobile_phone,c.sex,c.age,c.current_location,c.disabled,c.created_by,c.created_at"

// IDGenerator yields candidate client ids.
type IDGenerator func() uint64

// CreateWithQuestionnaire inserts the client and its questionnaire in one
// transaction.  Up to attempts random ids from gen are tried; when every
// candidate collides the database assigns the id instead.  On success c.ID
// and q.ClientID hold the stored id.
func (r *ClientRepo) CreateWithQuestionnaire(ctx context.Context, c *model.Client, q *model.DiscoveryQuestionnaire, gen IDGenerator, attempts int) error {
	data, err := json.Marshal(q.Data)
	if err != nil {
		return err
	}
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		id, err := insertClientTx(ctx, tx, c, gen, attempts)
		if err != nil {
			return err
		}
		c.ID = id
		q.ClientID = id

		res, err := tx.ExecContext(ctx,
			"INSERT INTO client_discovery_questionnaire (client_id,version,data,created_at) VALUES (?,?,?,?)",
			id, q.Version, data, q.CreatedAt)
		if err != nil {
			return err
		}
		qid, err := res.LastInsertId()
		if err != nil {
			return err
		}
		q.ID = uint64(qid)
		return nil
	})
}

const insertClientCols = "coach_username,first_name,last_name,email,mobile_phone,sex,age,current_location,created_by,created_at"

func insertClientTx(ctx context.Context, tx *sql.Tx, c *model.Client, gen IDGenerator, attempts int) (uint64, error) {
	args := []interface{}{nullString(c.CoachUsername), c.FirstName, c.LastName, c.Email,
		c.MobilePhone, c.Sex, c.Age, c.CurrentLocation, nullString(c.CreatedBy), c.CreatedAt}

	if gen != nil {
		for i := 0; i < attempts; i++ {
			id := gen()
			res, err := tx.ExecContext(ctx,
				"INSERT INTO clients (id,"+insertClientCols+") VALUES (?,?,?,?,?,?,?,?,?,?,?)",
				append([]interface{}{id}, args...)...)
			if err == nil {
				// an explicit 0 makes MySQL generate the id; report what was stored
				if got, err := res.LastInsertId(); err == nil && got > 0 {
					return uint64(got), nil
				}
				return id, nil
			}
			// InnoDB rolls back only the failed statement, so the tx stays usable
			if !database.IsDuplicateKey(err) {
				return 0, err
			}
		}
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO clients ("+insertClientCols+") VALUES (?,?,?,?,?,?,?,?,?,?)", args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetWithCoach returns the client and its coach's name.  The coach name is
// nil when the client is unassigned.
func (r *ClientRepo) GetWithCoach(ctx context.Context, id uint64) (*model.Client, *model.CoachName, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+clientColumns+",u.first_name,u.last_name FROM clients c LEFT JOIN users u ON u.username=c.coach_username WHERE c.id=?", id)
	var (
		first, last sql.NullString
	)
	c, err := scanClient(row, &first, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if !first.Valid {
		return c, nil, nil
	}
	return c, &model.CoachName{FirstName: first.String, LastName: last.String}, nil
}

// GetByID fetches a single client.
func (r *ClientRepo) GetByID(ctx context.Context, id uint64) (*model.Client, error) {
	c, err := scanClient(r.DB.QueryRowContext(ctx, "SELECT "+clientColumns+" FROM clients c WHERE c.id=?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// NamesByCoach lists the id and name of every client assigned to coach,
// ordered by id.
func (r *ClientRepo) NamesByCoach(ctx context.Context, coach string) ([]model.ClientName, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,first_name,last_name FROM clients WHERE coach_username=? ORDER BY id", coach)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ClientName{}
	for rows.Next() {
		var n model.ClientName
		if err := rows.Scan(&n.ID, &n.FirstName, &n.LastName); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// NamesByCoaches groups client names by coach username for the given coaches.
func (r *ClientRepo) NamesByCoaches(ctx context.Context, coaches []string) (map[string][]model.ClientName, error) {
	out := make(map[string][]model.ClientName, len(coaches))
	if len(coaches) == 0 {
		return out, nil
	}
	q := "SELECT coach_username,id,first_name,last_name FROM clients WHERE coach_username IN (?"
	args := []interface{}{coaches[0]}
	for _, c := range coaches[1:] {
		q += ",?"
		args = append(args, c)
	}
	q += ") ORDER BY id"

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			coach string
			n     model.ClientName
		)
		if err := rows.Scan(&coach, &n.ID, &n.FirstName, &n.LastName); err != nil {
			return nil, err
		}
		out[coach] = append(out[coach], n)
	}
	return out, rows.Err()
}

// List returns clients ordered by id.  limit < 0 means no limit.
func (r *ClientRepo) List(ctx context.Context, limit, skip int) ([]model.Client, error) {
	q, args := paginate("SELECT "+clientColumns+" FROM clients c ORDER BY c.id", nil, limit, skip)
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// UpdateCoach assigns coach to the client.  The coach must exist.
func (r *ClientRepo) UpdateCoach(ctx context.Context, clientID uint64, coach string) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM clients WHERE id=? FOR UPDATE", clientID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "UPDATE clients SET coach_username=? WHERE id=?", coach, clientID)
		return err
	})
}

func scanClient(s rowScanner, extra ...interface{}) (*model.Client, error) {
	var (
		c         model.Client
		coach     sql.NullString
		createdBy sql.NullString
	)
	dest := []interface{}{&c.ID, &coach, &c.FirstName, &c.LastName, &c.Email, &c.MobilePhone,
		&c.Sex, &c.Age, &c.CurrentLocation, &c.Disabled, &createdBy, &c.CreatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	c.CoachUsername = stringPtr(coach)
	c.CreatedBy = stringPtr(createdBy)
	return &c, nil
}
