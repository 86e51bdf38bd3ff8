package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/coaching-practice/internal/model"
)

// CoachingLogRepo persists coaching logs and their reimbursement rows.
// Writes for one client are serialized through a row lock on the client.
type CoachingLogRepo struct{ DB *sql.DB }

func NewCoachingLogRepo(db *sql.DB) *CoachingLogRepo { return &CoachingLogRepo{DB: db} }

const logColumns = "id,client_id,version,data,locked,created_by,created_at,edited_by,edited_at"

// ListByClient returns every log of the client in creation order.
func (r *CoachingLogRepo) ListByClient(ctx context.Context, clientID uint64) ([]model.CoachingLog, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+logColumns+" FROM coaching_logs WHERE client_id=? ORDER BY id", clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.CoachingLog{}
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// Create locks every open log of the client and appends l together with its
// reimbursement row, all in one transaction.  The client row is selected
// FOR UPDATE and its coach must still be l.CreatedBy, otherwise ErrForbidden;
// an unknown client yields ErrNotFound.
func (r *CoachingLogRepo) Create(ctx context.Context, l *model.CoachingLog) (*model.Reimbursement, error) {
	var reimb *model.Reimbursement
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var coach sql.NullString
		err := tx.QueryRowContext(ctx,
			"SELECT coach_username FROM clients WHERE id=? FOR UPDATE", l.ClientID).Scan(&coach)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !coach.Valid || coach.String != l.CreatedBy {
			return ErrForbidden
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE coaching_logs SET locked=1 WHERE client_id=? AND locked=0", l.ClientID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			"INSERT INTO coaching_logs (client_id,version,data,locked,created_by,created_at,edited_by,edited_at) VALUES (?,?,?,0,?,?,?,?)",
			l.ClientID, l.Version, []byte(l.Data), l.CreatedBy, l.CreatedAt, l.EditedBy, l.EditedAt)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		l.ID = uint64(id)
		l.Locked = false

		res, err = tx.ExecContext(ctx,
			"INSERT INTO coaching_log_reimbursement (coaching_log_id,reimbursed,reimbursed_to) VALUES (?,0,?)",
			l.ID, l.CreatedBy)
		if err != nil {
			return err
		}
		rid, err := res.LastInsertId()
		if err != nil {
			return err
		}
		reimb = &model.Reimbursement{ID: uint64(rid), CoachingLogID: l.ID, ReimbursedTo: l.CreatedBy}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reimb, nil
}

// EditLatest overwrites the data of the client's most recent log.  It
// returns ErrNotFound when the client has no logs and ErrLocked when the
// latest log is locked.
func (r *CoachingLogRepo) EditLatest(ctx context.Context, clientID uint64, version string, data []byte, editor string, at time.Time) (*model.CoachingLog, error) {
	var out *model.CoachingLog
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		l, err := scanLog(tx.QueryRowContext(ctx,
			"SELECT "+logColumns+" FROM coaching_logs WHERE client_id=? ORDER BY id DESC LIMIT 1 FOR UPDATE", clientID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if l.Locked {
			return ErrLocked
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE coaching_logs SET version=?, data=?, edited_by=?, edited_at=? WHERE id=?",
			version, data, editor, at, l.ID); err != nil {
			return err
		}
		l.Version = version
		l.Data = append(l.Data[:0:0], data...)
		l.EditedBy = editor
		l.EditedAt = at
		out = l
		return nil
	})
	return out, err
}

func scanLog(s rowScanner) (*model.CoachingLog, error) {
	var (
		l    model.CoachingLog
		data []byte
	)
	if err := s.Scan(&l.ID, &l.ClientID, &l.Version, &data, &l.Locked,
		&l.CreatedBy, &l.CreatedAt, &l.EditedBy, &l.EditedAt); err != nil {
		return nil, err
	}
	l.Data = data
	return &l, nil
}
