package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/coaching-practice/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

var dupErr = &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}

func TestUserRepo_CreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("INSERT INTO users")).WillReturnError(dupErr)

	err := NewUserRepo(db).Create(context.Background(), &model.User{Username: "coach1", Role: model.RoleCoach})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByUsername(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(q("FROM users WHERE username=?")).WithArgs("coach1").
		WillReturnRows(sqlmock.NewRows([]string{"username", "id", "hashed_password", "first_name", "last_name", "email", "role", "disabled", "created_by", "created_at"}).
			AddRow("coach1", 2, "hash", "Ann", "Lee", "a@x.io", "coach", false, "root", now))
	mock.ExpectQuery(q("FROM users WHERE username=?")).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	repo := NewUserRepo(db)
	u, err := repo.GetByUsername(context.Background(), "coach1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), u.ID)
	require.NotNil(t, u.CreatedBy)
	assert.Equal(t, "root", *u.CreatedBy)

	_, err = repo.GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaginate(t *testing.T) {
	s, args := paginate("SELECT 1", nil, 10, 5)
	assert.Equal(t, "SELECT 1 LIMIT ? OFFSET ?", s)
	assert.Equal(t, []interface{}{10, 5}, args)

	s, args = paginate("SELECT 1", nil, -1, 0)
	assert.Equal(t, "SELECT 1", s)
	assert.Empty(t, args)

	s, args = paginate("SELECT 1", nil, -1, 3)
	assert.Contains(t, s, "OFFSET ?")
	assert.Equal(t, []interface{}{3}, args)
}

func TestClientRepo_CreateRetriesOnCollision(t *testing.T) {
	db, mock := newMock(t)
	ids := []uint64{42, 42, 7}
	gen := func() uint64 { id := ids[0]; ids = ids[1:]; return id }

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO clients (id,")).WillReturnError(dupErr)
	mock.ExpectExec(q("INSERT INTO clients (id,")).WillReturnError(dupErr)
	mock.ExpectExec(q("INSERT INTO clients (id,")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO client_discovery_questionnaire")).
		WithArgs(uint64(7), "1.1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	c := &model.Client{FirstName: "Jo"}
	dq := &model.DiscoveryQuestionnaire{Version: "1.1", Data: [][]string{{"goal", "run"}}}
	require.NoError(t, NewClientRepo(db).CreateWithQuestionnaire(context.Background(), c, dq, gen, 8))
	assert.Equal(t, uint64(7), c.ID)
	assert.Equal(t, uint64(7), dq.ClientID)
	assert.Equal(t, uint64(3), dq.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientRepo_CreateFallsBackToAutoIncrement(t *testing.T) {
	db, mock := newMock(t)
	gen := func() uint64 { return 42 }

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO clients (id,")).WillReturnError(dupErr)
	mock.ExpectExec(q("INSERT INTO clients (id,")).WillReturnError(dupErr)
	mock.ExpectExec(q("INSERT INTO clients (coach_username,")).WillReturnResult(sqlmock.NewResult(1000001, 1))
	mock.ExpectExec(q("INSERT INTO client_discovery_questionnaire")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	c := &model.Client{}
	require.NoError(t, NewClientRepo(db).CreateWithQuestionnaire(context.Background(), c, &model.DiscoveryQuestionnaire{}, gen, 2))
	assert.Equal(t, uint64(1000001), c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientRepo_CreateZeroCandidateUsesStoredID(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO clients (id,")).
		WithArgs(append([]driver.Value{uint64(0)}, anyArgs(10)...)...).
		WillReturnResult(sqlmock.NewResult(1000003, 1))
	mock.ExpectExec(q("INSERT INTO client_discovery_questionnaire")).
		WithArgs(uint64(1000003), "1.1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectCommit()

	c := &model.Client{FirstName: "Jo"}
	dq := &model.DiscoveryQuestionnaire{Version: "1.1"}
	require.NoError(t, NewClientRepo(db).CreateWithQuestionnaire(context.Background(), c, dq, func() uint64 { return 0 }, 8))
	assert.Equal(t, uint64(1000003), c.ID)
	assert.Equal(t, uint64(1000003), dq.ClientID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func anyArgs(n int) []driver.Value {
	out := make([]driver.Value, n)
	for i := range out {
		out[i] = sqlmock.AnyArg()
	}
	return out
}

func TestClientRepo_CreateRollsBackOnQuestionnaireFailure(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO clients (id,")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO client_discovery_questionnaire")).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := NewClientRepo(db).CreateWithQuestionnaire(context.Background(), &model.Client{},
		&model.DiscoveryQuestionnaire{}, func() uint64 { return 1 }, 8)
	assert.EqualError(t, err, "boom")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientRepo_GetWithCoach(t *testing.T) {
	db, mock := newMock(t)
	cols := []string{"id", "coach_username", "first_name", "last_name", "email", "mobile_phone", "sex", "age",
		"current_location", "disabled", "created_by", "created_at", "first_name", "last_name"}
	now := time.Now().UTC()
	mock.ExpectQuery(q("LEFT JOIN users")).WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(42, "coach1", "Jo", "Doe", "j@x.io", "555", "F", 30, "Oslo", false, "root", now, "Ann", "Lee"))
	mock.ExpectQuery(q("LEFT JOIN users")).WithArgs(uint64(43)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(43, nil, "Al", "Bo", "", "", "", 0, "", false, nil, now, nil, nil))
	mock.ExpectQuery(q("LEFT JOIN users")).WithArgs(uint64(44)).WillReturnError(sql.ErrNoRows)

	repo := NewClientRepo(db)
	c, coach, err := repo.GetWithCoach(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, c.CoachedBy("coach1"))
	assert.Equal(t, &model.CoachName{FirstName: "Ann", LastName: "Lee"}, coach)

	c, coach, err = repo.GetWithCoach(context.Background(), 43)
	require.NoError(t, err)
	assert.Nil(t, c.CoachUsername)
	assert.Nil(t, coach)

	_, _, err = repo.GetWithCoach(context.Background(), 44)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientRepo_UpdateCoachUnknownClient(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT 1 FROM clients WHERE id=? FOR UPDATE")).WithArgs(uint64(9)).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	assert.ErrorIs(t, NewClientRepo(db).UpdateCoach(context.Background(), 9, "coach1"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientRepo_NamesByCoaches(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("WHERE coach_username IN (?,?) ORDER BY id")).WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"coach_username", "id", "first_name", "last_name"}).
			AddRow("a", 1, "X", "Y").AddRow("b", 2, "Z", "W").AddRow("a", 3, "Q", "R"))

	got, err := NewClientRepo(db).NamesByCoaches(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, got["a"], 2)
	assert.Equal(t, uint64(3), got["a"][1].ID)
	assert.Len(t, got["b"], 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func newLog(coach string) *model.CoachingLog {
	now := time.Now().UTC()
	return &model.CoachingLog{ClientID: 42, Version: "1.1", Data: json.RawMessage(`{"s":1}`),
		CreatedBy: coach, CreatedAt: now, EditedBy: coach, EditedAt: now}
}

func TestCoachingLogRepo_CreateLocksAndReimburses(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT coach_username FROM clients WHERE id=? FOR UPDATE")).WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"coach_username"}).AddRow("coach1"))
	mock.ExpectExec(q("UPDATE coaching_logs SET locked=1 WHERE client_id=? AND locked=0")).WithArgs(uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO coaching_logs")).WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec(q("INSERT INTO coaching_log_reimbursement")).WithArgs(uint64(11), "coach1").
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectCommit()

	l := newLog("coach1")
	r, err := NewCoachingLogRepo(db).Create(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), l.ID)
	assert.Equal(t, &model.Reimbursement{ID: 5, CoachingLogID: 11, ReimbursedTo: "coach1"}, r)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCoachingLogRepo_CreateRejectsOtherCoach(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).WillReturnRows(sqlmock.NewRows([]string{"coach_username"}).AddRow("coach2"))
	mock.ExpectRollback()

	_, err := NewCoachingLogRepo(db).Create(context.Background(), newLog("coach1"))
	assert.ErrorIs(t, err, ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCoachingLogRepo_CreateRollsBackOnReimbursementFailure(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).WillReturnRows(sqlmock.NewRows([]string{"coach_username"}).AddRow("coach1"))
	mock.ExpectExec(q("UPDATE coaching_logs SET locked=1")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO coaching_logs")).WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectExec(q("INSERT INTO coaching_log_reimbursement")).WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	_, err := NewCoachingLogRepo(db).Create(context.Background(), newLog("coach1"))
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var logCols = []string{"id", "client_id", "version", "data", "locked", "created_by", "created_at", "edited_by", "edited_at"}

func TestCoachingLogRepo_EditLatest(t *testing.T) {
	now := time.Now().UTC()

	t.Run("unlocked", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q("ORDER BY id DESC LIMIT 1 FOR UPDATE")).WithArgs(uint64(42)).
			WillReturnRows(sqlmock.NewRows(logCols).AddRow(11, 42, "1.0", []byte(`{}`), false, "coach1", now, "coach1", now))
		mock.ExpectExec(q("UPDATE coaching_logs SET version=?, data=?, edited_by=?, edited_at=? WHERE id=?")).
			WithArgs("1.1", []byte(`{"a":1}`), "coach1", now, uint64(11)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		l, err := NewCoachingLogRepo(db).EditLatest(context.Background(), 42, "1.1", []byte(`{"a":1}`), "coach1", now)
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(l.Data))
		assert.Equal(t, "1.1", l.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("locked", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q("FOR UPDATE")).
			WillReturnRows(sqlmock.NewRows(logCols).AddRow(11, 42, "1.1", []byte(`{}`), true, "coach1", now, "coach1", now))
		mock.ExpectRollback()

		_, err := NewCoachingLogRepo(db).EditLatest(context.Background(), 42, "1.1", []byte(`{}`), "coach1", now)
		assert.ErrorIs(t, err, ErrLocked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("none", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q("FOR UPDATE")).WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := NewCoachingLogRepo(db).EditLatest(context.Background(), 42, "1.1", []byte(`{}`), "coach1", now)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCoachingLogRepo_ListOrdersByID(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	// a replica with a slow clock wrote log 12 "before" log 11
	mock.ExpectQuery(q("FROM coaching_logs WHERE client_id=? ORDER BY id")).WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows(logCols).
			AddRow(11, 42, "1.1", []byte(`{}`), true, "coach1", now, "coach1", now).
			AddRow(12, 42, "1.1", []byte(`{}`), false, "coach1", now.Add(-time.Minute), "coach1", now.Add(-time.Minute)))

	logs, err := NewCoachingLogRepo(db).ListByClient(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, []uint64{11, 12}, []uint64{logs[0].ID, logs[1].ID})
	assert.False(t, logs[1].Locked)
	assert.NoError(t, mock.ExpectationsWereMet())
}
