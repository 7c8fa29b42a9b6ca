package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik-mahalle/fleetfix/internal/domain/host"
	"github.com/pratik-mahalle/fleetfix/internal/domain/remediation"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return sqlx.NewDb(conn, "postgres"), mock
}

func TestRemediationRepository_Create_UniqueViolationIsConflict(t *testing.T) {
	conn, mock := newMockDB(t)
	repo := NewRemediationRepository(conn)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, status FROM remediation_actions WHERE dedup_key`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}))
	mock.ExpectExec(`INSERT INTO remediation_actions`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	a, records := newAction(t, "web-01", "nginx", remediation.ActionStatusPending, baseTime)
	err := repo.Create(context.Background(), a, records)

	var conflict *remediation.ConflictError
	require.True(t, errors.As(err, &conflict), "got %v", err)
	assert.Equal(t, a.DedupKey, conflict.DedupKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemediationRepository_Create_DatabaseError(t *testing.T) {
	conn, mock := newMockDB(t)
	repo := NewRemediationRepository(conn)

	mock.ExpectBegin().WillReturnError(errors.New("connection reset"))

	a, records := newAction(t, "web-01", "nginx", remediation.ActionStatusPending, baseTime)
	err := repo.Create(context.Background(), a, records)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	var conflict *remediation.ConflictError
	assert.False(t, errors.As(err, &conflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemediationRepository_ClaimNext_UniqueViolationIsNoClaim(t *testing.T) {
	conn, mock := newMockDB(t)
	repo := NewRemediationRepository(conn)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM remediation_actions`).
		WithArgs("web-01").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a-1"))
	mock.ExpectExec(`UPDATE remediation_actions`).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	got, err := repo.ClaimNext(context.Background(), "web-01", "dispatcher", baseTime)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemediationRepository_Transition_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		rows   *sqlmock.Rows
		assert func(t *testing.T, err error)
	}{
		{
			name: "missing row",
			rows: sqlmock.NewRows([]string{"status"}),
			assert: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, remediation.ErrNotFound)
			},
		},
		{
			name: "status moved on",
			rows: sqlmock.NewRows([]string{"status"}).AddRow("REJECTED"),
			assert: func(t *testing.T, err error) {
				var stateErr *remediation.StateError
				require.True(t, errors.As(err, &stateErr), "got %v", err)
				assert.Equal(t, remediation.ActionStatusPending, stateErr.Expected)
				assert.Equal(t, remediation.ActionStatusRejected, stateErr.Actual)
				assert.Equal(t, remediation.ActionStatusApproved, stateErr.Target)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, mock := newMockDB(t)
			repo := NewRemediationRepository(conn)

			mock.ExpectBegin()
			mock.ExpectExec(`UPDATE remediation_actions SET`).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery(`SELECT status FROM remediation_actions WHERE id`).
				WithArgs("a-1").
				WillReturnRows(tt.rows)
			mock.ExpectRollback()

			_, err := repo.Transition(context.Background(), remediation.Transition{
				ActionID: "a-1",
				From:     remediation.ActionStatusPending,
				To:       remediation.ActionStatusApproved,
				Actor:    "ops",
				At:       baseTime,
			})
			tt.assert(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRemediationRepository_Transition_RefusedEdge(t *testing.T) {
	tests := []struct {
		name       string
		from, to   remediation.ActionStatus
		rows       *sqlmock.Rows
		wantErr    error
		wantActual remediation.ActionStatus
	}{
		{
			name: "illegal edge reports actual status",
			from: remediation.ActionStatusPending, to: remediation.ActionStatusCompleted,
			rows:       sqlmock.NewRows([]string{"status"}).AddRow("APPROVED"),
			wantActual: remediation.ActionStatusApproved,
		},
		{
			name: "illegal edge on unknown id",
			from: remediation.ActionStatusPending, to: remediation.ActionStatusCompleted,
			rows:    sqlmock.NewRows([]string{"status"}),
			wantErr: remediation.ErrNotFound,
		},
		{
			name: "execution outside a claim",
			from: remediation.ActionStatusApproved, to: remediation.ActionStatusExecuting,
			rows:       sqlmock.NewRows([]string{"status"}).AddRow("APPROVED"),
			wantActual: remediation.ActionStatusApproved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, mock := newMockDB(t)
			repo := NewRemediationRepository(conn)

			// No transaction and no UPDATE: the edge is refused before the row is touched.
			mock.ExpectQuery(`SELECT status FROM remediation_actions WHERE id`).
				WithArgs("a-1").
				WillReturnRows(tt.rows)

			_, err := repo.Transition(context.Background(), remediation.Transition{
				ActionID: "a-1",
				From:     tt.from,
				To:       tt.to,
				At:       baseTime,
			})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				var stateErr *remediation.StateError
				require.True(t, errors.As(err, &stateErr), "got %v", err)
				assert.Equal(t, tt.wantActual, stateErr.Actual)
				assert.Equal(t, tt.to, stateErr.Target)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHostRepository_Create_UniqueViolation(t *testing.T) {
	conn, mock := newMockDB(t)
	repo := NewHostRepository(conn)

	mock.ExpectExec(`INSERT INTO hosts`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &host.Host{ID: "web-01", Name: "web-01", SecretHash: "x"})
	assert.ErrorIs(t, err, host.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
