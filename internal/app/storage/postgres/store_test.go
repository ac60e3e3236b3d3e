package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkdigital/servicehub/internal/app/domain/account"
	"github.com/jkdigital/servicehub/internal/app/domain/llr"
	"github.com/jkdigital/servicehub/internal/app/domain/request"
	"github.com/jkdigital/servicehub/internal/app/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func cols(list string) []string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func userRows(balance, reserved float64) *sqlmock.Rows {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return sqlmock.NewRows(cols(userColumns)).
		AddRow("u1", "Asha", "9876543210", "hash", balance, reserved, false, now, now)
}

func TestApplyWalletChange(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE users").
		WithArgs("u1", -50.0, 0.0, sqlmock.AnyArg()).
		WillReturnRows(userRows(50, 0))

	user, err := store.ApplyWalletChange(context.Background(), "u1", -50, 0)
	require.NoError(t, err)
	assert.Equal(t, 50.0, user.WalletBalance)
	assert.Equal(t, "hash", user.PasswordHash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyWalletChangeInsufficientFunds(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE users").
		WillReturnRows(sqlmock.NewRows(cols(userColumns)))
	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").
		WithArgs("u1").
		WillReturnRows(userRows(10, 0))

	_, err := store.ApplyWalletChange(context.Background(), "u1", -50, 0)
	require.ErrorIs(t, err, storage.ErrInsufficientFunds)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyWalletChangeUnknownUser(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE users").
		WillReturnRows(sqlmock.NewRows(cols(userColumns)))
	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(cols(userColumns)))

	_, err := store.ApplyWalletChange(context.Background(), "missing", -50, 0)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateUserDuplicateMobile(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := store.CreateUser(context.Background(), account.User{Name: "Asha", Mobile: "9876543210", PasswordHash: "x"})
	require.ErrorIs(t, err, storage.ErrDuplicate)
}

func TestSetWalletBalance(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM users WHERE id = \\$1 FOR UPDATE").
		WithArgs("u1").
		WillReturnRows(userRows(100, 20))
	mock.ExpectExec("UPDATE users SET wallet_balance").
		WithArgs("u1", 250.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	before, after, err := store.SetWalletBalance(context.Background(), "u1", 250)
	require.NoError(t, err)
	assert.Equal(t, 100.0, before.WalletBalance)
	assert.Equal(t, 250.0, after.WalletBalance)
	assert.Equal(t, 20.0, after.ReservedBalance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetWalletBalanceBelowReserved(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(userRows(100, 80))
	mock.ExpectRollback()

	_, _, err := store.SetWalletBalance(context.Background(), "u1", 50)
	require.ErrorIs(t, err, storage.ErrInsufficientFunds)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearReservations(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE users SET reserved_balance = 0").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.ClearReservations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionRequestConflict(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("UPDATE service_requests").
		WithArgs("r1", "pending", "failed", "no", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(cols(requestColumns)))
	mock.ExpectQuery("SELECT (.+) FROM service_requests WHERE id").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(cols(requestColumns)).
			AddRow("r1", "u1", "Asha", "9876543210", "s1", "PAN", 100.0, []byte(`{"a":"b"}`), "success", "", now, now))

	_, err := store.TransitionRequest(context.Background(), "r1", request.StatusPending, request.StatusFailed, "no")
	require.ErrorIs(t, err, storage.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRequestDecodesFieldData(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM service_requests WHERE id").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(cols(requestColumns)).
			AddRow("r1", "u1", "Asha", "9876543210", "s1", "PAN", 100.0, []byte(`{"aadhaar":"1234"}`), "pending", "", now, now))

	req, err := store.GetRequest(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "1234", req.FieldData["aadhaar"])
	assert.Equal(t, request.StatusPending, req.Status)
}

func tokenRowValues(status string) []driver.Value {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return []driver.Value{
		"t-id", "TOK1", "u1", "Asha", "9876543210", "s1", "LLR Exam", 150.0,
		"APP1", "ASHA", "01-01-2000", "3", "MH01", "Mumbai", "MH", "Maharashtra", status, "", "",
		"", nil, nil, now, now, "",
	}
}

func TestTransitionTokenConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM llr_tokens WHERE token = \\$1 FOR UPDATE").
		WithArgs("TOK1").
		WillReturnRows(sqlmock.NewRows(cols(tokenColumns)).AddRow(tokenRowValues("refunded")...))
	mock.ExpectRollback()

	_, err := store.TransitionToken(context.Background(), "TOK1", llr.Active(), llr.Update{Status: llr.StatusRefunded})
	require.ErrorIs(t, err, storage.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionTokenNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := store.TransitionToken(context.Background(), "nope", llr.Active(), llr.Update{})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListTokensByStatus(t *testing.T) {
	store, mock := newMockStore(t)

	listCols := cols(tokenListColumns)
	values := tokenRowValues("submitted")
	mock.ExpectQuery("FROM llr_tokens WHERE status = ANY").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(listCols).AddRow(values[:len(listCols)]...))

	tokens, err := store.ListTokensByStatus(context.Background(), llr.Active())
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "TOK1", tokens[0].Token)
	assert.Nil(t, tokens[0].LastChecked)
	assert.Empty(t, tokens[0].PDFData)
}

func TestDeleteServiceRemovesPrices(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM user_service_prices").WithArgs("s1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM services").WithArgs("s1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.DeleteService(context.Background(), "s1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetUserBlockedNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE users SET is_blocked").WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.SetUserBlocked(context.Background(), "missing", true)
	require.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestDeleteRecord(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM dl_pdfs WHERE id").
		WithArgs("d1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM dl_pdfs WHERE id").
		WithArgs("d2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.DeleteRecord(context.Background(), "d1"))
	assert.ErrorIs(t, store.DeleteRecord(context.Background(), "d2"), storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
