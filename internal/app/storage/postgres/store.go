package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jkdigital/servicehub/internal/app/domain/account"
	"github.com/jkdigital/servicehub/internal/app/domain/catalog"
	"github.com/jkdigital/servicehub/internal/app/domain/dlpdf"
	"github.com/jkdigital/servicehub/internal/app/domain/ledger"
	"github.com/jkdigital/servicehub/internal/app/domain/llr"
	"github.com/jkdigital/servicehub/internal/app/domain/payment"
	"github.com/jkdigital/servicehub/internal/app/domain/request"
	"github.com/jkdigital/servicehub/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ storage.AccountStore = (*Store)(nil)
var _ storage.CatalogStore = (*Store)(nil)
var _ storage.RequestStore = (*Store)(nil)
var _ storage.LedgerStore = (*Store)(nil)
var _ storage.LLRStore = (*Store)(nil)
var _ storage.DLStore = (*Store)(nil)
var _ storage.PaymentStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{
		db:  sqlx.NewDb(db, "postgres"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Stores returns s wired into every store slot.
func (s *Store) Stores() storage.Stores {
	return storage.Stores{
		Accounts: s,
		Catalog:  s,
		Requests: s,
		Ledger:   s,
		LLR:      s,
		DL:       s,
		Payments: s,
	}
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return storage.ErrDuplicate
	}
	return err
}

// --- AccountStore -----------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, user account.User) (account.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := s.now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, user.ID, user.Name, user.Mobile, user.PasswordHash, user.WalletBalance, user.ReservedBalance, user.IsBlocked, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return account.User{}, mapErr(err)
	}
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (account.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		return account.User{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetUserByMobile(ctx context.Context, mobile string) (account.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE mobile = $1`, mobile); err != nil {
		return account.User{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]account.User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY created_at`); err != nil {
		return nil, err
	}
	result := make([]account.User, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (s *Store) SetUserBlocked(ctx context.Context, id string, blocked bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET is_blocked = $2, updated_at = $3 WHERE id = $1
	`, id, blocked, s.now())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`)
	return n, err
}

func (s *Store) ApplyWalletChange(ctx context.Context, id string, balanceDelta, reservedDelta float64) (account.User, error) {
	balanceDelta = ledger.Round2(balanceDelta)
	reservedDelta = ledger.Round2(reservedDelta)

	var row userRow
	err := s.db.GetContext(ctx, &row, `
		UPDATE users
		SET wallet_balance = wallet_balance + $2::numeric,
		    reserved_balance = reserved_balance + $3::numeric,
		    updated_at = $4
		WHERE id = $1
		  AND reserved_balance + $3::numeric >= 0
		  AND ($2::numeric - $3::numeric >= 0
		       OR (wallet_balance + $2::numeric) - (reserved_balance + $3::numeric) >= 0)
		RETURNING `+userColumns, id, balanceDelta, reservedDelta, s.now())
	if err == nil {
		return row.toDomain(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return account.User{}, err
	}
	if _, getErr := s.GetUser(ctx, id); getErr != nil {
		return account.User{}, getErr
	}
	return account.User{}, storage.ErrInsufficientFunds
}

func (s *Store) SetWalletBalance(ctx context.Context, id string, balance float64) (before account.User, after account.User, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return account.User{}, account.User{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var row userRow
	if err = tx.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id); err != nil {
		err = mapErr(err)
		return account.User{}, account.User{}, err
	}
	before = row.toDomain()

	balance = ledger.Round2(balance)
	if balance < before.ReservedBalance {
		err = storage.ErrInsufficientFunds
		return account.User{}, account.User{}, err
	}

	after = before
	after.WalletBalance = balance
	after.UpdatedAt = s.now()
	if _, err = tx.ExecContext(ctx, `
		UPDATE users SET wallet_balance = $2, updated_at = $3 WHERE id = $1
	`, id, after.WalletBalance, after.UpdatedAt); err != nil {
		return account.User{}, account.User{}, err
	}
	if err = tx.Commit(); err != nil {
		return account.User{}, account.User{}, err
	}
	return before, after, nil
}

func (s *Store) ClearReservations(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET reserved_balance = 0, updated_at = $1 WHERE reserved_balance <> 0
	`, s.now())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Store) CreateAdmin(ctx context.Context, admin account.Admin) (account.Admin, error) {
	if admin.ID == "" {
		admin.ID = uuid.NewString()
	}
	admin.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admins (id, username, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, admin.ID, admin.Username, admin.PasswordHash, admin.CreatedAt)
	if err != nil {
		return account.Admin{}, mapErr(err)
	}
	return admin, nil
}

func (s *Store) GetAdminByUsername(ctx context.Context, username string) (account.Admin, error) {
	var row adminRow
	if err := s.db.GetContext(ctx, &row, `
		SELECT id, username, password_hash, created_at FROM admins WHERE username = $1
	`, username); err != nil {
		return account.Admin{}, mapErr(err)
	}
	return row.toDomain(), nil
}

// --- CatalogStore -----------------------------------------------------------

func (s *Store) CreateService(ctx context.Context, svc catalog.Service) (catalog.Service, error) {
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	if svc.Fields == nil {
		svc.Fields = []catalog.Field{}
	}
	svc.CreatedAt = s.now()

	fieldsJSON, err := json.Marshal(svc.Fields)
	if err != nil {
		return catalog.Service{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO services (`+serviceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, svc.ID, svc.Name, svc.Description, svc.DefaultPrice, fieldsJSON, svc.IsActive, svc.CreatedAt)
	if err != nil {
		return catalog.Service{}, mapErr(err)
	}
	return svc, nil
}

func (s *Store) GetService(ctx context.Context, id string) (catalog.Service, error) {
	var row serviceRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id); err != nil {
		return catalog.Service{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListServices(ctx context.Context, activeOnly bool) ([]catalog.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY created_at`

	var rows []serviceRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	result := make([]catalog.Service, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (s *Store) SetServiceActive(ctx context.Context, id string, active bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE services SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteService(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_service_prices WHERE service_id = $1`, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) CountServices(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM services`)
	return n, err
}

func (s *Store) UpsertPrice(ctx context.Context, override catalog.PriceOverride) (catalog.PriceOverride, error) {
	now := s.now()
	var row priceRow
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO user_service_prices (user_id, service_id, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id, service_id) DO UPDATE SET price = EXCLUDED.price, updated_at = EXCLUDED.updated_at
		RETURNING user_id, service_id, price, created_at, updated_at
	`, override.UserID, override.ServiceID, override.Price, now)
	if err != nil {
		return catalog.PriceOverride{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) GetPrice(ctx context.Context, userID, serviceID string) (catalog.PriceOverride, error) {
	var row priceRow
	if err := s.db.GetContext(ctx, &row, `
		SELECT user_id, service_id, price, created_at, updated_at
		FROM user_service_prices WHERE user_id = $1 AND service_id = $2
	`, userID, serviceID); err != nil {
		return catalog.PriceOverride{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListPricesForUser(ctx context.Context, userID string) ([]catalog.PriceOverride, error) {
	var rows []priceRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT user_id, service_id, price, created_at, updated_at
		FROM user_service_prices WHERE user_id = $1
	`, userID); err != nil {
		return nil, err
	}
	result := make([]catalog.PriceOverride, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (s *Store) SeedPrices(ctx context.Context, overrides []catalog.PriceOverride) error {
	if len(overrides) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now()
	for _, o := range overrides {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_service_prices (user_id, service_id, price, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			ON CONFLICT (user_id, service_id) DO NOTHING
		`, o.UserID, o.ServiceID, o.Price, now); err != nil {
			return fmt.Errorf("seed price %s/%s: %w", o.UserID, o.ServiceID, err)
		}
	}
	return tx.Commit()
}

// --- RequestStore -----------------------------------------------------------

func (s *Store) CreateRequest(ctx context.Context, req request.ServiceRequest) (request.ServiceRequest, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.FieldData == nil {
		req.FieldData = map[string]interface{}{}
	}
	now := s.now()
	req.CreatedAt = now
	req.UpdatedAt = now

	dataJSON, err := json.Marshal(req.FieldData)
	if err != nil {
		return request.ServiceRequest{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO service_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, req.ID, req.UserID, req.UserName, req.UserMobile, req.ServiceID, req.ServiceName, req.ServicePrice,
		dataJSON, string(req.Status), req.AdminMessage, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return request.ServiceRequest{}, mapErr(err)
	}
	return req, nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (request.ServiceRequest, error) {
	var row requestRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+requestColumns+` FROM service_requests WHERE id = $1`, id); err != nil {
		return request.ServiceRequest{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListRequests(ctx context.Context, userID string) ([]request.ServiceRequest, error) {
	var (
		rows []requestRow
		err  error
	)
	if userID == "" {
		err = s.db.SelectContext(ctx, &rows, `SELECT `+requestColumns+` FROM service_requests ORDER BY created_at DESC`)
	} else {
		err = s.db.SelectContext(ctx, &rows, `SELECT `+requestColumns+` FROM service_requests WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	}
	if err != nil {
		return nil, err
	}
	result := make([]request.ServiceRequest, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (s *Store) TransitionRequest(ctx context.Context, id string, from, to request.Status, adminMessage string) (request.ServiceRequest, error) {
	var row requestRow
	err := s.db.GetContext(ctx, &row, `
		UPDATE service_requests
		SET status = $3, admin_message = $4, updated_at = $5
		WHERE id = $1 AND status = $2
		RETURNING `+requestColumns, id, string(from), string(to), adminMessage, s.now())
	if err == nil {
		return row.toDomain(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return request.ServiceRequest{}, err
	}
	if _, getErr := s.GetRequest(ctx, id); getErr != nil {
		return request.ServiceRequest{}, getErr
	}
	return request.ServiceRequest{}, storage.ErrConflict
}

// --- LedgerStore ------------------------------------------------------------

func (s *Store) AppendEntry(ctx context.Context, entry ledger.Entry) (ledger.Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_history (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, entry.ID, entry.UserID, entry.UserName, entry.UserMobile, string(entry.TransactionType), entry.Amount,
		entry.Description, entry.ReferenceID, entry.BalanceAfter, entry.CreatedAt)
	if err != nil {
		return ledger.Entry{}, err
	}
	return entry, nil
}

func (s *Store) ListEntries(ctx context.Context, userID string) ([]ledger.Entry, error) {
	var rows []entryRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT `+entryColumns+` FROM payment_history WHERE user_id = $1 ORDER BY created_at DESC
	`, userID); err != nil {
		return nil, err
	}
	result := make([]ledger.Entry, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

// --- LLRStore ---------------------------------------------------------------

func (s *Store) CreateToken(ctx context.Context, tok llr.Token) (llr.Token, error) {
	if tok.Token == "" {
		return llr.Token{}, errors.New("token value required")
	}
	if tok.ID == "" {
		tok.ID = uuid.NewString()
	}
	now := s.now()
	tok.CreatedAt = now
	tok.UpdatedAt = now

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO llr_tokens (`+tokenColumns+`)
		VALUES (:id, :token, :user_id, :user_name, :user_mobile, :service_id, :service_name, :service_price,
			:applno, :applname, :dob, :queue, :rtocode, :rtoname, :statecode, :statename, :status, :remarks,
			:refund_reason, :filename, :last_checked, :completed_at, :created_at, :updated_at, :pdf_data)
	`, tokenToRow(tok))
	if err != nil {
		return llr.Token{}, mapErr(err)
	}
	return tok, nil
}

func (s *Store) GetToken(ctx context.Context, token string) (llr.Token, error) {
	var row tokenRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+tokenColumns+` FROM llr_tokens WHERE token = $1`, token); err != nil {
		return llr.Token{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListTokens(ctx context.Context, userID string) ([]llr.Token, error) {
	var (
		rows []tokenRow
		err  error
	)
	if userID == "" {
		err = s.db.SelectContext(ctx, &rows, `SELECT `+tokenListColumns+` FROM llr_tokens ORDER BY created_at DESC`)
	} else {
		err = s.db.SelectContext(ctx, &rows, `SELECT `+tokenListColumns+` FROM llr_tokens WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	}
	if err != nil {
		return nil, err
	}
	return tokensFromRows(rows), nil
}

func (s *Store) ListTokensByStatus(ctx context.Context, statuses []llr.Status) ([]llr.Token, error) {
	var rows []tokenRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT `+tokenListColumns+` FROM llr_tokens WHERE status = ANY($1) ORDER BY created_at
	`, pq.Array(statusStrings(statuses))); err != nil {
		return nil, err
	}
	return tokensFromRows(rows), nil
}

func (s *Store) TransitionToken(ctx context.Context, token string, from []llr.Status, update llr.Update) (tok llr.Token, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return llr.Token{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var row tokenRow
	if err = tx.GetContext(ctx, &row, `SELECT `+tokenColumns+` FROM llr_tokens WHERE token = $1 FOR UPDATE`, token); err != nil {
		err = mapErr(err)
		return llr.Token{}, err
	}
	current := row.toDomain()
	if !containsStatus(from, current.Status) {
		err = storage.ErrConflict
		return llr.Token{}, err
	}
	if update.CheckedAt.IsZero() {
		update.CheckedAt = s.now()
	}
	tok = update.Apply(current)

	if _, err = tx.NamedExecContext(ctx, `
		UPDATE llr_tokens
		SET status = :status, queue = :queue, remarks = :remarks, refund_reason = :refund_reason,
		    filename = :filename, pdf_data = :pdf_data, last_checked = :last_checked,
		    completed_at = :completed_at, updated_at = :updated_at
		WHERE id = :id
	`, tokenToRow(tok)); err != nil {
		return llr.Token{}, err
	}
	if err = tx.Commit(); err != nil {
		return llr.Token{}, err
	}
	return tok, nil
}

func tokensFromRows(rows []tokenRow) []llr.Token {
	result := make([]llr.Token, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result
}

func statusStrings(statuses []llr.Status) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

func containsStatus(statuses []llr.Status, status llr.Status) bool {
	for _, st := range statuses {
		if st == status {
			return true
		}
	}
	return false
}

// --- DLStore ----------------------------------------------------------------

func (s *Store) CreateRecord(ctx context.Context, rec dlpdf.Record) (dlpdf.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dl_pdfs (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, rec.ID, rec.UserID, rec.UserName, rec.UserMobile, rec.ServiceID, rec.ServiceName, rec.ServicePrice,
		rec.DLNo, rec.PDFType, rec.BloodGroup, rec.AddressType, rec.Status, rec.Name, rec.DOB, rec.CreatedAt, rec.PDFData)
	if err != nil {
		return dlpdf.Record{}, mapErr(err)
	}
	return rec, nil
}

func (s *Store) GetRecord(ctx context.Context, id string) (dlpdf.Record, error) {
	var row recordRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+recordColumns+` FROM dl_pdfs WHERE id = $1`, id); err != nil {
		return dlpdf.Record{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListRecords(ctx context.Context, userID string) ([]dlpdf.Record, error) {
	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT `+recordListColumns+` FROM dl_pdfs WHERE user_id = $1 ORDER BY created_at DESC
	`, userID); err != nil {
		return nil, err
	}
	result := make([]dlpdf.Record, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dl_pdfs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- PaymentStore -----------------------------------------------------------

func (s *Store) CreateOrder(ctx context.Context, order payment.Order) (payment.Order, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	now := s.now()
	order.CreatedAt = now
	order.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, order.ID, order.TransactionID, order.UserID, order.UserName, order.UserMobile, order.Amount,
		string(order.Status), order.QRCodeURL, order.UPIID, order.PaymentLink, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return payment.Order{}, mapErr(err)
	}
	return order, nil
}

func (s *Store) GetOrderByTransaction(ctx context.Context, txnID string) (payment.Order, error) {
	var row orderRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+orderColumns+` FROM payments WHERE transaction_id = $1`, txnID); err != nil {
		return payment.Order{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListOrders(ctx context.Context, userID string, limit int) ([]payment.Order, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []orderRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT `+orderColumns+` FROM payments WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit); err != nil {
		return nil, err
	}
	return ordersFromRows(rows), nil
}

func (s *Store) ListPendingOrdersBefore(ctx context.Context, cutoff time.Time) ([]payment.Order, error) {
	var rows []orderRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT `+orderColumns+` FROM payments WHERE status = $1 AND created_at < $2 ORDER BY created_at
	`, string(payment.StatusPending), cutoff); err != nil {
		return nil, err
	}
	return ordersFromRows(rows), nil
}

func (s *Store) TransitionOrder(ctx context.Context, txnID string, from, to payment.Status) (payment.Order, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row, `
		UPDATE payments SET status = $3, updated_at = $4
		WHERE transaction_id = $1 AND status = $2
		RETURNING `+orderColumns, txnID, string(from), string(to), s.now())
	if err == nil {
		return row.toDomain(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return payment.Order{}, err
	}
	if _, getErr := s.GetOrderByTransaction(ctx, txnID); getErr != nil {
		return payment.Order{}, getErr
	}
	return payment.Order{}, storage.ErrConflict
}

func ordersFromRows(rows []orderRow) []payment.Order {
	result := make([]payment.Order, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result
}
