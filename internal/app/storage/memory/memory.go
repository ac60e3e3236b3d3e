package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jkdigital/servicehub/internal/app/domain/account"
	"github.com/jkdigital/servicehub/internal/app/domain/catalog"
	"github.com/jkdigital/servicehub/internal/app/domain/dlpdf"
	"github.com/jkdigital/servicehub/internal/app/domain/ledger"
	"github.com/jkdigital/servicehub/internal/app/domain/llr"
	"github.com/jkdigital/servicehub/internal/app/domain/payment"
	"github.com/jkdigital/servicehub/internal/app/domain/request"
	"github.com/jkdigital/servicehub/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	now    func() time.Time

	users         map[string]account.User
	usersByMobile map[string]string
	admins        map[string]account.Admin
	services      map[string]catalog.Service
	prices        map[priceKey]catalog.PriceOverride
	requests      map[string]request.ServiceRequest
	entries       map[string][]ledger.Entry
	tokens        map[string]llr.Token
	records       map[string]dlpdf.Record
	orders        map[string]payment.Order
}

type priceKey struct {
	userID    string
	serviceID string
}

var _ storage.AccountStore = (*Store)(nil)
var _ storage.CatalogStore = (*Store)(nil)
var _ storage.RequestStore = (*Store)(nil)
var _ storage.LedgerStore = (*Store)(nil)
var _ storage.LLRStore = (*Store)(nil)
var _ storage.DLStore = (*Store)(nil)
var _ storage.PaymentStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:        1,
		now:           func() time.Time { return time.Now().UTC() },
		users:         make(map[string]account.User),
		usersByMobile: make(map[string]string),
		admins:        make(map[string]account.Admin),
		services:      make(map[string]catalog.Service),
		prices:        make(map[priceKey]catalog.PriceOverride),
		requests:      make(map[string]request.ServiceRequest),
		entries:       make(map[string][]ledger.Entry),
		tokens:        make(map[string]llr.Token),
		records:       make(map[string]dlpdf.Record),
		orders:        make(map[string]payment.Order),
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

// SetClock overrides the time source. Used by tests that exercise day
// boundaries and expiry.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// AccountStore implementation -------------------------------------------------

func (s *Store) CreateUser(_ context.Context, user account.User) (account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByMobile[user.Mobile]; exists {
		return account.User{}, storage.ErrDuplicate
	}
	if user.ID == "" {
		user.ID = s.nextIDLocked()
	} else if _, exists := s.users[user.ID]; exists {
		return account.User{}, storage.ErrDuplicate
	}

	now := s.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = user
	s.usersByMobile[user.Mobile] = user.ID
	return user, nil
}

func (s *Store) GetUser(_ context.Context, id string) (account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return account.User{}, storage.ErrNotFound
	}
	return user, nil
}

func (s *Store) GetUserByMobile(_ context.Context, mobile string) (account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByMobile[mobile]
	if !ok {
		return account.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) ListUsers(_ context.Context) ([]account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]account.User, 0, len(s.users))
	for _, user := range s.users {
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool { return idLess(result[i].ID, result[j].ID) })
	return result, nil
}

func (s *Store) SetUserBlocked(_ context.Context, id string, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	user.IsBlocked = blocked
	user.UpdatedAt = s.now()
	s.users[id] = user
	return nil
}

func (s *Store) CountUsers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func (s *Store) ApplyWalletChange(_ context.Context, id string, balanceDelta, reservedDelta float64) (account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return account.User{}, storage.ErrNotFound
	}
	if !storage.WalletAllows(user.WalletBalance, user.ReservedBalance, balanceDelta, reservedDelta) {
		return account.User{}, storage.ErrInsufficientFunds
	}
	user.WalletBalance = ledger.Round2(user.WalletBalance + balanceDelta)
	user.ReservedBalance = ledger.Round2(user.ReservedBalance + reservedDelta)
	user.UpdatedAt = s.now()
	s.users[id] = user
	return user, nil
}

func (s *Store) SetWalletBalance(_ context.Context, id string, balance float64) (account.User, account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, ok := s.users[id]
	if !ok {
		return account.User{}, account.User{}, storage.ErrNotFound
	}
	balance = ledger.Round2(balance)
	if balance < before.ReservedBalance {
		return account.User{}, account.User{}, storage.ErrInsufficientFunds
	}
	after := before
	after.WalletBalance = balance
	after.UpdatedAt = s.now()
	s.users[id] = after
	return before, after, nil
}

func (s *Store) ClearReservations(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared := 0
	for id, user := range s.users {
		if user.ReservedBalance == 0 {
			continue
		}
		user.ReservedBalance = 0
		user.UpdatedAt = s.now()
		s.users[id] = user
		cleared++
	}
	return cleared, nil
}

func (s *Store) CreateAdmin(_ context.Context, admin account.Admin) (account.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.admins[admin.Username]; exists {
		return account.Admin{}, storage.ErrDuplicate
	}
	if admin.ID == "" {
		admin.ID = s.nextIDLocked()
	}
	admin.CreatedAt = s.now()
	s.admins[admin.Username] = admin
	return admin, nil
}

func (s *Store) GetAdminByUsername(_ context.Context, username string) (account.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	admin, ok := s.admins[username]
	if !ok {
		return account.Admin{}, storage.ErrNotFound
	}
	return admin, nil
}

// CatalogStore implementation -------------------------------------------------

func (s *Store) CreateService(_ context.Context, svc catalog.Service) (catalog.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if svc.ID == "" {
		svc.ID = s.nextIDLocked()
	} else if _, exists := s.services[svc.ID]; exists {
		return catalog.Service{}, storage.ErrDuplicate
	}
	svc.CreatedAt = s.now()
	svc.Fields = cloneFields(svc.Fields)
	s.services[svc.ID] = svc
	return cloneService(svc), nil
}

func (s *Store) GetService(_ context.Context, id string) (catalog.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	svc, ok := s.services[id]
	if !ok {
		return catalog.Service{}, storage.ErrNotFound
	}
	return cloneService(svc), nil
}

func (s *Store) ListServices(_ context.Context, activeOnly bool) ([]catalog.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]catalog.Service, 0, len(s.services))
	for _, svc := range s.services {
		if activeOnly && !svc.IsActive {
			continue
		}
		result = append(result, cloneService(svc))
	}
	sort.Slice(result, func(i, j int) bool { return idLess(result[i].ID, result[j].ID) })
	return result, nil
}

func (s *Store) SetServiceActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	svc, ok := s.services[id]
	if !ok {
		return storage.ErrNotFound
	}
	svc.IsActive = active
	s.services[id] = svc
	return nil
}

func (s *Store) DeleteService(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.services[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.services, id)
	for key := range s.prices {
		if key.serviceID == id {
			delete(s.prices, key)
		}
	}
	return nil
}

func (s *Store) CountServices(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.services), nil
}

func (s *Store) UpsertPrice(_ context.Context, override catalog.PriceOverride) (catalog.PriceOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := priceKey{override.UserID, override.ServiceID}
	now := s.now()
	if existing, ok := s.prices[key]; ok {
		override.CreatedAt = existing.CreatedAt
	} else {
		override.CreatedAt = now
	}
	override.UpdatedAt = now
	s.prices[key] = override
	return override, nil
}

func (s *Store) GetPrice(_ context.Context, userID, serviceID string) (catalog.PriceOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	override, ok := s.prices[priceKey{userID, serviceID}]
	if !ok {
		return catalog.PriceOverride{}, storage.ErrNotFound
	}
	return override, nil
}

func (s *Store) ListPricesForUser(_ context.Context, userID string) ([]catalog.PriceOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []catalog.PriceOverride
	for key, override := range s.prices {
		if key.userID == userID {
			result = append(result, override)
		}
	}
	sort.Slice(result, func(i, j int) bool { return idLess(result[i].ServiceID, result[j].ServiceID) })
	return result, nil
}

func (s *Store) SeedPrices(_ context.Context, overrides []catalog.PriceOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, override := range overrides {
		key := priceKey{override.UserID, override.ServiceID}
		if _, exists := s.prices[key]; exists {
			continue
		}
		override.CreatedAt = now
		override.UpdatedAt = now
		s.prices[key] = override
	}
	return nil
}

// RequestStore implementation -------------------------------------------------

func (s *Store) CreateRequest(_ context.Context, req request.ServiceRequest) (request.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ID == "" {
		req.ID = s.nextIDLocked()
	}
	now := s.now()
	req.CreatedAt = now
	req.UpdatedAt = now
	req.FieldData = cloneData(req.FieldData)
	s.requests[req.ID] = req
	return cloneRequest(req), nil
}

func (s *Store) GetRequest(_ context.Context, id string) (request.ServiceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return request.ServiceRequest{}, storage.ErrNotFound
	}
	return cloneRequest(req), nil
}

func (s *Store) ListRequests(_ context.Context, userID string) ([]request.ServiceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []request.ServiceRequest
	for _, req := range s.requests {
		if userID != "" && req.UserID != userID {
			continue
		}
		result = append(result, cloneRequest(req))
	}
	sort.Slice(result, func(i, j int) bool { return newer(result[i].CreatedAt, result[j].CreatedAt, result[i].ID, result[j].ID) })
	return result, nil
}

func (s *Store) TransitionRequest(_ context.Context, id string, from, to request.Status, adminMessage string) (request.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return request.ServiceRequest{}, storage.ErrNotFound
	}
	if req.Status != from {
		return request.ServiceRequest{}, storage.ErrConflict
	}
	req.Status = to
	req.AdminMessage = adminMessage
	req.UpdatedAt = s.now()
	s.requests[id] = req
	return cloneRequest(req), nil
}

// LedgerStore implementation --------------------------------------------------

func (s *Store) AppendEntry(_ context.Context, entry ledger.Entry) (ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = s.nextIDLocked()
	}
	entry.CreatedAt = s.now()
	s.entries[entry.UserID] = append(s.entries[entry.UserID], entry)
	return entry, nil
}

func (s *Store) ListEntries(_ context.Context, userID string) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.entries[userID]
	result := make([]ledger.Entry, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		result = append(result, src[i])
	}
	return result, nil
}

// LLRStore implementation -----------------------------------------------------

func (s *Store) CreateToken(_ context.Context, tok llr.Token) (llr.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tok.Token == "" {
		return llr.Token{}, fmt.Errorf("token value required")
	}
	if _, exists := s.tokens[tok.Token]; exists {
		return llr.Token{}, storage.ErrDuplicate
	}
	if tok.ID == "" {
		tok.ID = s.nextIDLocked()
	}
	now := s.now()
	tok.CreatedAt = now
	tok.UpdatedAt = now
	s.tokens[tok.Token] = tok
	return tok, nil
}

func (s *Store) GetToken(_ context.Context, token string) (llr.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tok, ok := s.tokens[token]
	if !ok {
		return llr.Token{}, storage.ErrNotFound
	}
	return tok, nil
}

func (s *Store) ListTokens(_ context.Context, userID string) ([]llr.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []llr.Token
	for _, tok := range s.tokens {
		if userID != "" && tok.UserID != userID {
			continue
		}
		result = append(result, tok.WithoutPDF())
	}
	sort.Slice(result, func(i, j int) bool { return newer(result[i].CreatedAt, result[j].CreatedAt, result[i].ID, result[j].ID) })
	return result, nil
}

func (s *Store) ListTokensByStatus(_ context.Context, statuses []llr.Status) ([]llr.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []llr.Token
	for _, tok := range s.tokens {
		if containsStatus(statuses, tok.Status) {
			result = append(result, tok.WithoutPDF())
		}
	}
	sort.Slice(result, func(i, j int) bool { return idLess(result[i].ID, result[j].ID) })
	return result, nil
}

func (s *Store) TransitionToken(_ context.Context, token string, from []llr.Status, update llr.Update) (llr.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.tokens[token]
	if !ok {
		return llr.Token{}, storage.ErrNotFound
	}
	if !containsStatus(from, tok.Status) {
		return llr.Token{}, storage.ErrConflict
	}
	if update.CheckedAt.IsZero() {
		update.CheckedAt = s.now()
	}
	tok = update.Apply(tok)
	s.tokens[token] = tok
	return tok, nil
}

// DLStore implementation ------------------------------------------------------

func (s *Store) CreateRecord(_ context.Context, rec dlpdf.Record) (dlpdf.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = s.nextIDLocked()
	}
	rec.CreatedAt = s.now()
	s.records[rec.ID] = rec
	return rec, nil
}

func (s *Store) GetRecord(_ context.Context, id string) (dlpdf.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return dlpdf.Record{}, storage.ErrNotFound
	}
	return rec, nil
}

func (s *Store) ListRecords(_ context.Context, userID string) ([]dlpdf.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []dlpdf.Record
	for _, rec := range s.records {
		if rec.UserID == userID {
			result = append(result, rec.WithoutPDF())
		}
	}
	sort.Slice(result, func(i, j int) bool { return newer(result[i].CreatedAt, result[j].CreatedAt, result[i].ID, result[j].ID) })
	return result, nil
}

func (s *Store) DeleteRecord(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

// PaymentStore implementation -------------------------------------------------

func (s *Store) CreateOrder(_ context.Context, order payment.Order) (payment.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.TransactionID]; exists {
		return payment.Order{}, storage.ErrDuplicate
	}
	if order.ID == "" {
		order.ID = s.nextIDLocked()
	}
	now := s.now()
	order.CreatedAt = now
	order.UpdatedAt = now
	s.orders[order.TransactionID] = order
	return order, nil
}

func (s *Store) GetOrderByTransaction(_ context.Context, txnID string) (payment.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[txnID]
	if !ok {
		return payment.Order{}, storage.ErrNotFound
	}
	return order, nil
}

func (s *Store) ListOrders(_ context.Context, userID string, limit int) ([]payment.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []payment.Order
	for _, order := range s.orders {
		if order.UserID == userID {
			result = append(result, order)
		}
	}
	sort.Slice(result, func(i, j int) bool { return newer(result[i].CreatedAt, result[j].CreatedAt, result[i].ID, result[j].ID) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ListPendingOrdersBefore(_ context.Context, cutoff time.Time) ([]payment.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []payment.Order
	for _, order := range s.orders {
		if order.Status == payment.StatusPending && order.CreatedAt.Before(cutoff) {
			result = append(result, order)
		}
	}
	sort.Slice(result, func(i, j int) bool { return idLess(result[i].ID, result[j].ID) })
	return result, nil
}

func (s *Store) TransitionOrder(_ context.Context, txnID string, from, to payment.Status) (payment.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[txnID]
	if !ok {
		return payment.Order{}, storage.ErrNotFound
	}
	if order.Status != from {
		return payment.Order{}, storage.ErrConflict
	}
	order.Status = to
	order.UpdatedAt = s.now()
	s.orders[txnID] = order
	return order, nil
}

// helpers ---------------------------------------------------------------------

// idLess orders the numeric ids this store hands out.
func idLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// newer sorts newest first, breaking timestamp ties by insertion order.
func newer(at, bt time.Time, aID, bID string) bool {
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return idLess(bID, aID)
}

func containsStatus(statuses []llr.Status, status llr.Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func cloneFields(fields []catalog.Field) []catalog.Field {
	if fields == nil {
		return []catalog.Field{}
	}
	out := make([]catalog.Field, len(fields))
	copy(out, fields)
	return out
}

func cloneService(svc catalog.Service) catalog.Service {
	svc.Fields = cloneFields(svc.Fields)
	return svc
}

func cloneData(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

func cloneRequest(req request.ServiceRequest) request.ServiceRequest {
	req.FieldData = cloneData(req.FieldData)
	return req
}
