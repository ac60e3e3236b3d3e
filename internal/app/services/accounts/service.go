// Package accounts handles user and administrator accounts and login.
package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jkdigital/servicehub/internal/app/auth"
	"github.com/jkdigital/servicehub/internal/app/domain/account"
	"github.com/jkdigital/servicehub/internal/app/domain/catalog"
	"github.com/jkdigital/servicehub/internal/app/storage"
	apperrors "github.com/jkdigital/servicehub/internal/errors"
	"github.com/jkdigital/servicehub/internal/logging"
)

// BlockedMessage is returned whenever a blocked user tries to act.
const BlockedMessage = "Your account has been blocked. Please contact administrator."

// TokenIssuer issues session tokens.
type TokenIssuer interface {
	Issue(subject, role string) (string, time.Time, error)
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// AdminView is the administrator record returned at login.
type AdminView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Service manages accounts.
type Service struct {
	accounts storage.AccountStore
	catalog  storage.CatalogStore
	issuer   TokenIssuer
	log      *logging.Logger
}

// New constructs an accounts service.
func New(accounts storage.AccountStore, catalogStore storage.CatalogStore, issuer TokenIssuer, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("accounts")
	}
	return &Service{accounts: accounts, catalog: catalogStore, issuer: issuer, log: log}
}

// Login authenticates a user by mobile number and password.
func (s *Service) Login(ctx context.Context, mobile, password string) (account.Profile, Session, error) {
	mobile = strings.TrimSpace(mobile)
	if mobile == "" || password == "" {
		return account.Profile{}, Session{}, apperrors.BadRequest("Mobile number and password are required")
	}

	user, err := s.accounts.GetUserByMobile(ctx, mobile)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return account.Profile{}, Session{}, apperrors.Internal("Login failed", err)
	}
	if err != nil || !account.CheckPassword(user.PasswordHash, password) {
		s.log.LogSecurityEvent(ctx, "login_failed", map[string]interface{}{"mobile": mobile})
		return account.Profile{}, Session{}, apperrors.Unauthorized("Invalid credentials")
	}
	if user.IsBlocked {
		s.log.LogSecurityEvent(ctx, "login_blocked", map[string]interface{}{"user_id": user.ID})
		return account.Profile{}, Session{}, apperrors.Forbidden(BlockedMessage)
	}

	session, err := s.issue(user.ID, auth.RoleUser)
	if err != nil {
		return account.Profile{}, Session{}, err
	}
	return user.Profile(), session, nil
}

// AdminLogin authenticates an administrator.
func (s *Service) AdminLogin(ctx context.Context, username, password string) (AdminView, Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return AdminView{}, Session{}, apperrors.BadRequest("Username and password are required")
	}

	admin, err := s.accounts.GetAdminByUsername(ctx, username)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return AdminView{}, Session{}, apperrors.Internal("Login failed", err)
	}
	if err != nil || !account.CheckPassword(admin.PasswordHash, password) {
		s.log.LogSecurityEvent(ctx, "admin_login_failed", map[string]interface{}{"username": username})
		return AdminView{}, Session{}, apperrors.Unauthorized("Invalid admin credentials")
	}

	session, err := s.issue(admin.ID, auth.RoleAdmin)
	if err != nil {
		return AdminView{}, Session{}, err
	}
	return AdminView{ID: admin.ID, Username: admin.Username}, session, nil
}

// EnsureDefaultAdmin creates the administrator account when it is missing.
func (s *Service) EnsureDefaultAdmin(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return errors.New("default admin username and password are required")
	}
	if _, err := s.accounts.GetAdminByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	hash, err := account.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = s.accounts.CreateAdmin(ctx, account.Admin{Username: username, PasswordHash: hash})
	if errors.Is(err, storage.ErrDuplicate) {
		return nil
	}
	if err == nil {
		s.log.WithField("username", username).Info("created default admin account")
	}
	return err
}

// CreateUser registers a customer and seeds prices for every priced service.
func (s *Service) CreateUser(ctx context.Context, name, mobile, password string) (account.Profile, error) {
	name = strings.TrimSpace(name)
	mobile = strings.TrimSpace(mobile)
	if name == "" || mobile == "" || password == "" {
		return account.Profile{}, apperrors.BadRequest("Name, mobile number, and password are required")
	}
	if err := account.ValidateMobile(mobile); err != nil {
		return account.Profile{}, apperrors.Validation(err.Error())
	}

	hash, err := account.HashPassword(password)
	if err != nil {
		return account.Profile{}, apperrors.Internal("Failed to create user", err)
	}

	user, err := s.accounts.CreateUser(ctx, account.User{Name: name, Mobile: mobile, PasswordHash: hash})
	if errors.Is(err, storage.ErrDuplicate) {
		return account.Profile{}, apperrors.Conflict("User with this mobile number already exists")
	}
	if err != nil {
		return account.Profile{}, apperrors.Internal("Failed to create user", err)
	}

	if err := s.seedPrices(ctx, user.ID); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("user_id", user.ID).Warn("seed default prices for new user")
	}
	return user.Profile(), nil
}

func (s *Service) seedPrices(ctx context.Context, userID string) error {
	services, err := s.catalog.ListServices(ctx, false)
	if err != nil {
		return err
	}
	var overrides []catalog.PriceOverride
	for _, svc := range services {
		if svc.DefaultPrice > 0 {
			overrides = append(overrides, catalog.PriceOverride{UserID: userID, ServiceID: svc.ID, Price: svc.DefaultPrice})
		}
	}
	return s.catalog.SeedPrices(ctx, overrides)
}

// ListUsers returns every user.
func (s *Service) ListUsers(ctx context.Context) ([]account.User, error) {
	users, err := s.accounts.ListUsers(ctx)
	if err != nil {
		return nil, apperrors.Internal("Failed to list users", err)
	}
	return users, nil
}

// SetBlocked blocks or unblocks a user.
func (s *Service) SetBlocked(ctx context.Context, userID string, blocked bool) error {
	if strings.TrimSpace(userID) == "" {
		return apperrors.BadRequest("User ID and block status are required")
	}
	if err := s.accounts.SetUserBlocked(ctx, userID, blocked); err != nil {
		return mapErr(err)
	}
	return nil
}

// Get returns a user, ignoring the blocked flag.
func (s *Service) Get(ctx context.Context, userID string) (account.User, error) {
	user, err := s.accounts.GetUser(ctx, userID)
	if err != nil {
		return account.User{}, mapErr(err)
	}
	return user, nil
}

// Profile returns the public view of a user, blocked or not.
func (s *Service) Profile(ctx context.Context, userID string) (account.Profile, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return account.Profile{}, err
	}
	return user.Profile(), nil
}

// Refresh returns the current view of an active user.
func (s *Service) Refresh(ctx context.Context, userID string) (account.Profile, error) {
	user, err := s.Active(ctx, userID)
	if err != nil {
		return account.Profile{}, err
	}
	return user.Profile(), nil
}

// Active returns the user, failing with 403 when blocked.
func (s *Service) Active(ctx context.Context, userID string) (account.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return account.User{}, err
	}
	if user.IsBlocked {
		return account.User{}, apperrors.Forbidden(BlockedMessage)
	}
	return user, nil
}

func (s *Service) issue(subject, role string) (Session, error) {
	if s.issuer == nil {
		return Session{}, nil
	}
	token, expires, err := s.issuer.Issue(subject, role)
	if err != nil {
		return Session{}, apperrors.Internal("Failed to issue session token", err)
	}
	return Session{Token: token, ExpiresAt: expires}, nil
}

func mapErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NotFound("User not found")
	}
	return apperrors.Internal("Account lookup failed", err)
}
