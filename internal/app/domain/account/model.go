package account

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/jkdigital/servicehub/internal/app/domain/ledger"
)

// ErrInvalidMobile is returned for anything other than exactly ten digits.
var ErrInvalidMobile = errors.New("Mobile number must be exactly 10 digits")

// User is a customer account holding a wallet.
type User struct {
	ID              string    `json:"_id"`
	Name            string    `json:"name"`
	Mobile          string    `json:"mobile"`
	PasswordHash    string    `json:"-"`
	WalletBalance   float64   `json:"walletBalance"`
	ReservedBalance float64   `json:"reservedBalance"`
	IsBlocked       bool      `json:"isBlocked"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Available is the balance not held by in-flight reservations.
func (u User) Available() float64 {
	return ledger.Round2(u.WalletBalance - u.ReservedBalance)
}

// Profile is the user record returned at login and by the profile endpoints.
type Profile struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Mobile        string  `json:"mobile"`
	WalletBalance float64 `json:"walletBalance"`
	IsBlocked     bool    `json:"isBlocked"`
}

// Profile returns the public view of u.
func (u User) Profile() Profile {
	return Profile{
		ID:            u.ID,
		Name:          u.Name,
		Mobile:        u.Mobile,
		WalletBalance: u.WalletBalance,
		IsBlocked:     u.IsBlocked,
	}
}

// Admin is an operator account.
type Admin struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ValidateMobile accepts exactly ten ASCII digits.
func ValidateMobile(mobile string) error {
	if len(mobile) != 10 {
		return ErrInvalidMobile
	}
	for i := 0; i < len(mobile); i++ {
		if mobile[i] < '0' || mobile[i] > '9' {
			return ErrInvalidMobile
		}
	}
	return nil
}

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
