package catalog

import (
	"fmt"
	"strings"
	"time"
)

// Field describes one input a service asks for.
type Field struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Placeholder string `json:"placeholder,omitempty"`
}

// Service is a catalog entry.
type Service struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	DefaultPrice float64   `json:"defaultPrice"`
	Fields       []Field   `json:"fields"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PriceOverride is a per-user price for one service.
type PriceOverride struct {
	UserID    string    `json:"userId"`
	ServiceID string    `json:"serviceId"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ServicePrice is the admin view of a user's effective price for a service.
type ServicePrice struct {
	ServiceID   string  `json:"serviceId"`
	ServiceName string  `json:"serviceName"`
	Price       float64 `json:"price"`
}

// UserService is an active service annotated with the caller's price.
type UserService struct {
	Service
	UserPrice float64 `json:"userPrice"`
}

// EffectivePrice returns the override price when present, else the default.
func EffectivePrice(svc Service, override *PriceOverride) float64 {
	if override != nil {
		return override.Price
	}
	return svc.DefaultPrice
}

// MissingRequired lists required field names absent or blank in data.
func MissingRequired(fields []Field, data map[string]interface{}) []string {
	var missing []string
	for _, f := range fields {
		if !f.Required {
			continue
		}
		v, ok := data[f.Name]
		if !ok || v == nil {
			missing = append(missing, f.Name)
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// ValidateFields checks field definitions submitted by an administrator.
func ValidateFields(fields []Field) error {
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return fmt.Errorf("field %d has no name", i+1)
		}
		if seen[name] {
			return fmt.Errorf("duplicate field %q", name)
		}
		seen[name] = true
	}
	return nil
}
