package request

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a service request.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// ServiceRequest is a user's submission against a catalog service.
type ServiceRequest struct {
	ID           string                 `json:"_id"`
	UserID       string                 `json:"userId"`
	UserName     string                 `json:"userName"`
	UserMobile   string                 `json:"userMobile"`
	ServiceID    string                 `json:"serviceId"`
	ServiceName  string                 `json:"serviceName"`
	ServicePrice float64                `json:"servicePrice"`
	FieldData    map[string]interface{} `json:"fieldData"`
	Status       Status                 `json:"status"`
	AdminMessage string                 `json:"adminMessage"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}

// CanRespond reports whether an administrator may still decide the request.
func (r ServiceRequest) CanRespond() bool {
	return r.Status == StatusPending
}

// ParseResponse accepts the two outcomes an administrator may set.
func ParseResponse(s string) (Status, error) {
	switch Status(s) {
	case StatusSuccess, StatusFailed:
		return Status(s), nil
	default:
		return "", errors.New("Status must be 'success' or 'failed'")
	}
}
