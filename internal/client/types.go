package client

import (
	"time"

	"github.com/jkdigital/servicehub/internal/app/domain/account"
	"github.com/jkdigital/servicehub/internal/app/domain/llr"
)

// LoginResult is a successful customer login.
type LoginResult struct {
	User      account.Profile `json:"user"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// Admin identifies an administrator.
type Admin struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// AdminLoginResult is a successful administrator login.
type AdminLoginResult struct {
	Admin     Admin     `json:"admin"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Dashboard holds the admin overview counters.
type Dashboard struct {
	TodayRequests   int     `json:"todayRequests"`
	TodayAmount     float64 `json:"todayAmount"`
	TotalRequests   int     `json:"totalRequests"`
	TotalUsers      int     `json:"totalUsers"`
	TotalServices   int     `json:"totalServices"`
	PendingRequests int     `json:"pendingRequests"`
	SuccessRequests int     `json:"successRequests"`
}

// AuditEntry is one recorded admin mutation.
type AuditEntry struct {
	Time   time.Time `json:"time"`
	Admin  string    `json:"admin"`
	Route  string    `json:"route"`
	Path   string    `json:"path"`
	Method string    `json:"method"`
	Status int       `json:"status"`
}

// RequestSubmission is the answer to a service request.
type RequestSubmission struct {
	Message          string  `json:"message"`
	RequestID        string  `json:"requestId"`
	NewWalletBalance float64 `json:"newWalletBalance"`
}

// ExamSubmission is the answer to an LLR booking.
type ExamSubmission struct {
	Message          string  `json:"message"`
	Token            string  `json:"token"`
	Queue            string  `json:"queue"`
	ApplName         string  `json:"applname"`
	RTOName          string  `json:"rtoname"`
	NewWalletBalance float64 `json:"newWalletBalance"`
}

// ExamStatus is the live state of an LLR token.
type ExamStatus struct {
	Status       string     `json:"status"`
	TokenStatus  llr.Status `json:"tokenStatus"`
	Message      string     `json:"message"`
	Queue        string     `json:"queue"`
	Remarks      string     `json:"remarks"`
	Filename     string     `json:"filename"`
	PDFAvailable bool       `json:"pdfAvailable"`
}

// Terminal reports whether the token will not change any more.
func (s ExamStatus) Terminal() bool {
	if s.TokenStatus != "" {
		return s.TokenStatus.IsTerminal()
	}
	return llr.StatusFromProviderCode(s.Status).IsTerminal()
}

// PDF is a downloaded certificate, base64 encoded.
type PDF struct {
	Data     string `json:"pdfData"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
}

// DLResult is the answer to a DL PDF generation.
type DLResult struct {
	Message          string  `json:"message"`
	Name             string  `json:"name"`
	DOB              string  `json:"dob"`
	PDFData          string  `json:"pdfData"`
	NewWalletBalance float64 `json:"newWalletBalance"`
}

// DLDownload is a stored DL PDF.
type DLDownload struct {
	Name    string `json:"name"`
	DOB     string `json:"dob"`
	DLNo    string `json:"dlno"`
	PDFData string `json:"pdfData"`
}

// PaymentOrder is a new top-up order.
type PaymentOrder struct {
	TransactionID string  `json:"transactionId"`
	Amount        float64 `json:"amount"`
	QRCodeURL     string  `json:"qrCodeUrl"`
	UPIID         string  `json:"upiId"`
	PaymentLink   string  `json:"paymentLink"`
}

// ServiceInput defines a new catalog entry.
type ServiceInput struct {
	Name         string
	Description  string
	DefaultPrice float64
	Fields       []FieldInput
}

// FieldInput is one input a new service asks for.
type FieldInput struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Placeholder string `json:"placeholder,omitempty"`
}
