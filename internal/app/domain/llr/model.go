package llr

import (
	"errors"
	"strings"
	"time"
)

// Status is the lifecycle state of an LLR token.
type Status string

const (
	StatusSubmitted  Status = "submitted"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusRefunded   Status = "refunded"
	StatusFailed     Status = "failed"
)

// Provider status codes.
const (
	CodeCompleted  = "200"
	CodeRefunded   = "300"
	CodeNotFound   = "404"
	CodeProcessing = "500"
)

// IsTerminal reports whether no further upstream checks are needed.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusRefunded, StatusFailed:
		return true
	}
	return false
}

// Active lists the statuses still polled upstream.
func Active() []Status {
	return []Status{StatusSubmitted, StatusProcessing}
}

// StatusFromProviderCode maps a provider status code to a token status.
func StatusFromProviderCode(code string) Status {
	switch strings.TrimSpace(code) {
	case CodeCompleted:
		return StatusCompleted
	case CodeProcessing:
		return StatusProcessing
	case CodeRefunded:
		return StatusRefunded
	case CodeNotFound:
		return StatusFailed
	default:
		return StatusSubmitted
	}
}

// Token is a booked exam tracked by its provider token.
type Token struct {
	ID           string     `json:"_id"`
	UserID       string     `json:"userId"`
	UserName     string     `json:"userName"`
	UserMobile   string     `json:"userMobile"`
	ServiceID    string     `json:"serviceId"`
	ServiceName  string     `json:"serviceName"`
	ServicePrice float64    `json:"servicePrice"`
	Token        string     `json:"token"`
	ApplNo       string     `json:"applno"`
	ApplName     string     `json:"applname"`
	DOB          string     `json:"dob"`
	Queue        string     `json:"queue"`
	RTOCode      string     `json:"rtocode"`
	RTOName      string     `json:"rtoname"`
	StateCode    string     `json:"statecode"`
	StateName    string     `json:"statename"`
	Status       Status     `json:"status"`
	Remarks      string     `json:"remarks,omitempty"`
	RefundReason string     `json:"refundReason,omitempty"`
	Filename     string     `json:"filename,omitempty"`
	PDFData      string     `json:"pdfData,omitempty"`
	LastChecked  *time.Time `json:"lastChecked,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// WithoutPDF returns a copy safe for list views.
func (t Token) WithoutPDF() Token {
	t.PDFData = ""
	return t
}

// Update carries the fields a status check may change. Empty strings leave
// the stored value untouched.
type Update struct {
	Status       Status
	Queue        string
	Remarks      string
	RefundReason string
	Filename     string
	PDFData      string
	CheckedAt    time.Time
}

// Apply merges u into t.
func (u Update) Apply(t Token) Token {
	if u.Status != "" {
		if u.Status == StatusCompleted && t.Status != StatusCompleted {
			at := u.CheckedAt
			t.CompletedAt = &at
		}
		t.Status = u.Status
	}
	if u.Queue != "" {
		t.Queue = u.Queue
	}
	if u.Remarks != "" {
		t.Remarks = u.Remarks
	}
	if u.RefundReason != "" {
		t.RefundReason = u.RefundReason
	}
	if u.Filename != "" {
		t.Filename = u.Filename
	}
	if u.PDFData != "" {
		t.PDFData = u.PDFData
	}
	if !u.CheckedAt.IsZero() {
		at := u.CheckedAt
		t.LastChecked = &at
		t.UpdatedAt = at
	}
	return t
}

// ExamInput is the applicant data needed to book an exam.
type ExamInput struct {
	ApplNo   string `json:"applno"`
	DOB      string `json:"dob"`
	Password string `json:"pass"`
	Pin      string `json:"pin,omitempty"`
	Type     string `json:"type,omitempty"`
}

// ParseExamInput reads the multi-line form: application number, date of
// birth, password, then optional pin and exam type.
func ParseExamInput(text string) (ExamInput, error) {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 3 {
		return ExamInput{}, errors.New("Please enter application number, date of birth and password on separate lines")
	}
	in := ExamInput{ApplNo: lines[0], DOB: lines[1], Password: lines[2]}
	if len(lines) > 3 {
		in.Pin = lines[3]
	}
	if len(lines) > 4 {
		in.Type = lines[4]
	}
	return in.Normalize(), nil
}

// Normalize trims all fields, upper-cases the application number and
// password and lower-cases the exam type (default "day").
func (in ExamInput) Normalize() ExamInput {
	in.ApplNo = strings.ToUpper(strings.TrimSpace(in.ApplNo))
	in.DOB = strings.TrimSpace(in.DOB)
	in.Password = strings.ToUpper(strings.TrimSpace(in.Password))
	in.Pin = strings.TrimSpace(in.Pin)
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	if in.Type == "" {
		in.Type = "day"
	}
	return in
}

// Missing lists the required inputs that are blank.
func (in ExamInput) Missing() []string {
	var missing []string
	if strings.TrimSpace(in.ApplNo) == "" {
		missing = append(missing, "applno")
	}
	if strings.TrimSpace(in.DOB) == "" {
		missing = append(missing, "dob")
	}
	if strings.TrimSpace(in.Password) == "" {
		missing = append(missing, "pass")
	}
	return missing
}
