package dlpdf

import (
	"strings"
	"time"
)

// Request is the licence data sent to the DL PDF provider.
type Request struct {
	DLNo     string `json:"dlno"`
	Type     string `json:"type,omitempty"`
	Blood    string `json:"blood,omitempty"`
	AddrType string `json:"addrtype,omitempty"`
}

// Normalize applies the provider defaults.
func (r Request) Normalize() Request {
	r.DLNo = strings.ToUpper(strings.TrimSpace(r.DLNo))
	r.Type = strings.ToLower(strings.TrimSpace(r.Type))
	if r.Type == "" {
		r.Type = "type1"
	}
	r.Blood = strings.ToUpper(strings.TrimSpace(r.Blood))
	if r.Blood == "" {
		r.Blood = "O+"
	}
	r.AddrType = strings.ToLower(strings.TrimSpace(r.AddrType))
	if r.AddrType == "" {
		r.AddrType = "perm"
	}
	return r
}

// Record is a generated licence PDF.
type Record struct {
	ID           string    `json:"_id"`
	UserID       string    `json:"userId"`
	UserName     string    `json:"userName"`
	UserMobile   string    `json:"userMobile"`
	ServiceID    string    `json:"serviceId"`
	ServiceName  string    `json:"serviceName"`
	ServicePrice float64   `json:"servicePrice"`
	DLNo         string    `json:"dlno"`
	PDFType      string    `json:"pdfType"`
	BloodGroup   string    `json:"bloodGroup"`
	AddressType  string    `json:"addressType"`
	Status       string    `json:"status"`
	Name         string    `json:"name"`
	DOB          string    `json:"dob"`
	PDFData      string    `json:"pdfData,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// WithoutPDF returns a copy safe for list views.
func (r Record) WithoutPDF() Record {
	r.PDFData = ""
	return r
}
