package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jkdigital/servicehub/internal/app/domain/account"
	"github.com/jkdigital/servicehub/internal/app/domain/catalog"
	"github.com/jkdigital/servicehub/internal/app/domain/dlpdf"
	"github.com/jkdigital/servicehub/internal/app/domain/ledger"
	"github.com/jkdigital/servicehub/internal/app/domain/llr"
	"github.com/jkdigital/servicehub/internal/app/domain/payment"
	"github.com/jkdigital/servicehub/internal/app/domain/request"
)

const userColumns = `id, name, mobile, password_hash, wallet_balance, reserved_balance, is_blocked, created_at, updated_at`

type userRow struct {
	ID              string    `db:"id"`
	Name            string    `db:"name"`
	Mobile          string    `db:"mobile"`
	PasswordHash    string    `db:"password_hash"`
	WalletBalance   float64   `db:"wallet_balance"`
	ReservedBalance float64   `db:"reserved_balance"`
	IsBlocked       bool      `db:"is_blocked"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r userRow) toDomain() account.User {
	return account.User{
		ID:              r.ID,
		Name:            r.Name,
		Mobile:          r.Mobile,
		PasswordHash:    r.PasswordHash,
		WalletBalance:   r.WalletBalance,
		ReservedBalance: r.ReservedBalance,
		IsBlocked:       r.IsBlocked,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type adminRow struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r adminRow) toDomain() account.Admin {
	return account.Admin{ID: r.ID, Username: r.Username, PasswordHash: r.PasswordHash, CreatedAt: r.CreatedAt}
}

const serviceColumns = `id, name, description, default_price, fields, is_active, created_at`

type serviceRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Description  string    `db:"description"`
	DefaultPrice float64   `db:"default_price"`
	Fields       []byte    `db:"fields"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r serviceRow) toDomain() catalog.Service {
	svc := catalog.Service{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		DefaultPrice: r.DefaultPrice,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt,
	}
	if len(r.Fields) > 0 {
		_ = json.Unmarshal(r.Fields, &svc.Fields)
	}
	if svc.Fields == nil {
		svc.Fields = []catalog.Field{}
	}
	return svc
}

type priceRow struct {
	UserID    string    `db:"user_id"`
	ServiceID string    `db:"service_id"`
	Price     float64   `db:"price"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r priceRow) toDomain() catalog.PriceOverride {
	return catalog.PriceOverride{UserID: r.UserID, ServiceID: r.ServiceID, Price: r.Price, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

const requestColumns = `id, user_id, user_name, user_mobile, service_id, service_name, service_price, field_data, status, admin_message, created_at, updated_at`

type requestRow struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	UserName     string    `db:"user_name"`
	UserMobile   string    `db:"user_mobile"`
	ServiceID    string    `db:"service_id"`
	ServiceName  string    `db:"service_name"`
	ServicePrice float64   `db:"service_price"`
	FieldData    []byte    `db:"field_data"`
	Status       string    `db:"status"`
	AdminMessage string    `db:"admin_message"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r requestRow) toDomain() request.ServiceRequest {
	req := request.ServiceRequest{
		ID:           r.ID,
		UserID:       r.UserID,
		UserName:     r.UserName,
		UserMobile:   r.UserMobile,
		ServiceID:    r.ServiceID,
		ServiceName:  r.ServiceName,
		ServicePrice: r.ServicePrice,
		Status:       request.Status(r.Status),
		AdminMessage: r.AdminMessage,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if len(r.FieldData) > 0 {
		_ = json.Unmarshal(r.FieldData, &req.FieldData)
	}
	if req.FieldData == nil {
		req.FieldData = map[string]interface{}{}
	}
	return req
}

const entryColumns = `id, user_id, user_name, user_mobile, transaction_type, amount, description, reference_id, balance_after, created_at`

type entryRow struct {
	ID              string    `db:"id"`
	UserID          string    `db:"user_id"`
	UserName        string    `db:"user_name"`
	UserMobile      string    `db:"user_mobile"`
	TransactionType string    `db:"transaction_type"`
	Amount          float64   `db:"amount"`
	Description     string    `db:"description"`
	ReferenceID     string    `db:"reference_id"`
	BalanceAfter    float64   `db:"balance_after"`
	CreatedAt       time.Time `db:"created_at"`
}

func (r entryRow) toDomain() ledger.Entry {
	return ledger.Entry{
		ID:              r.ID,
		UserID:          r.UserID,
		UserName:        r.UserName,
		UserMobile:      r.UserMobile,
		TransactionType: ledger.EntryType(r.TransactionType),
		Amount:          r.Amount,
		Description:     r.Description,
		ReferenceID:     r.ReferenceID,
		BalanceAfter:    r.BalanceAfter,
		CreatedAt:       r.CreatedAt,
	}
}

// tokenListColumns omits pdf_data; tokenColumns includes it.
const tokenListColumns = `id, token, user_id, user_name, user_mobile, service_id, service_name, service_price,
	applno, applname, dob, queue, rtocode, rtoname, statecode, statename, status, remarks, refund_reason,
	filename, last_checked, completed_at, created_at, updated_at`

const tokenColumns = tokenListColumns + `, pdf_data`

type tokenRow struct {
	ID           string       `db:"id"`
	Token        string       `db:"token"`
	UserID       string       `db:"user_id"`
	UserName     string       `db:"user_name"`
	UserMobile   string       `db:"user_mobile"`
	ServiceID    string       `db:"service_id"`
	ServiceName  string       `db:"service_name"`
	ServicePrice float64      `db:"service_price"`
	ApplNo       string       `db:"applno"`
	ApplName     string       `db:"applname"`
	DOB          string       `db:"dob"`
	Queue        string       `db:"queue"`
	RTOCode      string       `db:"rtocode"`
	RTOName      string       `db:"rtoname"`
	StateCode    string       `db:"statecode"`
	StateName    string       `db:"statename"`
	Status       string       `db:"status"`
	Remarks      string       `db:"remarks"`
	RefundReason string       `db:"refund_reason"`
	Filename     string       `db:"filename"`
	PDFData      string       `db:"pdf_data"`
	LastChecked  sql.NullTime `db:"last_checked"`
	CompletedAt  sql.NullTime `db:"completed_at"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

func tokenToRow(t llr.Token) tokenRow {
	return tokenRow{
		ID:           t.ID,
		Token:        t.Token,
		UserID:       t.UserID,
		UserName:     t.UserName,
		UserMobile:   t.UserMobile,
		ServiceID:    t.ServiceID,
		ServiceName:  t.ServiceName,
		ServicePrice: t.ServicePrice,
		ApplNo:       t.ApplNo,
		ApplName:     t.ApplName,
		DOB:          t.DOB,
		Queue:        t.Queue,
		RTOCode:      t.RTOCode,
		RTOName:      t.RTOName,
		StateCode:    t.StateCode,
		StateName:    t.StateName,
		Status:       string(t.Status),
		Remarks:      t.Remarks,
		RefundReason: t.RefundReason,
		Filename:     t.Filename,
		PDFData:      t.PDFData,
		LastChecked:  nullTime(t.LastChecked),
		CompletedAt:  nullTime(t.CompletedAt),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func (r tokenRow) toDomain() llr.Token {
	return llr.Token{
		ID:           r.ID,
		Token:        r.Token,
		UserID:       r.UserID,
		UserName:     r.UserName,
		UserMobile:   r.UserMobile,
		ServiceID:    r.ServiceID,
		ServiceName:  r.ServiceName,
		ServicePrice: r.ServicePrice,
		ApplNo:       r.ApplNo,
		ApplName:     r.ApplName,
		DOB:          r.DOB,
		Queue:        r.Queue,
		RTOCode:      r.RTOCode,
		RTOName:      r.RTOName,
		StateCode:    r.StateCode,
		StateName:    r.StateName,
		Status:       llr.Status(r.Status),
		Remarks:      r.Remarks,
		RefundReason: r.RefundReason,
		Filename:     r.Filename,
		PDFData:      r.PDFData,
		LastChecked:  timePtr(r.LastChecked),
		CompletedAt:  timePtr(r.CompletedAt),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

const recordListColumns = `id, user_id, user_name, user_mobile, service_id, service_name, service_price,
	dlno, pdf_type, blood_group, address_type, status, name, dob, created_at`

const recordColumns = recordListColumns + `, pdf_data`

type recordRow struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	UserName     string    `db:"user_name"`
	UserMobile   string    `db:"user_mobile"`
	ServiceID    string    `db:"service_id"`
	ServiceName  string    `db:"service_name"`
	ServicePrice float64   `db:"service_price"`
	DLNo         string    `db:"dlno"`
	PDFType      string    `db:"pdf_type"`
	BloodGroup   string    `db:"blood_group"`
	AddressType  string    `db:"address_type"`
	Status       string    `db:"status"`
	Name         string    `db:"name"`
	DOB          string    `db:"dob"`
	PDFData      string    `db:"pdf_data"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r recordRow) toDomain() dlpdf.Record {
	return dlpdf.Record{
		ID:           r.ID,
		UserID:       r.UserID,
		UserName:     r.UserName,
		UserMobile:   r.UserMobile,
		ServiceID:    r.ServiceID,
		ServiceName:  r.ServiceName,
		ServicePrice: r.ServicePrice,
		DLNo:         r.DLNo,
		PDFType:      r.PDFType,
		BloodGroup:   r.BloodGroup,
		AddressType:  r.AddressType,
		Status:       r.Status,
		Name:         r.Name,
		DOB:          r.DOB,
		PDFData:      r.PDFData,
		CreatedAt:    r.CreatedAt,
	}
}

const orderColumns = `id, transaction_id, user_id, user_name, user_mobile, amount, status, qr_code_url, upi_id, payment_link, created_at, updated_at`

type orderRow struct {
	ID            string    `db:"id"`
	TransactionID string    `db:"transaction_id"`
	UserID        string    `db:"user_id"`
	UserName      string    `db:"user_name"`
	UserMobile    string    `db:"user_mobile"`
	Amount        float64   `db:"amount"`
	Status        string    `db:"status"`
	QRCodeURL     string    `db:"qr_code_url"`
	UPIID         string    `db:"upi_id"`
	PaymentLink   string    `db:"payment_link"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r orderRow) toDomain() payment.Order {
	return payment.Order{
		ID:            r.ID,
		TransactionID: r.TransactionID,
		UserID:        r.UserID,
		UserName:      r.UserName,
		UserMobile:    r.UserMobile,
		Amount:        r.Amount,
		Status:        payment.Status(r.Status),
		QRCodeURL:     r.QRCodeURL,
		UPIID:         r.UPIID,
		PaymentLink:   r.PaymentLink,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
