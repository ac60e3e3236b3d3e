package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/jkdigital/servicehub/internal/app/domain/dlpdf"
)

// GenerateDLPDF renders a driving licence PDF for the user.
func (c *Client) GenerateDLPDF(ctx context.Context, userID, serviceID string, req dlpdf.Request) (DLResult, error) {
	if err := requireUser(userID); err != nil {
		return DLResult{}, err
	}
	if strings.TrimSpace(serviceID) == "" {
		return DLResult{}, invalid("service id is required")
	}
	req = req.Normalize()
	if req.DLNo == "" {
		return DLResult{}, invalid("driving licence number is required")
	}

	var out DLResult
	body := struct {
		UserID    string `json:"userId"`
		ServiceID string `json:"serviceId"`
		dlpdf.Request
	}{userID, serviceID, req}
	err := c.do(ctx, http.MethodPost, "/api/dl/generate-pdf", body, &out)
	return out, err
}

// DLPDFs lists the user's generated licences without their PDF bodies.
func (c *Client) DLPDFs(ctx context.Context, userID string) ([]dlpdf.Record, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var out struct {
		PDFs []dlpdf.Record `json:"pdfs"`
	}
	err := c.do(ctx, http.MethodGet, userPath("/api/dl/user-pdfs/", userID), nil, &out)
	return out.PDFs, err
}

// DownloadDLPDF fetches one stored licence PDF.
func (c *Client) DownloadDLPDF(ctx context.Context, id string) (DLDownload, error) {
	if strings.TrimSpace(id) == "" {
		return DLDownload{}, invalid("pdf id is required")
	}
	var out DLDownload
	err := c.do(ctx, http.MethodGet, "/api/dl/download-pdf/"+url.PathEscape(id), nil, &out)
	return out, err
}
