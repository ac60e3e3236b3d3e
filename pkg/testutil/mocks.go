// Package testutil provides a stub upstream provider and an in-process
// ServiceHub server for package tests.
package testutil

import (
	"context"
	"sync"

	"github.com/jkdigital/servicehub/internal/provider"
)

// SamplePDF is the base64 body the stub returns for every certificate.
const SamplePDF = "JVBERi0xLjQK"

// StubProvider is a test implementation of the upstream exam, licence and
// payment APIs. Exams stay in the queue until SetExamStatus("200").
type StubProvider struct {
	mu            sync.Mutex
	examStatus    string
	paymentStatus string
	examChecks    int
	submitErr     error
}

// NewStubProvider creates a provider whose exams are still processing.
func NewStubProvider() *StubProvider {
	return &StubProvider{examStatus: "500", paymentStatus: "200"}
}

// SetExamStatus sets the provider code returned by CheckExam.
func (p *StubProvider) SetExamStatus(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.examStatus = code
}

// SetPaymentStatus sets the provider code returned by PaymentStatus.
func (p *StubProvider) SetPaymentStatus(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paymentStatus = code
}

// FailSubmissions makes SubmitExam return err until reset with nil.
func (p *StubProvider) FailSubmissions(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitErr = err
}

// ExamChecks reports how many times CheckExam was called.
func (p *StubProvider) ExamChecks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.examChecks
}

func (p *StubProvider) SubmitExam(_ context.Context, in provider.ExamInput) (provider.ExamResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.submitErr != nil {
		return provider.ExamResult{}, p.submitErr
	}
	return provider.ExamResult{
		Status:   "200",
		Token:    "tok-" + in.ApplNo,
		ApplNo:   in.ApplNo,
		DOB:      in.DOB,
		Queue:    "5",
		ApplName: "RAVI KUMAR",
		RTOName:  "Jammu",
	}, nil
}

func (p *StubProvider) CheckExam(_ context.Context, _ string) (provider.StatusResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.examChecks++
	if p.examStatus == "200" {
		return provider.StatusResult{Status: "200", Message: SamplePDF, Filename: "llr.pdf", Remarks: "Passed"}, nil
	}
	return provider.StatusResult{Status: p.examStatus, Queue: "3", Remarks: "In queue"}, nil
}

func (p *StubProvider) GenerateDLPDF(_ context.Context, _ provider.DLInput) (provider.DLResult, error) {
	return provider.DLResult{Status: "200", Name: "RAVI KUMAR", DOB: "01-01-1990", PDF: SamplePDF}, nil
}

func (p *StubProvider) PaymentStatus(_ context.Context, _ string) (provider.PaymentResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return provider.PaymentResult{Status: p.paymentStatus}, nil
}
