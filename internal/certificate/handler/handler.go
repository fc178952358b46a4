// Package handler exposes the certificate pipeline over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"certledger/internal/certificate/models"
	"certledger/internal/certificate/service"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/sentinel"
)

// CertificateService is the surface the handler needs from the orchestrator.
type CertificateService interface {
	Issue(ctx context.Context, req service.IssueRequest) (models.IssuanceResult, error)
	Lookup(ctx context.Context, id string) (models.LookupResult, error)
}

// Documents serves cached certificate artifacts by identifier.
type Documents interface {
	Open(id string) ([]byte, error)
}

// ContractInfo describes the deployed registry contract; it is static for the
// lifetime of the process.
type ContractInfo struct {
	Address string `json:"address"`
	ChainID string `json:"chainId"`
}

// Handler wires the certificate endpoints into a chi router.
type Handler struct {
	svc  CertificateService
	docs Documents
	info ContractInfo
	log  *slog.Logger
}

func New(svc CertificateService, docs Documents, info ContractInfo, log *slog.Logger) *Handler {
	return &Handler{svc: svc, docs: docs, info: info, log: log}
}

// Routes mounts the certificate API.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/issue", h.issue)
	r.Post("/api/verify", h.verify)
	r.Get("/api/contract_info", h.contractInfo)
	r.Get("/download/{certID}", h.download)
}

type issueRequest struct {
	Student     string `json:"studentName"`
	Course      string `json:"course"`
	Institution string `json:"institution"`
}

type issueResponse struct {
	Status string `json:"status"`
	CertID string `json:"certID"`
	TxHash string `json:"tx_hash"`
	Block  uint64 `json:"block,omitempty"`
	PDFURL string `json:"pdf_url,omitempty"`
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}

	result, err := h.svc.Issue(r.Context(), service.IssueRequest{
		Student:     req.Student,
		Course:      req.Course,
		Institution: req.Institution,
	})
	if err != nil {
		// A pending submission is not a failure: hand back the hash so the
		// caller can check again once the ledger catches up.
		if dErrors.Is(err, dErrors.CodePending) {
			h.writeJSON(w, http.StatusAccepted, issueResponse{
				Status: "pending",
				CertID: result.ID,
				TxHash: result.TxHash,
			})
			return
		}
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, issueResponse{
		Status: "success",
		CertID: result.ID,
		TxHash: result.TxHash,
		Block:  result.BlockNumber,
		PDFURL: downloadURL(result.ID),
	})
}

type verifyRequest struct {
	CertID string `json:"certID"`
}

type verifyResponse struct {
	Valid       bool   `json:"valid"`
	Student     string `json:"student,omitempty"`
	Course      string `json:"course,omitempty"`
	Institution string `json:"institution,omitempty"`
	IssueDate   string `json:"issueDate,omitempty"`
	PDFURL      string `json:"pdf_url,omitempty"`
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}

	result, err := h.svc.Lookup(r.Context(), req.CertID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !result.Found {
		h.writeJSON(w, http.StatusOK, verifyResponse{Valid: false})
		return
	}

	h.writeJSON(w, http.StatusOK, verifyResponse{
		Valid:       true,
		Student:     result.Record.Student,
		Course:      result.Record.Course,
		Institution: result.Record.Institution,
		IssueDate:   result.Record.IssueDate.Format("2006-01-02 15:04:05"),
		PDFURL:      downloadURL(result.Record.ID),
	})
}

func (h *Handler) contractInfo(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.info)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "certID")

	content, err := h.docs.Open(id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			h.writeError(w, r, dErrors.New(dErrors.CodeNotFound, "certificate not yet generated"))
			return
		}
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "certificate_"+id+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func downloadURL(id string) string { return "/download/" + id }

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("encode response", "error", err.Error())
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "request failed", "status", status, "error", err.Error())
	}

	message := "internal error"
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		message = domainErr.Message
	}

	h.writeJSON(w, status, map[string]string{
		"error":   string(code),
		"message": message,
	})
}

// Healthz reports process liveness; it deliberately touches no backends.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"status":"ok","time":%q}`+"\n", time.Now().UTC().Format(time.RFC3339))
}
