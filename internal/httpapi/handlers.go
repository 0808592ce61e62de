package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/digitorus/pdfmark"
	"github.com/digitorus/pdfmark/export"
	"github.com/digitorus/pdfmark/flatten"
	"github.com/digitorus/pdfmark/geometry"
	"github.com/digitorus/pdfmark/internal/auditlog"
	"github.com/digitorus/pdfmark/internal/logger"
	"github.com/digitorus/pdfmark/jarsign"
	"github.com/digitorus/pdfmark/mark"
	"github.com/digitorus/pdfmark/session"
)

var (
	// ErrThrottled is reported when too many signing requests arrive.
	ErrThrottled = errors.New("too many requests, try again later")
	// ErrBadRequest is returned for malformed request bodies.
	ErrBadRequest = errors.New("bad request")
)

type personalRequest struct {
	PDFBase64 string          `json:"pdfBase64"`
	Marks     json.RawMessage `json:"marks"`
}

type personalResponse struct {
	Success        bool               `json:"success"`
	SignedPDF      string             `json:"signedPdf"`
	AuditTrail     flatten.AuditTrail `json:"auditTrail"`
	ProcessingTime float64            `json:"processingTime"`
}

type companyRequest struct {
	PDFBase64        string          `json:"pdfBase64"`
	StaffName        string          `json:"staffName"`
	StaffNumber      string          `json:"staffNumber"`
	Marks            json.RawMessage `json:"marks"`
	CompanyName      string          `json:"companyName"`
	SigningReason    string          `json:"signingReason"`
	SigningLocation  string          `json:"signingLocation"`
	IncludeTimestamp bool            `json:"includeTimestamp"`
	FinaliseDocument bool            `json:"finaliseDocument"`
	Password         string          `json:"password"`
}

type companyResponse struct {
	Success   bool   `json:"success"`
	SignedPDF string `json:"signedPdf"`
	*jarsign.Result
}

type validateRequest struct {
	PDFBase64 string          `json:"pdfBase64"`
	Marks     json.RawMessage `json:"marks"`
}

type validateResponse struct {
	Success bool           `json:"success"`
	Summary export.Summary `json:"summary"`
}

type healthResponse struct {
	Status string `json:"status"`
	Java   bool   `json:"java"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) signPersonal(w http.ResponseWriter, r *http.Request) {
	var req personalRequest
	if err := decodeRequest(r, &req); err != nil {
		writeFailure(w, "", err)
		return
	}
	if req.PDFBase64 == "" || len(req.Marks) == 0 {
		writeError(w, http.StatusBadRequest, "Missing required fields: pdfBase64 and marks")
		return
	}
	data, m, err := decodeInput(req.PDFBase64, req.Marks)
	if err != nil {
		writeFailure(w, "", err)
		return
	}

	logger.Debug("personal signing", "marks", len(m.Marks), "bytes", len(data))
	res, err := flatten.Flatten(r.Context(), data, m, flatten.Options{
		AuditPage: s.cfg.Personal.AuditPage,
		Client:    flatten.Client{IP: clientIP(r), UserAgent: r.UserAgent()},
		Now:       s.now,
	})
	if err != nil {
		logger.Error("personal signing failed", "err", err)
		writeFailure(w, "PDF processing failed: ", err)
		return
	}

	writeJSON(w, http.StatusOK, personalResponse{
		Success:        true,
		SignedPDF:      base64.StdEncoding.EncodeToString(res.PDF),
		AuditTrail:     res.AuditTrail,
		ProcessingTime: res.ProcessingTime.Seconds(),
	})
}

func (s *Server) signCompany(w http.ResponseWriter, r *http.Request) {
	var req companyRequest
	if err := decodeRequest(r, &req); err != nil {
		writeFailure(w, "", err)
		return
	}
	for _, f := range []struct {
		name string
		set  bool
	}{
		{"pdfBase64", req.PDFBase64 != ""},
		{"staffName", req.StaffName != ""},
		{"staffNumber", req.StaffNumber != ""},
		{"marks", len(req.Marks) > 0},
	} {
		if !f.set {
			writeError(w, http.StatusBadRequest, "Missing required field: "+f.name)
			return
		}
	}
	data, m, err := decodeInput(req.PDFBase64, req.Marks)
	if err != nil {
		writeFailure(w, "", err)
		return
	}

	entry := auditlog.Entry{
		Time:        s.now(),
		StaffName:   req.StaffName,
		StaffNumber: req.StaffNumber,
		Company:     firstOf(req.CompanyName, s.cfg.Company.Name),
		IP:          clientIP(r),
	}
	if dm, ok := m.FirstOf(mark.Digital); ok {
		entry.Page = dm.Page
		entry.Rect = dm.Rect()
	}

	res, err := s.signer.Sign(r.Context(), jarsign.Request{
		PDF:              data,
		StaffName:        req.StaffName,
		StaffNumber:      req.StaffNumber,
		Manifest:         m,
		CompanyName:      req.CompanyName,
		Reason:           req.SigningReason,
		Location:         req.SigningLocation,
		IncludeTimestamp: req.IncludeTimestamp,
		Finalise:         req.FinaliseDocument,
		Password:         req.Password,
	})
	if err != nil {
		entry.Error = err.Error()
		s.record(r.Context(), entry)
		logger.Error("company signing failed", "staff", req.StaffNumber, "err", err)
		writeFailure(w, "Company signature failed: ", err)
		return
	}

	entry.Success = true
	entry.FileName = res.FileName
	s.record(r.Context(), entry)
	logger.Info("company signature applied", "staff", req.StaffNumber, "file", res.FileName)

	writeJSON(w, http.StatusOK, companyResponse{
		Success:   true,
		SignedPDF: base64.StdEncoding.EncodeToString(res.PDF),
		Result:    res,
	})
}

func (s *Server) validateMarks(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeRequest(r, &req); err != nil {
		writeFailure(w, "", err)
		return
	}
	if len(req.Marks) == 0 {
		writeError(w, http.StatusBadRequest, "Missing required field: marks")
		return
	}
	m, err := export.Decode(bytes.NewReader(req.Marks))
	if err != nil {
		writeFailure(w, "", err)
		return
	}

	var pages session.PageSource
	switch {
	case req.PDFBase64 != "":
		data, err := decodePDF(req.PDFBase64)
		if err != nil {
			writeFailure(w, "", err)
			return
		}
		doc, err := pdfmark.OpenBytes(data)
		if err != nil {
			writeFailure(w, "", fmt.Errorf("%w: %w", flatten.ErrInvalidPDF, err))
			return
		}
		pages = doc.Pages()
	case len(m.Pages) == 0:
		writeError(w, http.StatusBadRequest, "Missing required field: pdfBase64 or pages")
		return
	}

	if err := m.Validate(pages); err != nil {
		writeFailure(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{Success: true, Summary: m.Summary()})
}

func (s *Server) record(ctx context.Context, e auditlog.Entry) {
	if s.audit == nil {
		return
	}
	if _, err := s.audit.Record(context.WithoutCancel(ctx), e); err != nil {
		logger.Error("failed to record signing event", "err", err)
	}
}

func decodeRequest(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return fmt.Errorf("%w: invalid JSON body: %w", ErrBadRequest, err)
	}
	return nil
}

func decodeInput(pdfBase64 string, marks json.RawMessage) ([]byte, *export.Manifest, error) {
	data, err := decodePDF(pdfBase64)
	if err != nil {
		return nil, nil, err
	}
	m, err := export.Decode(bytes.NewReader(marks))
	if err != nil {
		return nil, nil, err
	}
	return data, m, nil
}

func decodePDF(s string) ([]byte, error) {
	// Data URLs produced by FileReader carry a prefix.
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: pdfBase64 is not base64 encoded", ErrBadRequest)
	}
	return data, nil
}

// statusOf maps an error to the HTTP status reported to the client.
func statusOf(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrBadRequest), errors.Is(err, jarsign.ErrMissingField):
		return http.StatusBadRequest
	case errors.Is(err, jarsign.ErrJavaMissing):
		return http.StatusServiceUnavailable
	case errors.Is(err, flatten.ErrInvalidPDF),
		errors.Is(err, export.ErrInvalidManifest),
		errors.Is(err, jarsign.ErrNoDigitalMark),
		errors.Is(err, session.ErrInvalidPage),
		errors.Is(err, geometry.ErrInvalidDimension),
		errors.Is(err, mark.ErrMissingPayload):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeFailure(w http.ResponseWriter, prefix string, err error) {
	writeError(w, statusOf(err), prefix+err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to write response", "err", err)
	}
}

func firstOf(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
