package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitorus/pdfmark"
	"github.com/digitorus/pdfmark/config"
	"github.com/digitorus/pdfmark/geometry"
	"github.com/digitorus/pdfmark/internal/auditlog"
	"github.com/digitorus/pdfmark/internal/testpdf"
	"github.com/digitorus/pdfmark/jarsign"
)

const marksJSON = `[
	{"type": "text", "page": 1, "x": 40, "y": 40, "width": 120, "height": 24, "text": "Approved", "fontSize": 12},
	{"type": "digital", "page": 2, "x": 75, "y": 70, "width": 150, "height": 60,
	 "digitalData": {"staffName": "Jane Smith", "staffNumber": "EMP-001"}}
]`

var testNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

type fakeRunner struct {
	noJava bool
	jarErr error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	if len(args) == 1 && args[0] == "-version" {
		if f.noJava {
			return nil, errors.New("executable file not found")
		}
		return []byte(`openjdk version "17.0.2"`), nil
	}
	if f.jarErr != nil {
		return []byte("signing tool exploded"), f.jarErr
	}
	for i, a := range args {
		if a == "--destination" {
			return []byte("ok"), os.WriteFile(args[i+1], []byte("%PDF-1.7 signed"), 0o600)
		}
	}
	return nil, errors.New("no destination")
}

type fixture struct {
	srv   *Server
	audit *auditlog.Log
	pdf   string
}

func setup(t *testing.T, runner *fakeRunner, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Server.RatePerMinute = 0
	cfg.Company.Name = "Example Corp"
	cfg.Company.Jar = "/opt/open-pdf-sign.jar"
	cfg.Company.TempDir = dir
	cfg.Company.Certificate = filepath.Join(dir, "cert.pem")
	cfg.Company.Key = filepath.Join(dir, "key.pem")
	for _, fn := range mutate {
		fn(cfg)
	}

	certPEM, keyPEM := testpdf.IssueSelfSigned(t, "Example Corp Signing").PEM(t)
	require.NoError(t, os.WriteFile(cfg.Company.Certificate, certPEM, 0o600))
	require.NoError(t, os.WriteFile(cfg.Company.Key, keyPEM, 0o600))

	audit, err := auditlog.Open(filepath.Join(dir, "audit"))
	require.NoError(t, err)
	t.Cleanup(func() { audit.Close() })

	now := func() time.Time { return testNow }
	signer := jarsign.New(cfg.Company.Signer(), jarsign.WithRunner(runner), jarsign.WithClock(now))
	return &fixture{
		srv:   New(cfg, WithSigner(signer), WithAuditLog(audit), WithClock(now)),
		audit: audit,
		pdf:   base64.StdEncoding.EncodeToString(testpdf.MustPages(t, geometry.A4, geometry.Letter)),
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "pdfmark-test")
	req.RemoteAddr = "192.0.2.1:51234"
	rec := httptest.NewRecorder()
	f.srv.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestSignPersonal(t *testing.T) {
	f := setup(t, &fakeRunner{})
	rec := f.do(t, http.MethodPost, "/api/sign-personal", map[string]any{
		"pdfBase64": f.pdf,
		"marks":     json.RawMessage(marksJSON),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var resp personalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "2024-03-15 10:30:00", resp.AuditTrail.Timestamp)
	assert.Equal(t, "192.0.2.1", resp.AuditTrail.IP)
	assert.Equal(t, "pdfmark-test", resp.AuditTrail.UserAgent)
	assert.Equal(t, 2, resp.AuditTrail.MarksCount)
	assert.Equal(t, 2, resp.AuditTrail.PageCount)

	signed, err := base64.StdEncoding.DecodeString(resp.SignedPDF)
	require.NoError(t, err)
	doc, err := pdfmark.OpenBytes(signed)
	require.NoError(t, err)
	assert.Equal(t, 3, doc.NumPage(), "audit page appended")
}

func TestSignPersonalErrors(t *testing.T) {
	f := setup(t, &fakeRunner{})
	tests := []struct {
		name   string
		body   any
		status int
		errMsg string
	}{
		{"invalid json", "{", http.StatusBadRequest, "invalid JSON body"},
		{"missing marks", map[string]any{"pdfBase64": f.pdf}, http.StatusBadRequest, "Missing required fields"},
		{"bad base64", map[string]any{"pdfBase64": "***", "marks": json.RawMessage(marksJSON)}, http.StatusBadRequest, "not base64"},
		{
			"not a pdf",
			map[string]any{"pdfBase64": base64.StdEncoding.EncodeToString([]byte("hello")), "marks": json.RawMessage(marksJSON)},
			http.StatusUnprocessableEntity, "PDF processing failed: invalid PDF data",
		},
		{
			"mark on missing page",
			map[string]any{"pdfBase64": f.pdf, "marks": json.RawMessage(`[{"type":"text","page":5,"x":0,"y":0,"width":10,"height":10,"text":"x"}]`)},
			http.StatusUnprocessableEntity, "invalid page",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/sign-personal", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Contains(t, body["error"], tt.errMsg)
		})
	}
}

func TestSignCompany(t *testing.T) {
	f := setup(t, &fakeRunner{})
	rec := f.do(t, http.MethodPost, "/api/sign-company", map[string]any{
		"pdfBase64":        f.pdf,
		"staffName":        "Jane Smith",
		"staffNumber":      "EMP-001",
		"marks":            json.RawMessage(marksJSON),
		"includeTimestamp": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "digitally_signed_20240315_103000.pdf", body["fileName"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-1.7 signed")), body["signedPdf"])

	details := body["signatureDetails"].(map[string]any)
	assert.Equal(t, "Jane Smith", details["staffName"])
	assert.Equal(t, "Example Corp", details["companyName"])
	assert.Equal(t, float64(2), details["page"])
	assert.Equal(t, map[string]any{"x": float64(75), "y": float64(70)}, details["position"])
	assert.Contains(t, body["certificateInfo"].(map[string]any)["subject"], "Example Corp Signing")

	entries, err := f.audit.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Success)
	assert.Equal(t, "EMP-001", entries[0].StaffNumber)
	assert.Equal(t, "Example Corp", entries[0].Company)
	assert.Equal(t, "192.0.2.1", entries[0].IP)
	assert.Equal(t, 2, entries[0].Page)
	assert.Equal(t, geometry.Rect{X: 75, Y: 70, Width: 150, Height: 60}, entries[0].Rect)
	assert.Equal(t, "digitally_signed_20240315_103000.pdf", entries[0].FileName)
}

func TestSignCompanyErrors(t *testing.T) {
	textOnly := json.RawMessage(`[{"type":"text","page":1,"x":0,"y":0,"width":10,"height":10,"text":"x"}]`)
	tests := []struct {
		name   string
		runner *fakeRunner
		body   func(pdf string) map[string]any
		status int
		errMsg string
		logged bool
	}{
		{
			"missing staff number", &fakeRunner{},
			func(pdf string) map[string]any {
				return map[string]any{"pdfBase64": pdf, "staffName": "Jane Smith", "marks": json.RawMessage(marksJSON)}
			},
			http.StatusBadRequest, "Missing required field: staffNumber", false,
		},
		{
			"no digital mark", &fakeRunner{},
			func(pdf string) map[string]any {
				return map[string]any{"pdfBase64": pdf, "staffName": "Jane Smith", "staffNumber": "EMP-001", "marks": textOnly}
			},
			http.StatusUnprocessableEntity, "no digital signature mark", true,
		},
		{
			"java missing", &fakeRunner{noJava: true},
			func(pdf string) map[string]any {
				return map[string]any{"pdfBase64": pdf, "staffName": "Jane Smith", "staffNumber": "EMP-001", "marks": json.RawMessage(marksJSON)}
			},
			http.StatusServiceUnavailable, "java is not installed", true,
		},
		{
			"tool failure", &fakeRunner{jarErr: errors.New("exit status 1")},
			func(pdf string) map[string]any {
				return map[string]any{"pdfBase64": pdf, "staffName": "Jane Smith", "staffNumber": "EMP-001", "marks": json.RawMessage(marksJSON)}
			},
			http.StatusInternalServerError, "Company signature failed: PDF signing failed", true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, tt.runner)
			rec := f.do(t, http.MethodPost, "/api/sign-company", tt.body(f.pdf))
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, decodeBody(t, rec)["error"], tt.errMsg)

			entries, err := f.audit.List(context.Background(), 10)
			require.NoError(t, err)
			if !tt.logged {
				assert.Empty(t, entries)
				return
			}
			require.Len(t, entries, 1)
			assert.False(t, entries[0].Success)
			assert.NotEmpty(t, entries[0].Error)
		})
	}
}

func TestValidateMarks(t *testing.T) {
	f := setup(t, &fakeRunner{})

	rec := f.do(t, http.MethodPost, "/api/marks/validate", map[string]any{
		"pdfBase64": f.pdf,
		"marks":     json.RawMessage(marksJSON),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp validateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Summary.Total)
	assert.Equal(t, map[string]int{"text": 1, "digital": 1}, resp.Summary.ByType)
	assert.Equal(t, []int{1, 2}, resp.Summary.Pages)

	// Page sizes from the manifest itself.
	rec = f.do(t, http.MethodPost, "/api/marks/validate", map[string]any{
		"marks": map[string]any{
			"pages": []map[string]any{{"page": 1, "width": 595, "height": 842}},
			"marks": json.RawMessage(`[{"type":"text","page":1,"x":500,"y":0,"width":200,"height":10,"text":"x"}]`),
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "outside")

	rec = f.do(t, http.MethodPost, "/api/marks/validate", map[string]any{"marks": json.RawMessage(marksJSON)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestThrottle(t *testing.T) {
	f := setup(t, &fakeRunner{}, func(c *config.Config) { c.Server.RatePerMinute = 1 })
	handler := f.srv.Routes()

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/sign-personal", strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusBadRequest, post())
	assert.Equal(t, http.StatusTooManyRequests, post())
}

func TestBodyLimit(t *testing.T) {
	f := setup(t, &fakeRunner{}, func(c *config.Config) { c.Server.MaxUploadMB = 1 })
	big := `{"pdfBase64":"` + strings.Repeat("A", 2<<20) + `","marks":[]}`
	rec := f.do(t, http.MethodPost, "/api/sign-personal", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCORSAndMethods(t *testing.T) {
	f := setup(t, &fakeRunner{})

	rec := f.do(t, http.MethodOptions, "/api/sign-company", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))

	rec = f.do(t, http.MethodGet, "/api/sign-company", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", decodeBody(t, rec)["error"])
}

func TestHealth(t *testing.T) {
	f := setup(t, &fakeRunner{})
	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "ok", "java": true}, decodeBody(t, rec))

	f = setup(t, &fakeRunner{noJava: true})
	rec = f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, false, decodeBody(t, rec)["java"])
}
