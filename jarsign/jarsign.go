// Package jarsign produces a company signed document by running the
// open-pdf-sign tool. The signature widget is placed where the first digital
// marker of the manifest sits.
//
// The tool is a Java archive, executed through a CommandRunner so that tests
// and deployments can replace how it is started.
package jarsign

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"seehuhn.de/go/geom/rect"

	"github.com/digitorus/pdfmark"
	"github.com/digitorus/pdfmark/export"
	"github.com/digitorus/pdfmark/flatten"
	"github.com/digitorus/pdfmark/geometry"
	"github.com/digitorus/pdfmark/mark"
)

// Defaults of the signing metadata.
const (
	DefaultCompanyName = "Your Company"
	DefaultReason      = "Document signing"
	DefaultLocation    = "Corporate Headquarters"
	DefaultTSA         = "http://timestamp.digicert.com"
	DefaultJava        = "java"
)

var (
	// ErrJavaMissing is returned when the Java runtime cannot be started.
	ErrJavaMissing = errors.New("java is not installed or not in PATH")
	// ErrNoDigitalMark is returned when the manifest has no digital marker
	// to position the signature.
	ErrNoDigitalMark = errors.New("no digital signature mark found in document")
	// ErrMissingField is returned for requests without a required field.
	ErrMissingField = errors.New("missing required field")
)

// CommandError is returned when the signing tool fails.
type CommandError struct {
	Name   string
	Args   []string
	Output []byte
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("PDF signing failed: %v. Output: %s", e.Err, strings.TrimSpace(string(e.Output)))
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// CommandRunner runs an external command and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Config describes the signing tool and the company credentials.
type Config struct {
	Java string // Java binary, defaults to "java"
	Jar  string // Path of open-pdf-sign.jar

	Certificate string // PEM certificate chain
	Key         string // PEM private key
	// Keystore is a PKCS#12 file used instead of Certificate and Key.
	Keystore         string
	KeystorePassword string

	CompanyName string
	Reason      string
	Location    string
	TSA         string // Timestamp authority used when a timestamp is requested

	TempDir string
}

// Request is one company signing request.
type Request struct {
	PDF         []byte
	StaffName   string
	StaffNumber string
	Manifest    *export.Manifest

	// Optional overrides of the configured metadata.
	CompanyName string
	Reason      string
	Location    string

	IncludeTimestamp bool
	// Finalise encrypts the output, optionally with Password.
	Finalise bool
	Password string
}

// Result is a signed document.
type Result struct {
	PDF              []byte           `json:"-"`
	FileName         string           `json:"fileName"`
	CertificateInfo  CertificateInfo  `json:"certificateInfo"`
	SignatureDetails SignatureDetails `json:"signatureDetails"`
}

// CertificateInfo describes the signing certificate.
type CertificateInfo struct {
	Subject   string `json:"subject"`
	Issuer    string `json:"issuer"`
	ValidFrom string `json:"validFrom"`
	ValidTo   string `json:"validTo"`
}

// SignatureDetails describes the applied signature.
type SignatureDetails struct {
	StaffName   string   `json:"staffName"`
	StaffNumber string   `json:"staffNumber"`
	CompanyName string   `json:"companyName"`
	Timestamp   string   `json:"timestamp"`
	Page        int      `json:"page"`
	Position    Position `json:"position"`
}

// Position is the logical top-left corner of the signature.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Signer runs company signing requests.
type Signer struct {
	cfg     Config
	runner  CommandRunner
	limiter *rate.Limiter
	now     func() time.Time
}

// Option configures a Signer.
type Option func(*Signer)

// WithRunner replaces the command runner.
func WithRunner(r CommandRunner) Option {
	return func(s *Signer) {
		s.runner = r
	}
}

// WithLimiter throttles signing requests.
func WithLimiter(l *rate.Limiter) Option {
	return func(s *Signer) {
		s.limiter = l
	}
}

// WithClock sets the source of the signing time.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}

// Throttle returns a limiter allowing perMinute signing runs per minute
// with bursts of up to burst runs.
func Throttle(perMinute, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60), max(burst, 1))
}

// New returns a Signer for cfg.
func New(cfg Config, opts ...Option) *Signer {
	if cfg.Java == "" {
		cfg.Java = DefaultJava
	}
	s := &Signer{
		cfg:    cfg,
		runner: ExecRunner{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckJava verifies that the Java runtime starts.
func (s *Signer) CheckJava(ctx context.Context) error {
	out, err := s.runner.Run(ctx, s.cfg.Java, "-version")
	if err != nil || !strings.Contains(string(out), "version") {
		return ErrJavaMissing
	}
	return nil
}

// Sign signs req.PDF with the company certificate.
func (s *Signer) Sign(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if err := flatten.CheckPDF(req.PDF); err != nil {
		return nil, err
	}
	dm, ok := req.Manifest.FirstOf(mark.Digital)
	if !ok {
		return nil, ErrNoDigitalMark
	}
	doc, err := pdfmark.OpenBytes(req.PDF)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", flatten.ErrInvalidPDF, err)
	}
	box, err := doc.MediaBox(dm.Page)
	if err != nil {
		return nil, err
	}
	size := geometry.SizeOf(box)
	if r := dm.Rect(); !r.Size().Valid() || !r.Inside(size) {
		return nil, fmt.Errorf("%w: digital mark outside page %d", export.ErrInvalidManifest, dm.Page)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("signing throttled: %w", err)
		}
	}
	if err := s.CheckJava(ctx); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(s.cfg.TempDir, "pdfmark-sign-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	certPath, keyPath, err := s.credentials(dir)
	if err != nil {
		return nil, err
	}
	info, err := ReadCertificateInfo(certPath)
	if err != nil {
		return nil, err
	}

	source := filepath.Join(dir, "input.pdf")
	destination := filepath.Join(dir, "signed.pdf")
	if err := os.WriteFile(source, req.PDF, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write input PDF: %w", err)
	}

	inv := Invocation{
		Jar:         s.cfg.Jar,
		Source:      source,
		Destination: destination,
		Certificate: certPath,
		Key:         keyPath,
		Page:        dm.Page,
		Rect:        dm.Rect().ToPDF(box),
		Name:        SignerName(req.StaffName, req.StaffNumber),
		Reason:      firstOf(req.Reason, s.cfg.Reason, DefaultReason),
		Location:    firstOf(req.Location, s.cfg.Location, DefaultLocation),
		Encrypt:     req.Finalise,
		Password:    req.Password,
	}
	if req.IncludeTimestamp {
		inv.TSA = firstOf(s.cfg.TSA, DefaultTSA)
	}

	args := inv.Args()
	out, err := s.runner.Run(ctx, s.cfg.Java, args...)
	if err != nil {
		return nil, &CommandError{Name: s.cfg.Java, Args: args, Output: out, Err: err}
	}

	signed, err := os.ReadFile(destination)
	if err != nil {
		return nil, fmt.Errorf("output file was not created: %w", err)
	}

	now := s.now()
	return &Result{
		PDF:             signed,
		FileName:        "digitally_signed_" + now.Format("20060102_150405") + ".pdf",
		CertificateInfo: *info,
		SignatureDetails: SignatureDetails{
			StaffName:   req.StaffName,
			StaffNumber: req.StaffNumber,
			CompanyName: firstOf(req.CompanyName, s.cfg.CompanyName, DefaultCompanyName),
			Timestamp:   now.Format("2006-01-02 15:04:05"),
			Page:        dm.Page,
			Position:    Position{X: dm.X, Y: dm.Y},
		},
	}, nil
}

func (r Request) validate() error {
	switch {
	case len(r.PDF) == 0:
		return fmt.Errorf("%w: pdf", ErrMissingField)
	case strings.TrimSpace(r.StaffName) == "":
		return fmt.Errorf("%w: staffName", ErrMissingField)
	case strings.TrimSpace(r.StaffNumber) == "":
		return fmt.Errorf("%w: staffNumber", ErrMissingField)
	case r.Manifest == nil:
		return fmt.Errorf("%w: marks", ErrMissingField)
	}
	return nil
}

// credentials returns the certificate and key files passed to the tool.
// A keystore is unpacked into dir.
func (s *Signer) credentials(dir string) (cert, key string, err error) {
	if s.cfg.Keystore != "" {
		certPEM, keyPEM, err := LoadKeystore(s.cfg.Keystore, s.cfg.KeystorePassword)
		if err != nil {
			return "", "", err
		}
		cert, key = filepath.Join(dir, "cert.pem"), filepath.Join(dir, "key.pem")
		if err := os.WriteFile(cert, certPEM, 0o600); err != nil {
			return "", "", fmt.Errorf("failed to write certificate: %w", err)
		}
		if err := os.WriteFile(key, keyPEM, 0o600); err != nil {
			return "", "", fmt.Errorf("failed to write key: %w", err)
		}
		return cert, key, nil
	}

	if _, err := os.Stat(s.cfg.Certificate); err != nil {
		return "", "", fmt.Errorf("certificate not found at: %s: %w", s.cfg.Certificate, err)
	}
	if _, err := os.Stat(s.cfg.Key); err != nil {
		return "", "", fmt.Errorf("private key not found at: %s: %w", s.cfg.Key, err)
	}
	return s.cfg.Certificate, s.cfg.Key, nil
}

// SignerName is the name recorded in the signature.
func SignerName(staffName, staffNumber string) string {
	return fmt.Sprintf("%s (ID: %s)", strings.TrimSpace(staffName), strings.TrimSpace(staffNumber))
}

// Invocation is one run of the signing tool.
type Invocation struct {
	Jar         string
	Source      string
	Destination string
	Certificate string
	Key         string
	Page        int
	Rect        rect.Rect // Signature rectangle in PDF user space
	Name        string
	Reason      string
	Location    string
	TSA         string
	Encrypt     bool
	Password    string
}

// Args returns the java arguments of the invocation. Coordinates are
// rounded to whole points.
func (inv Invocation) Args() []string {
	args := []string{
		"-jar", inv.Jar, "sign",
		"--source", inv.Source,
		"--destination", inv.Destination,
		"--certificate", inv.Certificate,
		"--key", inv.Key,
		"--page", strconv.Itoa(inv.Page),
		"--llx", coord(inv.Rect.LLx),
		"--lly", coord(inv.Rect.LLy),
		"--urx", coord(inv.Rect.URx),
		"--ury", coord(inv.Rect.URy),
		"--name", inv.Name,
		"--reason", inv.Reason,
		"--location", inv.Location,
	}
	if inv.TSA != "" {
		args = append(args, "--tsa", inv.TSA)
	}
	if inv.Encrypt {
		args = append(args, "--encrypt")
		if inv.Password != "" {
			args = append(args, "--password", inv.Password)
		}
	}
	return args
}

func coord(v float64) string {
	return strconv.Itoa(int(math.Round(v)))
}

func firstOf(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
