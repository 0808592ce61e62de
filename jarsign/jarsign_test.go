package jarsign

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"seehuhn.de/go/geom/rect"

	"github.com/digitorus/pdfmark/export"
	"github.com/digitorus/pdfmark/flatten"
	"github.com/digitorus/pdfmark/geometry"
	"github.com/digitorus/pdfmark/internal/testpdf"
	"github.com/digitorus/pdfmark/mark"
	"github.com/digitorus/pdfmark/session"
)

type fakeRunner struct {
	calls   [][]string
	noJava  bool
	jarErr  error
	noWrite bool
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if len(args) == 1 && args[0] == "-version" {
		if f.noJava {
			return nil, errors.New(`exec: "java": executable file not found in $PATH`)
		}
		return []byte(`openjdk version "17.0.2" 2022-01-18`), nil
	}
	if f.jarErr != nil {
		return []byte("signing tool exploded"), f.jarErr
	}
	if !f.noWrite {
		for i, a := range args {
			if a == "--destination" {
				if err := os.WriteFile(args[i+1], []byte("%PDF-1.7 signed"), 0o600); err != nil {
					return nil, err
				}
			}
		}
	}
	return []byte("ok"), nil
}

func (f *fakeRunner) jarCall() []string {
	for _, c := range f.calls {
		if len(c) > 1 && c[1] == "-jar" {
			return c
		}
	}
	return nil
}

func argValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func digitalManifest() *export.Manifest {
	return &export.Manifest{Marks: []export.Mark{
		{Type: mark.Text, Page: 1, X: 10, Y: 10, Width: 50, Height: 20, Text: "note", Color: "#000000", Opacity: 1},
		{
			Type: mark.Digital, Page: 1, X: 75, Y: 70, Width: 150, Height: 60,
			Color: "#000000", Opacity: 1,
			DigitalData: &export.DigitalData{StaffName: "Jane Smith", StaffNumber: "EMP-001"},
		},
	}}
}

func testConfig(t *testing.T) Config {
	t.Helper()
	creds := testpdf.IssueSelfSigned(t, "Example Corp Signing")
	certPEM, keyPEM := creds.PEM(t)
	dir := t.TempDir()
	cfg := Config{
		Jar:         "/opt/open-pdf-sign.jar",
		Certificate: filepath.Join(dir, "cert.pem"),
		Key:         filepath.Join(dir, "key.pem"),
		TempDir:     dir,
	}
	require.NoError(t, os.WriteFile(cfg.Certificate, certPEM, 0o600))
	require.NoError(t, os.WriteFile(cfg.Key, keyPEM, 0o600))
	return cfg
}

func TestInvocationArgs(t *testing.T) {
	box := geometry.PageBox(geometry.A4)
	inv := Invocation{
		Jar:         "open-pdf-sign.jar",
		Source:      "in.pdf",
		Destination: "out.pdf",
		Certificate: "cert.pem",
		Key:         "key.pem",
		Page:        1,
		Rect:        geometry.Rect{X: 75, Y: 70, Width: 150, Height: 60}.ToPDF(box),
		Name:        SignerName("Jane Smith", "EMP-001"),
		Reason:      DefaultReason,
		Location:    DefaultLocation,
	}
	want := []string{
		"-jar", "open-pdf-sign.jar", "sign",
		"--source", "in.pdf",
		"--destination", "out.pdf",
		"--certificate", "cert.pem",
		"--key", "key.pem",
		"--page", "1",
		"--llx", "75", "--lly", "712", "--urx", "225", "--ury", "772",
		"--name", "Jane Smith (ID: EMP-001)",
		"--reason", "Document signing",
		"--location", "Corporate Headquarters",
	}
	assert.Equal(t, want, inv.Args())

	inv.TSA = DefaultTSA
	inv.Encrypt = true
	inv.Password = "secret"
	got := inv.Args()
	assert.Equal(t, []string{"--tsa", DefaultTSA, "--encrypt", "--password", "secret"}, got[len(want):])

	inv.Password = ""
	assert.Equal(t, "--encrypt", inv.Args()[len(inv.Args())-1])
}

func TestInvocationRounding(t *testing.T) {
	inv := Invocation{Rect: rect.Rect{LLx: 10.4, LLy: 10.5, URx: 99.6, URy: 200.49}}
	args := inv.Args()
	assert.Equal(t, "10", argValue(args, "--llx"))
	assert.Equal(t, "11", argValue(args, "--lly"))
	assert.Equal(t, "100", argValue(args, "--urx"))
	assert.Equal(t, "200", argValue(args, "--ury"))
}

func TestSign(t *testing.T) {
	cfg := testConfig(t)
	cfg.CompanyName = "Example Corp"
	runner := &fakeRunner{}
	now := time.Date(2024, 3, 15, 10, 30, 5, 0, time.UTC)
	s := New(cfg, WithRunner(runner), WithClock(func() time.Time { return now }), WithLimiter(Throttle(60, 1)))

	res, err := s.Sign(context.Background(), Request{
		PDF:              testpdf.MustPages(t, geometry.A4),
		StaffName:        "Jane Smith",
		StaffNumber:      "EMP-001",
		Manifest:         digitalManifest(),
		Reason:           "Contract approval",
		IncludeTimestamp: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("%PDF-1.7 signed"), res.PDF)
	assert.Equal(t, "digitally_signed_20240315_103005.pdf", res.FileName)
	assert.Equal(t, SignatureDetails{
		StaffName:   "Jane Smith",
		StaffNumber: "EMP-001",
		CompanyName: "Example Corp",
		Timestamp:   "2024-03-15 10:30:05",
		Page:        1,
		Position:    Position{X: 75, Y: 70},
	}, res.SignatureDetails)
	assert.Contains(t, res.CertificateInfo.Subject, "Example Corp Signing")

	call := runner.jarCall()
	require.NotNil(t, call)
	assert.Equal(t, DefaultJava, call[0])
	args := call[1:]
	assert.Equal(t, "/opt/open-pdf-sign.jar", argValue(args, "-jar"))
	assert.Equal(t, "712", argValue(args, "--lly"))
	assert.Equal(t, "772", argValue(args, "--ury"))
	assert.Equal(t, "Jane Smith (ID: EMP-001)", argValue(args, "--name"))
	assert.Equal(t, "Contract approval", argValue(args, "--reason"))
	assert.Equal(t, DefaultLocation, argValue(args, "--location"))
	assert.Equal(t, DefaultTSA, argValue(args, "--tsa"))
	assert.Equal(t, cfg.Certificate, argValue(args, "--certificate"))

	_, err = os.Stat(argValue(args, "--source"))
	assert.True(t, os.IsNotExist(err), "temporary input was not removed")
}

func TestSignLetterPage(t *testing.T) {
	cfg := testConfig(t)
	runner := &fakeRunner{}
	m := digitalManifest()
	m.Marks[1].Page = 2

	_, err := New(cfg, WithRunner(runner)).Sign(context.Background(), Request{
		PDF:         testpdf.MustPages(t, geometry.A4, geometry.Letter),
		StaffName:   "Jane Smith",
		StaffNumber: "EMP-001",
		Manifest:    m,
	})
	require.NoError(t, err)

	args := runner.jarCall()[1:]
	assert.Equal(t, "2", argValue(args, "--page"))
	assert.Equal(t, "662", argValue(args, "--lly"), "792 - 70 - 60")
	assert.Equal(t, "722", argValue(args, "--ury"))
	assert.Empty(t, argValue(args, "--tsa"))
}

func TestSignErrors(t *testing.T) {
	cfg := testConfig(t)
	pdf := testpdf.MustPages(t, geometry.A4)
	valid := Request{PDF: pdf, StaffName: "Jane", StaffNumber: "1", Manifest: digitalManifest()}

	tests := []struct {
		name    string
		mutate  func(*Request, *Config, *fakeRunner)
		wantErr error
	}{
		{"missing staff name", func(r *Request, _ *Config, _ *fakeRunner) { r.StaffName = " " }, ErrMissingField},
		{"missing staff number", func(r *Request, _ *Config, _ *fakeRunner) { r.StaffNumber = "" }, ErrMissingField},
		{"missing marks", func(r *Request, _ *Config, _ *fakeRunner) { r.Manifest = nil }, ErrMissingField},
		{"missing pdf", func(r *Request, _ *Config, _ *fakeRunner) { r.PDF = nil }, ErrMissingField},
		{"invalid pdf", func(r *Request, _ *Config, _ *fakeRunner) { r.PDF = []byte("not a pdf") }, flatten.ErrInvalidPDF},
		{"no digital mark", func(r *Request, _ *Config, _ *fakeRunner) {
			r.Manifest = &export.Manifest{Marks: digitalManifest().Marks[:1]}
		}, ErrNoDigitalMark},
		{"digital mark on missing page", func(r *Request, _ *Config, _ *fakeRunner) {
			r.Manifest = digitalManifest()
			r.Manifest.Marks[1].Page = 4
		}, session.ErrInvalidPage},
		{"digital mark outside page", func(r *Request, _ *Config, _ *fakeRunner) {
			r.Manifest = digitalManifest()
			r.Manifest.Marks[1].X = 500
		}, export.ErrInvalidManifest},
		{"digital mark below letter page", func(r *Request, _ *Config, _ *fakeRunner) {
			r.PDF = testpdf.MustPages(t, geometry.A4, geometry.Letter)
			r.Manifest = digitalManifest()
			r.Manifest.Marks[1].Page = 2
			r.Manifest.Marks[1].Y = 760
		}, export.ErrInvalidManifest},
		{"java missing", func(_ *Request, _ *Config, f *fakeRunner) { f.noJava = true }, ErrJavaMissing},
		{"missing certificate", func(_ *Request, c *Config, _ *fakeRunner) { c.Certificate += ".missing" }, os.ErrNotExist},
		{"missing key", func(_ *Request, c *Config, _ *fakeRunner) { c.Key += ".missing" }, os.ErrNotExist},
		{"missing keystore", func(_ *Request, c *Config, _ *fakeRunner) { c.Keystore = "/nonexistent.p12" }, os.ErrNotExist},
		{"no output", func(_ *Request, _ *Config, f *fakeRunner) { f.noWrite = true }, os.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, c, runner := valid, cfg, &fakeRunner{}
			tt.mutate(&req, &c, runner)
			_, err := New(c, WithRunner(runner)).Sign(context.Background(), req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSignCommandError(t *testing.T) {
	cause := errors.New("exit status 1")
	runner := &fakeRunner{jarErr: cause}
	_, err := New(testConfig(t), WithRunner(runner)).Sign(context.Background(), Request{
		PDF:         testpdf.MustPages(t, geometry.A4),
		StaffName:   "Jane",
		StaffNumber: "1",
		Manifest:    digitalManifest(),
	})

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "signing tool exploded", string(cmdErr.Output))
	assert.Contains(t, err.Error(), "signing tool exploded")
}

func TestSignThrottled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	limiter := Throttle(1, 1)
	limiter.Allow() // Use up the burst.

	_, err := New(testConfig(t), WithRunner(&fakeRunner{}), WithLimiter(limiter)).Sign(ctx, Request{
		PDF:         testpdf.MustPages(t, geometry.A4),
		StaffName:   "Jane",
		StaffNumber: "1",
		Manifest:    digitalManifest(),
	})
	assert.Error(t, err)
}

func TestCheckJava(t *testing.T) {
	s := New(Config{}, WithRunner(&fakeRunner{}))
	assert.NoError(t, s.CheckJava(context.Background()))

	s = New(Config{}, WithRunner(&fakeRunner{noJava: true}))
	assert.ErrorIs(t, s.CheckJava(context.Background()), ErrJavaMissing)
}

func TestLoadKeystoreErrors(t *testing.T) {
	_, _, err := LoadKeystore(filepath.Join(t.TempDir(), "missing.p12"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := testpdf.WriteFile(t, "bad.p12", []byte("not a keystore"))
	_, _, err = LoadKeystore(path, "secret")
	assert.Error(t, err)
}

func TestReadCertificateInfo(t *testing.T) {
	cfg := testConfig(t)
	info, err := ReadCertificateInfo(cfg.Certificate)
	require.NoError(t, err)
	assert.Contains(t, info.Subject, "CN=Example Corp Signing")
	assert.Equal(t, info.Subject, info.Issuer)
	assert.NotEmpty(t, info.ValidFrom)

	_, err = ReadCertificateInfo(cfg.Key)
	assert.Error(t, err, "a key file holds no certificate")
}
