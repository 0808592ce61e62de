// Package testpdf builds PDF fixtures for tests: plain multi-page documents
// and documents carrying a detached CMS signature.
package testpdf

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"github.com/digitorus/pkcs7"

	"github.com/digitorus/pdfmark/geometry"
)

// Pages returns a PDF with one page per size. Each page shows its number.
func Pages(sizes ...geometry.Size) ([]byte, error) {
	if len(sizes) == 0 {
		sizes = []geometry.Size{geometry.A4}
	}
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: sizes[0].Width, Ht: sizes[0].Height},
	})
	pdf.SetTitle("Test document", true)
	pdf.SetAuthor("pdfmark", true)
	pdf.SetKeywords("test, fixture", true)
	pdf.SetAutoPageBreak(false, 0)

	for i, s := range sizes {
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: s.Width, Ht: s.Height})
		pdf.SetFont("Helvetica", "", 24)
		pdf.Text(40, 60, fmt.Sprintf("Page %d", i+1))
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to build test PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// MustPages is Pages for tests.
func MustPages(t testing.TB, sizes ...geometry.Size) []byte {
	t.Helper()
	data, err := Pages(sizes...)
	if err != nil {
		t.Fatalf("%v", err)
	}
	return data
}

// WriteFile writes data into a file in a test temporary directory and
// returns its path.
func WriteFile(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// Credentials is a self-signed signing certificate and its key.
type Credentials struct {
	Key  crypto.Signer
	Cert *x509.Certificate
}

// IssueSelfSigned returns a fresh P-256 self-signed certificate for commonName.
func IssueSelfSigned(t testing.TB, commonName string) *Credentials {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	serialNumber, _ := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName:   commonName,
			Organization: []string{"pdfmark Test Org"},
		},
		NotBefore: time.Now().Add(-1 * time.Hour),
		NotAfter:  time.Now().Add(1 * time.Hour),
		KeyUsage:  x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("failed to parse certificate: %v", err)
	}
	return &Credentials{Key: key, Cert: cert}
}

// PEM returns the certificate and the PKCS#8 key in PEM form.
func (c *Credentials) PEM(t testing.TB) (certPEM, keyPEM []byte) {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(c.Key)
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.Cert.Raw})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	return certPEM, keyPEM
}

// Signed returns a one page A4 PDF with an approval signature by c, made at
// signingTime.
func Signed(t testing.TB, c *Credentials, signerName string, signingTime time.Time) []byte {
	t.Helper()

	sd, err := pkcs7.NewSignedData([]byte("pdfmark test content"))
	if err != nil {
		t.Fatalf("new signed data: %v", err)
	}
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	if err := sd.AddSigner(c.Cert, c.Key, pkcs7.SignerInfoConfig{}); err != nil {
		t.Fatalf("add signer: %v", err)
	}
	sd.Detach()
	cms, err := sd.Finish()
	if err != nil {
		t.Fatalf("finish signed data: %v", err)
	}

	date := signingTime.UTC().Format("D:20060102150405") + "+00'00'"
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [4 0 R] /SigFlags 3 >> >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 595 842] >>",
		"<< /Type /Page /Parent 2 0 R /Annots [4 0 R] >>",
		"<< /Type /Annot /Subtype /Widget /FT /Sig /T (Signature1) /Rect [0 0 0 0] /P 3 0 R /V 5 0 R >>",
		fmt.Sprintf("<< /Type /Sig /Filter /Adobe.PPKLite /SubFilter /adbe.pkcs7.detached /Name (%s) /M (%s) /ByteRange [0 0 0 0] /Contents <%s> >>",
			escape(signerName), date, hex.EncodeToString(cms)),
	}
	return assemble(objects)
}

// assemble writes objects numbered from 1 with a classic cross-reference
// table. Object 1 is the catalog.
func assemble(objects []string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
