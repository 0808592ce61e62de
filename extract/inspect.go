package extract

import (
	"encoding/asn1"
	"errors"
	"fmt"
	"time"

	"github.com/digitorus/pkcs7"
	"github.com/digitorus/timestamp"
)

// ErrNoContents is returned by Inspect for a signature dictionary without a
// CMS envelope.
var ErrNoContents = errors.New("signature has no contents")

// oidTimeStampToken is the RFC 3161 id-aa-timeStampToken attribute.
var oidTimeStampToken = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 14}

// Info summarizes a signature found in a document.
type Info struct {
	Field        string    `json:"field"`
	Name         string    `json:"name"`
	Filter       string    `json:"filter"`
	SubFilter    string    `json:"sub_filter"`
	Signer       string    `json:"signer"`
	Issuer       string    `json:"issuer"`
	SerialNumber string    `json:"serial_number"`
	SigningTime  time.Time `json:"signing_time"`
	Timestamp    time.Time `json:"timestamp"`
	Covered      int64     `json:"covered"`
}

// HasTimestamp reports whether the signature embeds a timestamp token.
func (i *Info) HasTimestamp() bool {
	return !i.Timestamp.IsZero()
}

// Inspect decodes the CMS envelope of sig and reports who signed and when.
// The cryptographic signature is not verified.
func Inspect(sig *Signature) (*Info, error) {
	info := &Info{
		Field:     sig.Field,
		Name:      sig.Name(),
		Filter:    sig.Filter(),
		SubFilter: sig.SubFilter(),
	}
	info.SigningTime, _ = parseDate(sig.Obj.Key("M").Text())

	ranges := sig.ByteRange()
	for i := 1; i < len(ranges); i += 2 {
		info.Covered += ranges[i]
	}

	contents := sig.Contents()
	if len(contents) == 0 {
		return nil, ErrNoContents
	}
	p7, err := pkcs7.Parse(contents)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signature: %w", err)
	}

	if cert := p7.GetOnlySigner(); cert != nil {
		info.Signer = cert.Subject.CommonName
		info.Issuer = cert.Issuer.CommonName
		info.SerialNumber = cert.SerialNumber.String()
	}

	for _, s := range p7.Signers {
		for _, attr := range s.UnauthenticatedAttributes {
			if !attr.Type.Equal(oidTimeStampToken) {
				continue
			}
			ts, err := timestamp.Parse(attr.Value.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse timestamp: %w", err)
			}
			info.Timestamp = ts.Time
		}
	}
	return info, nil
}

// parseDate reads the signing time entry of a signature dictionary.
func parseDate(v string) (time.Time, error) {
	layouts := []string{
		"D:20060102150405Z07'00'",
		"D:20060102150405Z07'00",
		"D:20060102150405Z",
		"D:20060102150405",
	}
	var err error
	for _, layout := range layouts {
		var t time.Time
		if t, err = time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
