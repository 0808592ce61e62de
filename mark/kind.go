package mark

import "fmt"

// Kind identifies what a mark shows.
type Kind int

const (
	// Signature is a captured signature image.
	Signature Kind = iota
	// Initial is a captured initials image.
	Initial
	// Text is a free text label.
	Text
	// Digital is a placeholder for a certificate based digital signature.
	Digital
)

var kindNames = [...]string{
	Signature: "signature",
	Initial:   "initial",
	Text:      "text",
	Digital:   "digital",
}

// Kinds lists every kind in display order.
func Kinds() []Kind {
	return []Kind{Signature, Initial, Text, Digital}
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind parses the name of a kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("invalid mark type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("invalid mark type %d", int(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
