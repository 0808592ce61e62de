package session

import (
	"fmt"

	"github.com/digitorus/pdfmark/mark"
)

// Tool is the active interaction mode of a session.
type Tool int

const (
	// Signature places signature images.
	Signature Tool = iota
	// Initial places initials images.
	Initial
	// Text places text labels.
	Text
	// DigitalMarker places digital signature markers.
	DigitalMarker
	// Move selects and drags existing marks.
	Move
)

var toolNames = [...]string{
	Signature:     "signature",
	Initial:       "initial",
	Text:          "text",
	DigitalMarker: "digital",
	Move:          "move",
}

func (t Tool) String() string {
	if !t.valid() {
		return fmt.Sprintf("Tool(%d)", int(t))
	}
	return toolNames[t]
}

func (t Tool) valid() bool {
	return t >= 0 && int(t) < len(toolNames)
}

// ParseTool parses the name of a tool.
func ParseTool(s string) (Tool, error) {
	for t, name := range toolNames {
		if name == s {
			return Tool(t), nil
		}
	}
	return 0, fmt.Errorf("invalid tool %q", s)
}

// Kind returns the kind of mark the tool creates. Move creates nothing.
func (t Tool) Kind() (mark.Kind, bool) {
	switch t {
	case Signature:
		return mark.Signature, true
	case Initial:
		return mark.Initial, true
	case Text:
		return mark.Text, true
	case DigitalMarker:
		return mark.Digital, true
	default:
		return 0, false
	}
}

// ToolFor returns the tool that creates marks of kind k.
func ToolFor(k mark.Kind) Tool {
	switch k {
	case mark.Initial:
		return Initial
	case mark.Text:
		return Text
	case mark.Digital:
		return DigitalMarker
	default:
		return Signature
	}
}
