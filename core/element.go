package core

// Element represents one item delivered to the chat transport for a turn.
// Concrete element types implement the unexported isElement marker enabling a
// closed set.
type Element interface{ isElement() }

// TextElement is a free-text message segment.
type TextElement struct {
	Text string `json:"text"`
}

func (TextElement) isElement() {}

// PayloadElement carries a schema-validated structured payload extracted from
// specialist output. Invalid or partial payloads are never wrapped in a
// PayloadElement; they stay free text.
type PayloadElement struct {
	Schedule *Schedule `json:"schedule"`
}

func (PayloadElement) isElement() {}

// ElementText returns the text of a TextElement or "" for other kinds.
func ElementText(e Element) string {
	if t, ok := e.(TextElement); ok {
		return t.Text
	}
	return ""
}
