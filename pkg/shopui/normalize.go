package shopui

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned, wrapped, when the data block is not a JSON object.
var ErrInvalidJSON = errors.New("shopui: text block is not a JSON object")

// Payload is the normalized form of a tool-call result.
type Payload struct {
	// Data is the first text block's content when it is a JSON object.
	Data json.RawMessage

	// TextIndex is the index of the block Data came from, or -1.
	TextIndex int

	// Resources are the resource blocks' payloads in result order.
	Resources []UIResource

	// Err records why the first text block yielded no Data. It is
	// informational; Resources are extracted regardless.
	Err error
}

// Usable reports whether the result carried anything to display.
func (p Payload) Usable() bool {
	return p.Data != nil || len(p.Resources) > 0
}

// Normalize extracts the JSON data block and the resource blocks from a
// result sequence. Only the first text block is considered for data.
func Normalize(blocks []ResultBlock) Payload {
	p := Payload{TextIndex: -1, Resources: []UIResource{}}
	seenText := false
	for i, b := range blocks {
		switch b.Type {
		case BlockText:
			if seenText {
				continue
			}
			seenText = true
			if !gjson.Valid(b.Text) || !gjson.Parse(b.Text).IsObject() {
				p.Err = fmt.Errorf("%w: block %d", ErrInvalidJSON, i)
				continue
			}
			p.Data = json.RawMessage(b.Text)
			p.TextIndex = i
		case BlockResource:
			if b.Resource != nil {
				p.Resources = append(p.Resources, *b.Resource)
			}
		}
	}
	return p
}
