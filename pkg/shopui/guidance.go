package shopui

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// InstructionsKey is the field that carries guidance for the agent.
const InstructionsKey = "instructions"

// Augment returns a copy of data with InstructionsKey set to guidance.
// All other fields are kept as sent. It returns data unchanged and false when
// data is not a JSON object or guidance is empty. data is never modified.
func Augment(data []byte, guidance string) ([]byte, bool) {
	if guidance == "" || len(data) == 0 || !gjson.ValidBytes(data) {
		return data, false
	}
	if !gjson.ParseBytes(data).IsObject() {
		return data, false
	}
	out, err := sjson.SetBytes(data, InstructionsKey, guidance)
	if err != nil {
		return data, false
	}
	return out, true
}

// WithText returns a copy of blocks with the text of block idx replaced.
// Out-of-range indexes and non-text blocks leave the copy untouched.
func WithText(blocks []ResultBlock, idx int, text string) []ResultBlock {
	out := make([]ResultBlock, len(blocks))
	copy(out, blocks)
	if idx >= 0 && idx < len(out) && out[idx].Type == BlockText {
		out[idx].Text = text
	}
	return out
}
