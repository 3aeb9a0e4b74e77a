package engine

import "strings"

// Encoding is a framed model input.
type Encoding struct {
	// Text is the normalized source text; backends that tokenize themselves use it.
	Text          string
	InputIDs      []int
	AttentionMask []int
}

// Len is the number of positions, padding included.
func (e Encoding) Len() int { return len(e.InputIDs) }

// Encode frames text for the seq2seq encoder as [src_lang] tokens [eos],
// truncating the subword tokens so the total never exceeds maxLen.
func Encode(tok Tokenizer, st SpecialTokens, text string, srcLangID, maxLen int) Encoding {
	raw := tok.Encode(text)
	content := make([]int, 0, len(raw))
	for _, id := range raw {
		// The tokenizer may add its own framing; it is rebuilt below.
		if st.IsSpecial(id) && id != st.UNK {
			continue
		}
		content = append(content, id)
	}
	room := maxLen - 2
	if room < 0 {
		room = 0
	}
	if len(content) > room {
		content = content[:room]
	}
	ids := make([]int, 0, len(content)+2)
	ids = append(ids, srcLangID)
	ids = append(ids, content...)
	ids = append(ids, st.EOS)
	mask := make([]int, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	return Encoding{Text: text, InputIDs: ids, AttentionMask: mask}
}

// PadBatch right-pads every encoding to the longest one, masking pad positions.
func PadBatch(encs []Encoding, padID int) []Encoding {
	longest := 0
	for _, e := range encs {
		if e.Len() > longest {
			longest = e.Len()
		}
	}
	out := make([]Encoding, len(encs))
	for i, e := range encs {
		ids := append(make([]int, 0, longest), e.InputIDs...)
		mask := append(make([]int, 0, longest), e.AttentionMask...)
		for len(ids) < longest {
			ids = append(ids, padID)
			mask = append(mask, 0)
		}
		out[i] = Encoding{Text: e.Text, InputIDs: ids, AttentionMask: mask}
	}
	return out
}

// Decode converts generated ids to text, skipping every special token.
func Decode(tok Tokenizer, st SpecialTokens, ids []int) string {
	kept := make([]int, 0, len(ids))
	for _, id := range ids {
		if st.IsSpecial(id) {
			continue
		}
		kept = append(kept, id)
	}
	if len(kept) == 0 {
		return ""
	}
	return strings.TrimSpace(tok.Decode(kept))
}
