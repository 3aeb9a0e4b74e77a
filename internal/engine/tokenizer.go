package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Tokenizer converts between text and subword ids. The subword algorithm
// itself belongs to the tokenizer implementation.
type Tokenizer interface {
	Encode(text string) []int
	Decode(ids []int) string
}

// TokenizerLoader builds the tokenizer from the resolved tokenizer directory.
// The default reads the Unigram model of dir/tokenizer.json.
type TokenizerLoader func(dir string) (Tokenizer, error)

// Well-known special token strings of the mBART family.
const (
	tokBOS = "<s>"
	tokEOS = "</s>"
	tokPAD = "<pad>"
	tokUNK = "<unk>"
)

// SpecialTokens is the added-token table of tokenizer.json: language codes
// and control tokens. Every entry is skipped when decoding.
type SpecialTokens struct {
	byContent map[string]int
	ids       map[int]struct{}
	BOS       int
	EOS       int
	PAD       int
	UNK       int
}

type addedToken struct {
	ID      int    `json:"id"`
	Content string `json:"content"`
	Special bool   `json:"special"`
}

// ParseSpecialTokens reads the added_tokens section of a tokenizer.json document.
func ParseSpecialTokens(r io.Reader) (SpecialTokens, error) {
	var doc struct {
		AddedTokens []addedToken `json:"added_tokens"`
	}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return SpecialTokens{}, fmt.Errorf("parse tokenizer.json: %w", err)
	}
	st := SpecialTokens{
		byContent: make(map[string]int, len(doc.AddedTokens)),
		ids:       make(map[int]struct{}, len(doc.AddedTokens)),
	}
	for _, t := range doc.AddedTokens {
		st.byContent[t.Content] = t.ID
		st.ids[t.ID] = struct{}{}
	}
	st.BOS = st.lookup(tokBOS)
	st.EOS = st.lookup(tokEOS)
	st.PAD = st.lookup(tokPAD)
	st.UNK = st.lookup(tokUNK)
	return st, nil
}

// LoadSpecialTokens reads dir/tokenizer.json.
func LoadSpecialTokens(dir string) (SpecialTokens, error) {
	f, err := os.Open(filepath.Join(dir, "tokenizer.json"))
	if err != nil {
		return SpecialTokens{}, err
	}
	defer f.Close()
	return ParseSpecialTokens(f)
}

func (s SpecialTokens) lookup(content string) int {
	if id, ok := s.byContent[content]; ok {
		return id
	}
	return -1
}

// ID returns the id of a special token such as a language code.
func (s SpecialTokens) ID(content string) (int, bool) {
	id, ok := s.byContent[content]
	return id, ok
}

// IsSpecial reports whether id must be skipped when decoding.
func (s SpecialTokens) IsSpecial(id int) bool {
	_, ok := s.ids[id]
	return ok
}

// Len is the number of special tokens.
func (s SpecialTokens) Len() int { return len(s.ids) }
