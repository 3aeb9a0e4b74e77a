package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gomlx/go-huggingface/tokenizers/api"
	"golang.org/x/text/unicode/norm"
)

// metaspace marks a word boundary in sentencepiece vocabularies.
const metaspace = "▁"

// unkPenalty is subtracted from the lowest piece score to price unknown runes.
const unkPenalty = 10.0

var _ api.Tokenizer = (*Unigram)(nil)

// Unigram is a sentencepiece Unigram tokenizer read from the "model" section
// of tokenizer.json. It needs no network and no native library.
type Unigram struct {
	pieces   []string
	scores   []float64
	index    map[string]int
	maxRunes int
	unkID    int
	unkScore float64
	specials map[api.SpecialToken]int
}

type unigramPiece struct {
	Piece string
	Score float64
}

// UnmarshalJSON reads a [piece, score] pair.
func (p *unigramPiece) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("vocab entry %s: want [piece, score]", b)
	}
	if err := json.Unmarshal(raw[0], &p.Piece); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Score)
}

// LoadUnigram reads dir/tokenizer.json and, when present, dir/tokenizer_config.json
// for the names of the control tokens.
func LoadUnigram(dir string) (*Unigram, error) {
	f, err := os.Open(filepath.Join(dir, "tokenizer.json"))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	u, err := ParseUnigram(f)
	if err != nil {
		return nil, err
	}
	cfgPath := filepath.Join(dir, "tokenizer_config.json")
	if _, err := os.Stat(cfgPath); err == nil {
		cfg, err := api.ParseConfigFile(cfgPath)
		if err != nil {
			return nil, err
		}
		u.bindSpecials(cfg)
	}
	return u, nil
}

// ParseUnigram reads a tokenizer.json document whose model type is Unigram.
func ParseUnigram(r io.Reader) (*Unigram, error) {
	var doc struct {
		AddedTokens []addedToken `json:"added_tokens"`
		Model       struct {
			Type  string         `json:"type"`
			UnkID *int           `json:"unk_id"`
			Vocab []unigramPiece `json:"vocab"`
		} `json:"model"`
	}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse tokenizer.json: %w", err)
	}
	if doc.Model.Type != "Unigram" {
		return nil, fmt.Errorf("tokenizer model %q is not supported (want Unigram)", doc.Model.Type)
	}
	if len(doc.Model.Vocab) == 0 {
		return nil, errors.New("tokenizer.json has an empty vocab")
	}
	added := make(map[string]int, len(doc.AddedTokens))
	for _, t := range doc.AddedTokens {
		added[t.Content] = t.ID
	}
	n := len(doc.Model.Vocab)
	for _, t := range doc.AddedTokens {
		if t.ID >= n {
			n = t.ID + 1
		}
	}
	u := &Unigram{
		pieces: make([]string, n),
		scores: make([]float64, n),
		index:  make(map[string]int, len(doc.Model.Vocab)),
		unkID:  -1,
	}
	minScore := math.Inf(1)
	for id, p := range doc.Model.Vocab {
		u.pieces[id] = p.Piece
		u.scores[id] = p.Score
		if _, ok := added[p.Piece]; ok {
			// Control tokens never come out of segmentation.
			continue
		}
		u.index[p.Piece] = id
		if rc := utf8.RuneCountInString(p.Piece); rc > u.maxRunes {
			u.maxRunes = rc
		}
		if p.Score < minScore {
			minScore = p.Score
		}
	}
	for _, t := range doc.AddedTokens {
		u.pieces[t.ID] = t.Content
	}
	if doc.Model.UnkID != nil {
		u.unkID = *doc.Model.UnkID
	} else if id, ok := added[tokUNK]; ok {
		u.unkID = id
	}
	if u.unkID < 0 || u.unkID >= n {
		return nil, errors.New("tokenizer.json has no unknown token")
	}
	if math.IsInf(minScore, 1) {
		minScore = 0
	}
	u.unkScore = minScore - unkPenalty
	u.specials = map[api.SpecialToken]int{api.TokUnknown: u.unkID}
	for tok, content := range map[api.SpecialToken]string{
		api.TokBeginningOfSentence: tokBOS,
		api.TokEndOfSentence:       tokEOS,
		api.TokPad:                 tokPAD,
		api.TokMask:                "<mask>",
	} {
		if id, ok := added[content]; ok {
			u.specials[tok] = id
		}
	}
	return u, nil
}

func (u *Unigram) bindSpecials(cfg *api.Config) {
	for tok, content := range map[api.SpecialToken]string{
		api.TokBeginningOfSentence: cfg.BosToken,
		api.TokEndOfSentence:       cfg.EosToken,
		api.TokUnknown:             cfg.UnkToken,
		api.TokPad:                 cfg.PadToken,
		api.TokMask:                cfg.MaskToken,
		api.TokClassification:      cfg.ClsToken,
	} {
		if content == "" {
			continue
		}
		for id, p := range u.pieces {
			if p == content {
				u.specials[tok] = id
				break
			}
		}
	}
}

// SpecialTokenID returns the id of a control token.
func (u *Unigram) SpecialTokenID(tok api.SpecialToken) (int, error) {
	if id, ok := u.specials[tok]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("special token %s not registered", tok)
}

// VocabSize is the number of ids, added tokens included.
func (u *Unigram) VocabSize() int { return len(u.pieces) }

// normalizeUnigram applies NFKC, collapses whitespace runs and marks word
// boundaries with the metaspace, prefixing the first word.
func normalizeUnigram(text string) string {
	s := strings.Join(strings.Fields(norm.NFKC.String(text)), " ")
	if s == "" {
		return ""
	}
	return metaspace + strings.ReplaceAll(s, " ", metaspace)
}

// Encode segments text into the highest scoring piece sequence.
func (u *Unigram) Encode(text string) []int {
	s := normalizeUnigram(text)
	if s == "" {
		return nil
	}
	var ids []int
	for _, w := range splitWords(s) {
		ids = append(ids, u.segment(w)...)
	}
	return ids
}

// splitWords cuts s before every metaspace.
func splitWords(s string) []string {
	var words []string
	for len(s) > 0 {
		i := strings.Index(s[len(metaspace):], metaspace)
		if i < 0 {
			words = append(words, s)
			break
		}
		cut := i + len(metaspace)
		words = append(words, s[:cut])
		s = s[cut:]
	}
	return words
}

// segment runs Viterbi over the runes of one word. Runes no piece covers
// become the unknown id; adjacent unknowns are fused.
func (u *Unigram) segment(word string) []int {
	runes := []rune(word)
	n := len(runes)
	best := make([]float64, n+1)
	prev := make([]int, n+1)
	tok := make([]int, n+1)
	for i := 1; i <= n; i++ {
		best[i] = math.Inf(-1)
	}
	for i := 0; i < n; i++ {
		if math.IsInf(best[i], -1) {
			continue
		}
		single := false
		for j := i + 1; j <= n && j-i <= u.maxRunes; j++ {
			id, ok := u.index[string(runes[i:j])]
			if !ok {
				continue
			}
			if j == i+1 {
				single = true
			}
			if sc := best[i] + u.scores[id]; sc > best[j] {
				best[j], prev[j], tok[j] = sc, i, id
			}
		}
		if !single {
			if sc := best[i] + u.unkScore; sc > best[i+1] {
				best[i+1], prev[i+1], tok[i+1] = sc, i, u.unkID
			}
		}
	}
	var rev []int
	for j := n; j > 0; j = prev[j] {
		if tok[j] == u.unkID && len(rev) > 0 && rev[len(rev)-1] == u.unkID {
			continue
		}
		rev = append(rev, tok[j])
	}
	out := make([]int, len(rev))
	for i, id := range rev {
		out[len(rev)-1-i] = id
	}
	return out
}

// Decode joins pieces and turns metaspaces back into spaces.
func (u *Unigram) Decode(ids []int) string {
	var b strings.Builder
	for _, id := range ids {
		if id < 0 || id >= len(u.pieces) {
			continue
		}
		b.WriteString(u.pieces[id])
	}
	s := strings.ReplaceAll(b.String(), metaspace, " ")
	return strings.TrimPrefix(s, " ")
}

// localTokenizer is the default TokenizerLoader.
func localTokenizer(dir string) (Tokenizer, error) {
	u, err := LoadUnigram(dir)
	if err != nil {
		return nil, err
	}
	return u, nil
}
