package engine

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/gomlx/go-huggingface/tokenizers/api"
)

func loadTestUnigram(t *testing.T) *Unigram {
	t.Helper()
	tokDir, _ := writeArtifacts(t, testBase)
	u, err := LoadUnigram(tokDir)
	if err != nil {
		t.Fatalf("LoadUnigram: %v", err)
	}
	return u
}

func TestUnigram_Encode(t *testing.T) {
	u := loadTestUnigram(t)
	cases := []struct {
		in   string
		want []int
	}{
		{"hello world", []int{idHello, idWorld}},
		{"  hello \t world ", []int{idHello, idWorld}},
		// full-width letters fold under NFKC
		{"ｈｅｌｌｏ", []int{idHello}},
		// uncovered runes fuse into one unknown
		{"hello xyz", []int{idHello, idSpace, idUNK}},
		{"", nil},
	}
	for _, c := range cases {
		if got := u.Encode(c.in); !reflect.DeepEqual(got, c.want) {
			t.Fatalf("Encode(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestUnigram_PrefersHigherScore(t *testing.T) {
	u := loadTestUnigram(t)
	// ▁hello (-3) beats ▁hel + lo (-8)
	if got := u.Encode("hello"); len(got) != 1 || got[0] != idHello {
		t.Fatalf("got %v", got)
	}
	// ▁hello + lo (-7) beats ▁hel + lo + lo (-12)
	if got := u.Encode("hellolo"); !reflect.DeepEqual(got, []int{idHello, 7}) {
		t.Fatalf("got %v", got)
	}
}

func TestUnigram_ControlTokensNotMatched(t *testing.T) {
	u := loadTestUnigram(t)
	for _, id := range u.Encode("<s>") {
		if id == idBOS {
			t.Fatalf("<s> in text segmented as a control token")
		}
	}
}

func TestUnigram_Decode(t *testing.T) {
	u := loadTestUnigram(t)
	if got := u.Decode([]int{idHello, idWorld}); got != "hello world" {
		t.Fatalf("decode=%q", got)
	}
	if got := u.Decode([]int{idHello, 9999, -1}); got != "hello" {
		t.Fatalf("out of range ids: %q", got)
	}
	if got := u.Decode([]int{idEnXX}); got != "en_XX" {
		t.Fatalf("added token: %q", got)
	}
	if u.VocabSize() != idEnXX+1 {
		t.Fatalf("vocab size %d", u.VocabSize())
	}
}

func TestUnigram_SpecialTokenID(t *testing.T) {
	u := loadTestUnigram(t)
	for tok, want := range map[api.SpecialToken]int{
		api.TokBeginningOfSentence: idBOS,
		api.TokEndOfSentence:       idEOS,
		api.TokPad:                 idPAD,
		api.TokUnknown:             idUNK,
	} {
		if id, err := u.SpecialTokenID(tok); err != nil || id != want {
			t.Fatalf("%s: id=%d err=%v", tok, id, err)
		}
	}
	if _, err := u.SpecialTokenID(api.TokMask); err == nil {
		t.Fatalf("mask should be unregistered")
	}
}

func TestLoadUnigram_TokenizerConfig(t *testing.T) {
	tokDir, _ := writeArtifacts(t, testBase)
	cfg := `{"tokenizer_class":"MBart50Tokenizer","cls_token":"<s>","mask_token":"<mask>","unk_token":"<unk>"}`
	if err := os.WriteFile(filepath.Join(tokDir, "tokenizer_config.json"), []byte(cfg), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	u, err := LoadUnigram(tokDir)
	if err != nil {
		t.Fatalf("LoadUnigram: %v", err)
	}
	if id, err := u.SpecialTokenID(api.TokClassification); err != nil || id != idBOS {
		t.Fatalf("cls: id=%d err=%v", id, err)
	}
	if _, err := u.SpecialTokenID(api.TokMask); err == nil {
		t.Fatalf("mask not in vocab should stay unregistered")
	}

	if err := os.WriteFile(filepath.Join(tokDir, "tokenizer_config.json"), []byte(`{`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadUnigram(tokDir); err == nil {
		t.Fatalf("expected error for malformed tokenizer_config.json")
	}
}

func TestParseUnigram_Rejects(t *testing.T) {
	cases := map[string]string{
		"bpe":       `{"model":{"type":"BPE","vocab":{"a":0}}}`,
		"empty":     `{"model":{"type":"Unigram","vocab":[]}}`,
		"no unk":    `{"model":{"type":"Unigram","vocab":[["a",-1.0]]}}`,
		"bad entry": `{"model":{"type":"Unigram","vocab":[["a"]]}}`,
		"bad json":  `{`,
	}
	for name, doc := range cases {
		if _, err := ParseUnigram(strings.NewReader(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := LoadUnigram(t.TempDir()); err == nil {
		t.Fatalf("expected error for missing tokenizer.json")
	}
}

// The default loader reads the local tokenizer.json; a network-free load and
// translation must succeed.
func TestEngine_DefaultTokenizerLoader(t *testing.T) {
	ad := &echoAdapter{}
	e := newLoadedEngine(t, ad, func(c *Config) {
		c.TokenizerLoader = nil
	})
	out, err := e.Translate(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "hello world" {
		t.Fatalf("out=%q", out)
	}
	ad.mu.Lock()
	ids := ad.lastEnc.InputIDs
	ad.mu.Unlock()
	if want := []int{idSiLK, idHello, idWorld, idEOS}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("input ids %v want %v", ids, want)
	}
}
