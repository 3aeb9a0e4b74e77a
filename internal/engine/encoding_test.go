package engine

import (
	"reflect"
	"strings"
	"testing"
)

func testSpecials(t *testing.T) SpecialTokens {
	t.Helper()
	st, err := ParseSpecialTokens(strings.NewReader(testTokenizerJSON))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return st
}

func TestEncode_Frame(t *testing.T) {
	st := testSpecials(t)
	tok := newWordTokenizer()
	enc := Encode(tok, st, "a b c", idSiLK, 128)
	want := []int{idSiLK, 1000, 1001, 1002, idEOS}
	if !reflect.DeepEqual(enc.InputIDs, want) {
		t.Fatalf("ids=%v want %v", enc.InputIDs, want)
	}
	if !reflect.DeepEqual(enc.AttentionMask, []int{1, 1, 1, 1, 1}) {
		t.Fatalf("mask=%v", enc.AttentionMask)
	}
}

func TestEncode_StripsTokenizerFraming(t *testing.T) {
	st := testSpecials(t)
	tok := newWordTokenizer()
	tok.frame = true
	enc := Encode(tok, st, "a b", idSiLK, 128)
	if !reflect.DeepEqual(enc.InputIDs, []int{idSiLK, 1000, 1001, idEOS}) {
		t.Fatalf("ids=%v", enc.InputIDs)
	}
}

func TestEncode_Truncates(t *testing.T) {
	st := testSpecials(t)
	tok := newWordTokenizer()
	enc := Encode(tok, st, strings.Repeat("w ", 500), idSiLK, 128)
	if enc.Len() != 128 || len(enc.AttentionMask) != 128 {
		t.Fatalf("len=%d mask=%d", enc.Len(), len(enc.AttentionMask))
	}
	if enc.InputIDs[0] != idSiLK || enc.InputIDs[127] != idEOS {
		t.Fatalf("frame lost after truncation: first=%d last=%d", enc.InputIDs[0], enc.InputIDs[127])
	}
}

func TestEncode_Empty(t *testing.T) {
	st := testSpecials(t)
	enc := Encode(newWordTokenizer(), st, "", idSiLK, 128)
	if !reflect.DeepEqual(enc.InputIDs, []int{idSiLK, idEOS}) {
		t.Fatalf("ids=%v", enc.InputIDs)
	}
}

func TestPadBatch(t *testing.T) {
	encs := []Encoding{
		{InputIDs: []int{100, 5, 2}, AttentionMask: []int{1, 1, 1}},
		{InputIDs: []int{100, 2}, AttentionMask: []int{1, 1}},
	}
	out := PadBatch(encs, idPAD)
	if !reflect.DeepEqual(out[1].InputIDs, []int{100, 2, idPAD}) || !reflect.DeepEqual(out[1].AttentionMask, []int{1, 1, 0}) {
		t.Fatalf("padded=%+v", out[1])
	}
	if !reflect.DeepEqual(out[0].InputIDs, encs[0].InputIDs) {
		t.Fatalf("longest changed: %+v", out[0])
	}
	if len(encs[1].InputIDs) != 2 {
		t.Fatalf("input mutated")
	}
}

func TestDecode_SkipsSpecials(t *testing.T) {
	st := testSpecials(t)
	tok := newWordTokenizer()
	ids := tok.Encode("hello world")
	gen := append([]int{idEOS, idEnXX}, ids...)
	gen = append(gen, idPAD, idEOS, idBOS, idSiLK)
	if got := Decode(tok, st, gen); got != "hello world" {
		t.Fatalf("got %q", got)
	}
	if got := Decode(tok, st, []int{idEOS, idEnXX, idEOS}); got != "" {
		t.Fatalf("only specials should decode to empty, got %q", got)
	}
}
