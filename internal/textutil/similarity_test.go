package textutil

import (
	"math"
	"testing"
)

func TestCosineSimilarityNil(t *testing.T) {
	tests := []struct {
		name string
		a    *Fingerprint
		b    *Fingerprint
		want float64
	}{
		{"both nil", nil, nil, 0},
		{"a nil", nil, NewFingerprint("hello world"), 0},
		{"b nil", NewFingerprint("hello world"), nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if got != tt.want {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineSimilarityIdentical(t *testing.T) {
	text := "焼肉 ジャンボ 白金店"
	got := CosineSimilarity(NewFingerprint(text), NewFingerprint(text))
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("CosineSimilarity(identical) = %v, want 1.0", got)
	}
}

func TestCosineSimilarityDifferent(t *testing.T) {
	a := NewFingerprint("cafe kitsune")
	b := NewFingerprint("ramen jiro")
	if got := CosineSimilarity(a, b); got != 0 {
		t.Errorf("CosineSimilarity(different) = %v, want 0", got)
	}
}

func TestCosineSimilarityZeroNorm(t *testing.T) {
	a := &Fingerprint{tokens: map[string]float64{}, norm: 0}
	b := NewFingerprint("hello world")
	if got := CosineSimilarity(a, b); got != 0 {
		t.Errorf("CosineSimilarity(zero norm) = %v, want 0", got)
	}
}

func TestSimilarityBranchNames(t *testing.T) {
	same := Similarity("焼肉ジャンボ 白金店", "焼肉ジャンボ白金店")
	if same != 1 {
		t.Fatalf("expected identical keys to score 1, got %v", same)
	}
	close := Similarity("焼肉ジャンボ 白金店", "焼肉ジャンボ 本郷店")
	if close <= 0.5 || close >= 1 {
		t.Fatalf("expected branch names to be similar, got %v", close)
	}
	far := Similarity("焼肉ジャンボ", "スターバックス")
	if far != 0 {
		t.Fatalf("expected unrelated names to score 0, got %v", far)
	}
	if Similarity("", "anything") != 0 {
		t.Fatal("expected empty input to score 0")
	}
}

func TestNewFingerprintNormCalculation(t *testing.T) {
	// "hello hello world" -> hello:2, world:1
	fp := NewFingerprint("hello hello world")
	if fp == nil {
		t.Fatal("expected fingerprint")
	}
	if math.Abs(fp.norm-math.Sqrt(5)) > 0.0001 {
		t.Errorf("norm = %v, want %v", fp.norm, math.Sqrt(5))
	}
	if fp.TokenCount() != 2 {
		t.Errorf("TokenCount() = %d, want 2", fp.TokenCount())
	}
}

func TestNewFingerprintEmpty(t *testing.T) {
	if NewFingerprint("") != nil {
		t.Error("expected nil for empty text")
	}
	if NewFingerprint("a b !") != nil {
		t.Error("expected nil for text with only short tokens")
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"latin words", "Hello, World!", []string{"hello", "world"}},
		{"full width folds", "ＡＢＣ　Cafe", []string{"abc", "cafe"}},
		{"cjk bigrams", "白金店", []string{"白金", "金店"}},
		{"single cjk rune", "店", []string{"店"}},
		{"mixed scripts", "cafe白金", []string{"cafe", "白金"}},
		{"half width kana", "ｶﾌｪ", []string{"カフ", "フェ"}},
		{"empty", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("Tokenize() = %v (len %d), want %v (len %d)", got, len(got), tt.want, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFingerprintTerms(t *testing.T) {
	terms := NewFingerprint("cafe 白金 cafe").Terms()
	if len(terms) != 2 || terms[0] != "cafe" || terms[1] != "白金" {
		t.Fatalf("unexpected terms %v", terms)
	}
	var nilFP *Fingerprint
	if nilFP.Terms() != nil {
		t.Fatal("expected nil terms for nil fingerprint")
	}
}
