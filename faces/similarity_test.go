package faces

import (
	"math"
	"math/rand"
	"testing"
)

func randomDescriptor(r *rand.Rand, kind Kind, n int) Descriptor {
	values := make([]float32, n)
	for i := range values {
		values[i] = r.Float32()*2 - 1
	}
	return Descriptor{Kind: kind, Values: values}
}

func TestEuclideanSimilarity_Identical(t *testing.T) {
	d := Descriptor{Kind: KindClassical, Values: []float32{0.1, 0.5, 0.9}}
	if got := EuclideanSimilarity(d, d); got != 1.0 {
		t.Errorf("identical descriptors: expected 1.0, got %v", got)
	}
}

func TestCosineSimilarity_Identical(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		d := randomDescriptor(r, KindLearned, 512)
		got := CosineSimilarity(d, d)
		if math.Abs(got-1.0) > 1e-9 {
			t.Fatalf("identical descriptors: expected 1.0, got %v", got)
		}
	}
}

func TestSimilarity_Ranges(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		a := randomDescriptor(r, KindClassical, 64)
		b := randomDescriptor(r, KindClassical, 64)
		if s := EuclideanSimilarity(a, b); s <= 0 || s > 1 {
			t.Fatalf("euclidean similarity out of (0,1]: %v", s)
		}

		a.Kind, b.Kind = KindLearned, KindLearned
		if s := CosineSimilarity(a, b); s < -1 || s > 1 {
			t.Fatalf("cosine similarity out of [-1,1]: %v", s)
		}
	}
}

func TestEuclideanSimilarity_KnownDistance(t *testing.T) {
	a := Descriptor{Kind: KindClassical, Values: []float32{0, 0}}
	b := Descriptor{Kind: KindClassical, Values: []float32{3, 4}}
	if got := EuclideanSimilarity(a, b); math.Abs(got-1.0/6.0) > 1e-12 {
		t.Errorf("expected 1/6 for distance 5, got %v", got)
	}
}

func TestCosineSimilarity_Opposite(t *testing.T) {
	a := Descriptor{Kind: KindLearned, Values: []float32{1, 2, 3}}
	b := Descriptor{Kind: KindLearned, Values: []float32{-1, -2, -3}}
	if got := CosineSimilarity(a, b); math.Abs(got+1.0) > 1e-9 {
		t.Errorf("expected -1 for opposite vectors, got %v", got)
	}
}

func TestSimilarity_DegenerateInputsScoreZero(t *testing.T) {
	some := Descriptor{Kind: KindLearned, Values: []float32{1, 2, 3}}
	zero := Descriptor{Kind: KindLearned, Values: []float32{0, 0, 0}}
	short := Descriptor{Kind: KindLearned, Values: []float32{1, 2}}
	classical := Descriptor{Kind: KindClassical, Values: []float32{1, 2, 3}}
	absent := Descriptor{}

	tests := []struct {
		name string
		a, b Descriptor
		fn   Scorer
	}{
		{"euclidean absent left", absent, classical, EuclideanSimilarity},
		{"euclidean absent right", classical, absent, EuclideanSimilarity},
		{"euclidean both absent", absent, absent, EuclideanSimilarity},
		{"cosine absent", absent, some, CosineSimilarity},
		{"cosine zero norm", some, zero, CosineSimilarity},
		{"cosine shape mismatch", some, short, CosineSimilarity},
		{"cosine cross kind", some, classical, CosineSimilarity},
		{"euclidean cross kind", classical, some, EuclideanSimilarity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.a, tt.b); got != 0.0 {
				t.Errorf("expected 0.0, got %v", got)
			}
		})
	}
}

func TestScorerFor(t *testing.T) {
	a := Descriptor{Kind: KindLearned, Values: []float32{1, 0}}
	b := Descriptor{Kind: KindLearned, Values: []float32{0, 1}}
	if got := ScorerFor(KindLearned)(a, b); got != 0 {
		t.Errorf("expected cosine of orthogonal vectors to be 0, got %v", got)
	}

	a.Kind, b.Kind = KindClassical, KindClassical
	want := 1.0 / (1.0 + math.Sqrt2)
	if got := ScorerFor(KindClassical)(a, b); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected euclidean similarity %v, got %v", want, got)
	}
}

func TestDescriptor_EncodeDecode(t *testing.T) {
	d := Descriptor{Kind: KindLearned, Values: []float32{0.25, -1, 3.5}}
	text, err := d.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if text != "[0.25,-1,3.5]" {
		t.Errorf("unexpected text form %q", text)
	}

	back, err := DecodeDescriptor(KindLearned, text)
	if err != nil {
		t.Fatalf("DecodeDescriptor failed: %v", err)
	}
	if EuclideanSimilarity(Descriptor{Kind: KindClassical, Values: back.Values}, Descriptor{Kind: KindClassical, Values: d.Values}) != 1.0 {
		t.Errorf("decoded values differ: %v vs %v", back.Values, d.Values)
	}

	for _, bad := range []string{"", "not json", "[]", "{\"a\":1}", "[1,\"x\"]"} {
		if _, err := DecodeDescriptor(KindClassical, bad); err == nil {
			t.Errorf("expected decode error for %q", bad)
		}
	}

	if _, err := (Descriptor{}).Encode(); err == nil {
		t.Error("expected error encoding an empty descriptor")
	}
	nan := float32(math.NaN())
	if _, err := (Descriptor{Kind: KindClassical, Values: []float32{nan}}).Encode(); err == nil {
		t.Error("expected error encoding a NaN value")
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("learned"); err != nil || k != KindLearned {
		t.Errorf("ParseKind(learned) = %v, %v", k, err)
	}
	if _, err := ParseKind("lbph"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
