// Package faces turns face regions into descriptors and scores descriptors
// against each other. Two strategies exist, classical (pixel intensities)
// and learned (model embeddings); a descriptor always carries the kind of
// the strategy that produced it and is only ever compared to its own kind.
package faces

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Kind identifies the extraction strategy that produced a descriptor.
type Kind string

const (
	KindClassical Kind = "classical"
	KindLearned   Kind = "learned"
)

// ParseKind maps a stored strategy name back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindClassical, KindLearned:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown descriptor kind %q", s)
	}
}

// Descriptor is a fixed-length face vector.
type Descriptor struct {
	Kind   Kind
	Values []float32
}

// Empty reports whether the descriptor holds no values.
func (d Descriptor) Empty() bool {
	return len(d.Values) == 0
}

func (d Descriptor) Len() int {
	return len(d.Values)
}

var ErrEmptyDescriptor = errors.New("descriptor is empty")

// Encode serializes the values as a JSON array, the text form kept in the store.
func (d Descriptor) Encode() (string, error) {
	if d.Empty() {
		return "", ErrEmptyDescriptor
	}
	for i, v := range d.Values {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return "", fmt.Errorf("descriptor value %d is not finite", i)
		}
	}
	data, err := json.Marshal(d.Values)
	if err != nil {
		return "", fmt.Errorf("failed to encode descriptor: %w", err)
	}
	return string(data), nil
}

// DecodeDescriptor parses the stored text form.
func DecodeDescriptor(kind Kind, text string) (Descriptor, error) {
	var values []float32
	if err := json.Unmarshal([]byte(text), &values); err != nil {
		return Descriptor{}, fmt.Errorf("failed to decode descriptor: %w", err)
	}
	if len(values) == 0 {
		return Descriptor{}, ErrEmptyDescriptor
	}
	return Descriptor{Kind: kind, Values: values}, nil
}
