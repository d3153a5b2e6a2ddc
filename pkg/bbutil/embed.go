package bbutil

import (
	"encoding/binary"
	"math"
	"regexp"
	"strings"

	"golang.org/x/crypto/blake2b"
)

var (
	wsRe  = regexp.MustCompile(`\s+`)
	tokRe = regexp.MustCompile(`[a-z0-9]+`)
)

// HashEmbed deterministically embeds text into a dim-dimensional vector with
// no external model: lowercase, collapse whitespace, tokenize into
// alphanumeric runs, then for every unigram and adjacent bigram hash with
// BLAKE2b (8-byte digest), index = hash mod dim, sign = bit 0 of hash, and
// accumulate. The result is L2-normalized.
func HashEmbed(text string, dim int) []float64 {
	text = wsRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), " ")
	toks := tokRe.FindAllString(text, -1)
	vec := make([]float64, dim)
	if len(toks) == 0 {
		return vec
	}

	acc := func(s string) {
		hasher, _ := blake2b.New(8, nil) // 8-byte digest, matches the reference embedding
		hasher.Write([]byte(s))
		h := binary.BigEndian.Uint64(hasher.Sum(nil))
		idx := int(h % uint64(dim))
		sign := -1.0
		if h&1 == 1 {
			sign = 1.0
		}
		vec[idx] += sign
	}

	for i, t := range toks {
		acc(t)
		if i+1 < len(toks) {
			acc(t + "_" + toks[i+1])
		}
	}

	var sumSq float64
	for _, v := range vec {
		sumSq += v * v
	}
	n := math.Sqrt(sumSq)
	if n == 0 {
		n = 1.0
	}
	for i := range vec {
		vec[i] /= n
	}
	return vec
}

// Cosine returns the cosine similarity of two equal-length vectors, clamped
// to [-1, 1]. Returns 0 for empty or mismatched-length inputs.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	denom := math.Sqrt(na) * math.Sqrt(nb)
	if denom == 0 {
		return 0
	}
	v := dot / denom
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// Quantize clamps each component to [-1,1], scales by 127, and rounds to
// int8, for compact on-disk storage.
func Quantize(v []float64) []int8 {
	out := make([]int8, len(v))
	for i, x := range v {
		if x > 1 {
			x = 1
		} else if x < -1 {
			x = -1
		}
		scaled := math.Round(x * 127)
		if scaled > 127 {
			scaled = 127
		} else if scaled < -127 {
			scaled = -127
		}
		out[i] = int8(scaled)
	}
	return out
}

// Dequantize reverses Quantize.
func Dequantize(q []int8) []float64 {
	out := make([]float64, len(q))
	for i, x := range q {
		out[i] = float64(x) / 127.0
	}
	return out
}
