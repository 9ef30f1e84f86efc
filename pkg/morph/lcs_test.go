package morph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isSubsequence reports whether needle can be read from haystack in order.
func isSubsequence(needle, haystack string) bool {
	j := 0
	hr := []rune(haystack)
	for _, r := range needle {
		for j < len(hr) && hr[j] != r {
			j++
		}
		if j == len(hr) {
			return false
		}
		j++
	}
	return true
}

func TestStringLCS(t *testing.T) {
	cases := []struct {
		a, b string
	}{
		{"", ""},
		{"abc", ""},
		{"", "abc"},
		{"abc", "abc"},
		{"abcdef", "ace"},
		{"Hello World", "WorldAtlas"},
		{"kitten", "sitting"},
		{"XMJYAUZ", "MZJAWXU"},
	}
	for _, c := range cases {
		lcs := StringLCS(c.a, c.b)
		assert.True(t, isSubsequence(lcs, c.a), "lcs %q not a subsequence of %q", lcs, c.a)
		assert.True(t, isSubsequence(lcs, c.b), "lcs %q not a subsequence of %q", lcs, c.b)
		assert.LessOrEqual(t, len(lcs), min(len(c.a), len(c.b)))
	}
}

func TestStringLCSIdentity(t *testing.T) {
	for _, s := range []string{"", "a", "hello", strings.Repeat("xyz", 10)} {
		assert.Equal(t, s, StringLCS(s, s))
	}
}

func TestIndicesLCS(t *testing.T) {
	seq := func(ints ...int32) []DynamicValue {
		out := make([]DynamicValue, len(ints))
		for i, n := range ints {
			out[i] = Int32(n)
		}
		return out
	}

	pairs := IndicesLCS(seq(3, 1, 4, 1, 5, 9), seq(1, 4, 5), Equal)
	require.Len(t, pairs, 3)
	for i := 1; i < len(pairs); i++ {
		assert.Greater(t, pairs[i].I, pairs[i-1].I)
		assert.Greater(t, pairs[i].J, pairs[i-1].J)
	}
	for _, p := range pairs {
		a := seq(3, 1, 4, 1, 5, 9)[p.I]
		b := seq(1, 4, 5)[p.J]
		assert.True(t, Equal(a, b))
	}
}

func TestIndicesLCSIdentityAlignment(t *testing.T) {
	vals := []DynamicValue{Int32(1), Int32(2), Int32(3)}
	pairs := IndicesLCS(vals, vals, Equal)
	require.Len(t, pairs, 3)
	for i, p := range pairs {
		assert.Equal(t, i, p.I)
		assert.Equal(t, i, p.J)
	}
}

func TestIndicesLCSEmpty(t *testing.T) {
	assert.Empty(t, IndicesLCS(nil, nil, Equal))
	assert.Empty(t, IndicesLCS([]DynamicValue{Int32(1)}, nil, Equal))
	assert.Empty(t, IndicesLCS(nil, []DynamicValue{Int32(1)}, Equal))
}

func TestIndicesLCSPluggableEquality(t *testing.T) {
	// Equality on value kind only: every primitive matches every primitive.
	kindEq := func(a, b DynamicValue) bool { return a.ValueKind() == b.ValueKind() }
	pairs := IndicesLCS(
		[]DynamicValue{Int32(1), String("x")},
		[]DynamicValue{Int32(99), String("y")},
		kindEq,
	)
	assert.Len(t, pairs, 2)
}
