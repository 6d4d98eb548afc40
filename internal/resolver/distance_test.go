package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceIdentity(t *testing.T) {
	for _, s := range []string{"", "a", "cat", "Mars is amazing", "日本語のテキスト"} {
		assert.Equal(t, 0, Distance(s, s), "distance(%q, %q)", s, s)
	}
}

func TestDistanceKnownPairs(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"cat", "bat", 1},
		{"kitten", "sitting", 3},
		{"", "abc", 3},
		{"abc", "", 3},
		{"flaw", "lawn", 2},
		{"Mars is amazing", "Mars is amazing", 0},
		{"gumbo", "gambol", 2},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Distance(tc.a, tc.b), "distance(%q, %q)", tc.a, tc.b)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"cat", "bat"},
		{"kitten", "sitting"},
		{"", "nonempty"},
		{"Going to the moon", "Mars is amazing"},
	}
	for _, p := range pairs {
		assert.Equal(t, Distance(p[0], p[1]), Distance(p[1], p[0]),
			"distance(%q, %q) not symmetric", p[0], p[1])
	}
}

func TestDistanceRunes(t *testing.T) {
	// Multi-byte runes count as single characters.
	assert.Equal(t, 1, Distance("héllo", "hello"))
	assert.Equal(t, 2, Distance("日本", "本日"))
}
