package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIDIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		require.NotEmpty(t, id)
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestMaskWord(t *testing.T) {
	cases := []struct {
		word string
		want string
	}{
		{"", ""},
		{"cat", "_ _ _"},
		{"ice cream", "_ _ _   _ _ _ _ _"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, MaskWord(tc.word), "word %q", tc.word)
	}
}
