package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a fresh identifier for players and rooms.
func NewID() string {
	return uuid.NewString()
}

// MaskWord converts a word to underscores for display to guessers, preserving
// spaces so multi-word answers keep their shape: "ice cream" -> "_ _ _   _ _ _ _ _".
func MaskWord(word string) string {
	if word == "" {
		return ""
	}
	masked := make([]string, 0, len(word))
	for i := range word {
		if word[i] == ' ' {
			masked = append(masked, " ")
		} else {
			masked = append(masked, "_")
		}
	}
	return strings.Join(masked, " ")
}
