package nanoid

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Character sets
const (
	Number        = "0123456789"
	Lowercase     = "abcdefghijklmnopqrstuvwxyz"
	Uppercase     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	NumLower      = Number + Lowercase
	NumLowerUpper = Number + Lowercase + Uppercase
)

const (
	defaultSize = 16
)

func getSize(l ...int) int {
	if len(l) > 0 && l[0] > 0 {
		return l[0]
	}
	return defaultSize
}

// String generate optional length nanoid over digits and both letter cases
func String(l ...int) string {
	return gonanoid.MustGenerate(NumLowerUpper, getSize(l...))
}

// Lower generate optional length nanoid over digits and lowercase letters
func Lower(l ...int) string {
	return gonanoid.MustGenerate(NumLower, getSize(l...))
}

// IsValid reports whether id has the given length and uses only alphabet.
func IsValid(id, alphabet string, size int) bool {
	if len(id) != size {
		return false
	}
	for _, r := range id {
		found := false
		for _, a := range alphabet {
			if r == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
