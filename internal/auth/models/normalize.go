package models

import (
	"crypto/rand"
	"math/big"
	"unicode"
	"unicode/utf8"
)

// FirstLetterUppercase upper-cases the first character of s and leaves the
// rest untouched. Usernames and emails are stored in this form, so lookups
// must normalize their input the same way.
func FirstLetterUppercase(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

const uidDigits = 12

var (
	uidMin   = new(big.Int).Exp(big.NewInt(10), big.NewInt(uidDigits-1), nil)
	uidRange = new(big.Int).Sub(new(big.Int).Exp(big.NewInt(10), big.NewInt(uidDigits), nil), uidMin)
)

// NewUID returns a random 12-digit public user id.
func NewUID() (int64, error) {
	n, err := rand.Int(rand.Reader, uidRange)
	if err != nil {
		return 0, err
	}
	return n.Add(n, uidMin).Int64(), nil
}
