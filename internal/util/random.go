// Package util provides utility functions for the Escrow Express application.
package util

import (
	"math/rand/v2"
	"strconv"
	"strings"
)

// Captcha code range. Codes are always four digits.
const (
	CaptchaCodeMin = 1000
	CaptchaCodeMax = 9999
)

// GenerateCaptchaCode generates a pseudo-random 4-digit verification code in
// [1000, 9999], returned as its decimal string form since it is compared
// against user-typed text. Uses math/rand/v2; the code is a human-presence
// check, not a secret.
func GenerateCaptchaCode() string {
	code := CaptchaCodeMin + rand.IntN(CaptchaCodeMax-CaptchaCodeMin+1)
	return strconv.Itoa(code)
}

// GenerateRandomHex generates a random hexadecimal string of the specified
// length, for non-cryptographic identifiers.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.IntN(16)])
	}

	return builder.String()
}
