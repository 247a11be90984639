// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"
)

// BasicScheme is the only Authorization scheme accepted by BasicAuth.
const BasicScheme = "Basic"

// ExtractEncodedCredential returns the token following the "Basic" scheme in an
// Authorization header value. The scheme comparison is case-sensitive.
func ExtractEncodedCredential(header string) (string, bool) {
	fields := strings.Fields(header)
	if len(fields) < 2 || fields[0] != BasicScheme {
		return "", false
	}
	return fields[1], true
}

// DecodeCredential decodes a standard, padded base64 payload into UTF-8 text.
func DecodeCredential(encoded string) (string, bool) {
	if encoded == "" {
		return "", false
	}
	raw, err := base64.StdEncoding.Strict().DecodeString(encoded)
	if err != nil || !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}

// SplitCredential splits decoded "identifier:secret" text on the first colon.
// The secret may itself contain colons.
func SplitCredential(decoded string) (identifier, secret string, ok bool) {
	return strings.Cut(decoded, ":")
}

// ParseBasicCredential chains extraction, decoding and splitting of an
// Authorization header value. Any failing stage yields ok == false.
func ParseBasicCredential(header string) (identifier, secret string, ok bool) {
	encoded, ok := ExtractEncodedCredential(header)
	if !ok {
		return "", "", false
	}
	decoded, ok := DecodeCredential(encoded)
	if !ok {
		return "", "", false
	}
	return SplitCredential(decoded)
}
