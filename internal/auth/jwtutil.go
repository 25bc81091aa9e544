package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

const algHS256 = "HS256"

var b64 = base64.RawURLEncoding

type jwtHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// SignHS256 creates a compact JWT string using HS256.
func SignHS256(claims any, secret []byte) (string, error) {
	h, err := json.Marshal(jwtHeader{Alg: algHS256, Typ: "JWT"})
	if err != nil {
		return "", err
	}
	c, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	unsigned := b64.EncodeToString(h) + "." + b64.EncodeToString(c)
	return unsigned + "." + b64.EncodeToString(mac(unsigned, secret)), nil
}

// ParseAndVerifyHS256 checks the header algorithm and signature, then decodes
// the payload into out. Expiry is left to the caller.
func ParseAndVerifyHS256(token string, secret []byte, out any) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return errors.New("invalid token format")
	}

	rawHeader, err := b64.DecodeString(parts[0])
	if err != nil {
		return errors.New("invalid header encoding")
	}
	var header jwtHeader
	if err := json.Unmarshal(rawHeader, &header); err != nil {
		return errors.New("invalid header json")
	}
	if header.Alg != algHS256 {
		return errors.New("unexpected signing algorithm")
	}

	sig, err := b64.DecodeString(parts[2])
	if err != nil {
		return errors.New("invalid signature encoding")
	}
	if !hmac.Equal(sig, mac(parts[0]+"."+parts[1], secret)) {
		return errors.New("signature mismatch")
	}

	payload, err := b64.DecodeString(parts[1])
	if err != nil {
		return errors.New("invalid payload encoding")
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return errors.New("invalid claims json")
	}
	return nil
}

func mac(unsigned string, secret []byte) []byte {
	m := hmac.New(sha256.New, secret)
	m.Write([]byte(unsigned))
	return m.Sum(nil)
}
