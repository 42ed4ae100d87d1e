package paddle

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Paddle delivers signatures in three header formats:
//
//	ts=1671552777;h1=eb4d0dc8...   timestamped scheme, HMAC over "ts:body"
//	sha256=eb4d0dc8...             prefixed hex, HMAC over the raw body
//	eb4d0dc8...                    bare 64-char hex, HMAC over the raw body
//
// Verification is a pure function over (secret, header, body): any malformed
// header, missing secret, or digest mismatch yields false. Digests are always
// compared constant-time; comparing with == would leak where the first
// differing byte is and allow byte-by-byte forgery.

const hexDigestLen = 64

// verifySignature checks the Paddle-Signature header against the raw request
// body. The body must be the exact bytes received, never re-serialized JSON.
func (p *Provider) verifySignature(header string, body []byte) bool {
	if len(p.webhookSecret) == 0 {
		return false
	}

	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}

	if strings.Contains(header, "ts=") && strings.Contains(header, "h1=") {
		return p.verifyTimestamped(header, body)
	}

	digest := header
	if strings.HasPrefix(header, "sha256=") {
		digest = strings.TrimPrefix(header, "sha256=")
	}
	if len(digest) != hexDigestLen {
		return false
	}
	return verifyHex(p.webhookSecret, body, digest)
}

// verifyTimestamped handles the ts=...;h1=... scheme: the canonical string is
// "<ts>:<rawBody>". The timestamp is accepted regardless of age unless a
// tolerance is configured.
func (p *Provider) verifyTimestamped(header string, body []byte) bool {
	var ts, h1 string
	for _, part := range strings.Split(header, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "h1":
			h1 = value
		}
	}
	if ts == "" || len(h1) != hexDigestLen {
		return false
	}

	if p.tolerance > 0 {
		unix, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return false
		}
		age := time.Since(time.Unix(unix, 0))
		if age > p.tolerance || age < -p.tolerance {
			return false
		}
	}

	canonical := make([]byte, 0, len(ts)+1+len(body))
	canonical = append(canonical, ts...)
	canonical = append(canonical, ':')
	canonical = append(canonical, body...)
	return verifyHex(p.webhookSecret, canonical, h1)
}

// verifyHex compares the HMAC-SHA256 of payload against a hex digest in
// constant time.
func verifyHex(secret, payload []byte, digest string) bool {
	expected, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hmac.Equal(expected, mac.Sum(nil))
}

// signTimestamped produces a ts=...;h1=... header for the given body, using
// the same HMAC routine the verifier checks against.
func signTimestamped(secret []byte, ts string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts))
	mac.Write([]byte(":"))
	mac.Write(body)
	return "ts=" + ts + ";h1=" + hex.EncodeToString(mac.Sum(nil))
}

// signBody produces the bare-hex digest over the raw body.
func signBody(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
