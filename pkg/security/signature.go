package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultSignatureTolerance bounds how old a signed timestamp may be before
// the signature is rejected as a possible replay.
const DefaultSignatureTolerance = 5 * time.Minute

var (
	ErrInvalidSignatureHeader = errors.New("invalid signature header")
	ErrSignatureMismatch      = errors.New("signature mismatch")
	ErrSignatureExpired       = errors.New("signature timestamp outside tolerance")
)

// SignPayload produces a `t=<unix>,v1=<hex mac>` header value over
// `<unix>.<payload>` with HMAC-SHA256. Partners verify deliveries with the
// shared secret; the same scheme is accepted on inbound fulfillment events.
func SignPayload(secret string, payload []byte, at time.Time) string {
	ts := at.Unix()
	mac := computeMAC(secret, payload, ts)
	return fmt.Sprintf("t=%d,v1=%s", ts, mac)
}

// VerifySignature checks a `t=...,v1=...` header against the payload. All v1
// entries are tried so secret rotation can overlap.
func VerifySignature(secret string, payload []byte, header string, now time.Time, tolerance time.Duration) error {
	ts, macs, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return ErrSignatureExpired
		}
	}
	expected := computeMAC(secret, payload, ts)
	for _, candidate := range macs {
		if hmac.Equal([]byte(candidate), []byte(expected)) {
			return nil
		}
	}
	return ErrSignatureMismatch
}

func computeMAC(secret string, payload []byte, ts int64) string {
	h := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(h, "%d.", ts)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func parseSignatureHeader(header string) (int64, []string, error) {
	var (
		ts    int64
		tsSet bool
		macs  []string
	)
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			return 0, nil, ErrInvalidSignatureHeader
		}
		switch kv[0] {
		case "t":
			parsed, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, ErrInvalidSignatureHeader
			}
			ts = parsed
			tsSet = true
		case "v1":
			macs = append(macs, kv[1])
		}
	}
	if !tsSet || len(macs) == 0 {
		return 0, nil, ErrInvalidSignatureHeader
	}
	return ts, macs, nil
}
