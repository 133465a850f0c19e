package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"
)

// EmptyBodyHash is the SHA256 of an empty body.
const EmptyBodyHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// SignatureTolerance bounds the clock skew accepted on signed triggers.
const SignatureTolerance = 5 * time.Minute

// BuildStringToSign returns METHOD\nPATH\nOWNER\nTIMESTAMP\nSHA256(body).
func BuildStringToSign(method, path, ownerID string, timestamp int64, bodyHash string) string {
	return fmt.Sprintf("%s\n%s\n%s\n%d\n%s", method, path, ownerID, timestamp, bodyHash)
}

func ComputeHMACSHA256(secretKey, message string) string {
	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

func HashBodySHA256(body []byte) string {
	if len(body) == 0 {
		return EmptyBodyHash
	}
	hash := sha256.Sum256(body)
	return hex.EncodeToString(hash[:])
}

// SignRequest produces the signature a record-store automation sends with a trigger.
func SignRequest(secretKey, method, path, ownerID string, timestamp int64, body []byte) string {
	return ComputeHMACSHA256(secretKey, BuildStringToSign(method, path, ownerID, timestamp, HashBodySHA256(body)))
}

// VerifySignature checks a trigger signature in constant time and rejects stale timestamps.
func VerifySignature(secretKey, method, path, ownerID string, timestamp int64, body []byte, signature string, now time.Time) error {
	skew := now.Sub(time.Unix(timestamp, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > SignatureTolerance {
		return fmt.Errorf("request timestamp outside the %s window", SignatureTolerance)
	}
	expected := SignRequest(secretKey, method, path, ownerID, timestamp, body)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
