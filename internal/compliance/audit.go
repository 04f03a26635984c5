package compliance

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rawblock/riskgraph/pkg/models"
)

// canonicalJSON encodes v with object keys sorted at every level. Structs
// are first encoded, then decoded into generic maps (numbers kept verbatim)
// and re-encoded, since encoding/json writes map keys in sorted order.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	out, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	return out, nil
}

// signedInput is the byte string an audit HMAC covers: every field the
// trail and its reports rely on, newline separated, payload last
func signedInput(entry models.AuditEntry) []byte {
	var b bytes.Buffer
	b.WriteString(entry.ID)
	b.WriteByte('\n')
	b.WriteString(entry.Timestamp.UTC().Format(time.RFC3339Nano))
	b.WriteByte('\n')
	b.WriteString(entry.EventType)
	b.WriteByte('\n')
	b.WriteString(strconv.FormatBool(entry.Compliant))
	b.WriteByte('\n')
	b.Write(entry.Payload)
	return b.Bytes()
}

func sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(secret, payload []byte, hash string) bool {
	got, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
