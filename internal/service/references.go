package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// newReference generates an opaque, unique transaction reference with a
// human-readable prefix, e.g. "PAY-7F3A1B9C02D4".
func newReference(prefix string) string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return fmt.Sprintf("%s-%s", prefix, raw[:12])
}

// newApplicationNumber generates a unique, human-readable loan identifier.
func newApplicationNumber(now time.Time) string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return fmt.Sprintf("KRD-%s-%s", now.Format("20060102"), raw[:6])
}

// snapshot serializes an entity for an audit before/after record.
func snapshot(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
