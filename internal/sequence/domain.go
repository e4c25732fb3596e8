// Package sequence assigns document numbers that are unique and
// monotonically increasing within a per-type, per-month bucket.
package sequence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DocType enumerates the numbered financial document types.
type DocType string

const (
	DocTypeQuotation         DocType = "QUOTATION"
	DocTypeInvoice           DocType = "INVOICE"
	DocTypeTaxInvoiceReceipt DocType = "TAX_INVOICE_RECEIPT"
	DocTypeDeliveryNote      DocType = "DELIVERY_NOTE"
)

// ErrUnknownDocType indicates a document type without a configured prefix.
var ErrUnknownDocType = errors.New("sequence: unknown document type")

// ErrConflict indicates the sequencer exhausted its retries on a
// transient numbering collision.
var ErrConflict = errors.New("sequence: number conflict")

// Prefixes maps document types to their number prefix.
type Prefixes map[DocType]string

// DefaultPrefixes returns the stock prefix configuration.
func DefaultPrefixes() Prefixes {
	return Prefixes{
		DocTypeQuotation:         "QT",
		DocTypeInvoice:           "INV",
		DocTypeTaxInvoiceReceipt: "TX",
		DocTypeDeliveryNote:      "DN",
	}
}

// For resolves the prefix for a document type.
func (p Prefixes) For(dt DocType) (string, error) {
	prefix, ok := p[dt]
	if !ok || prefix == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownDocType, dt)
	}
	return prefix, nil
}

// ParseOverrides applies "TYPE:PREFIX" pairs from a comma separated
// string on top of the defaults. Unknown types are rejected so a typo
// in configuration fails startup instead of numbering silently.
func ParseOverrides(raw string) (Prefixes, error) {
	prefixes := DefaultPrefixes()
	if strings.TrimSpace(raw) == "" {
		return prefixes, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		dt, prefix, ok := strings.Cut(pair, ":")
		if !ok || strings.TrimSpace(prefix) == "" {
			return nil, fmt.Errorf("sequence: malformed prefix override %q", pair)
		}
		key := DocType(strings.TrimSpace(dt))
		if _, known := prefixes[key]; !known {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDocType, key)
		}
		prefixes[key] = strings.TrimSpace(prefix)
	}
	return prefixes, nil
}

// Bucket returns the YYMM scope a date falls into.
func Bucket(date time.Time) string {
	return date.Format("0601")
}

// FormatNumber renders a document number as {PREFIX}-{YY}{MM}-{NNNN}.
func FormatNumber(prefix string, date time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, Bucket(date), seq)
}
