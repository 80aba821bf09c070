package metrics

import (
	"sort"
	"strconv"
	"time"

	"github.com/bryanwahyu/advisor-guard/internal/domain/entity"
)

// Integrity of a provider record.
type Integrity string

const (
	IntegrityVerified   Integrity = "verified"
	IntegrityUnverified Integrity = "unverified"
)

// Provenance is stamped on every gateway result.
type Provenance struct {
	Endpoint    string    `json:"endpoint"`
	RetrievedAt time.Time `json:"retrievedAt"`
	Integrity   Integrity `json:"integrity"`
}

// Value is one typed metric value. Number is set for numeric types, Text for
// string and timestamp types.
type Value struct {
	Type   Type    `json:"type"`
	Number float64 `json:"number,omitempty"`
	Text   string  `json:"text,omitempty"`
}

// String renders the value without units or separators.
func (v Value) String() string {
	if v.Type.Numeric() {
		return FormatNumber(v.Number)
	}
	return v.Text
}

// FormatNumber prints n in its shortest plain decimal form.
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// Request identifies what to fetch.
type Request struct {
	Kind   entity.Kind   `json:"kind" validate:"required,oneof=advisor store market"`
	ID     string        `json:"id" validate:"required"`
	Period entity.Period `json:"period"`
}

// Metrics is the sanitized, provenance-stamped result of a fetch.
type Metrics struct {
	Kind       entity.Kind     `json:"kind"`
	EntityID   string          `json:"entityId"`
	Period     entity.Period   `json:"period"`
	Values     map[Field]Value `json:"values"`
	Provenance *Provenance     `json:"provenance,omitempty"`
	// Missing lists required fields the provider did not supply.
	Missing []Field `json:"missing,omitempty"`
	// Advanced lists approved calculated fields that were present.
	Advanced []Field `json:"advanced,omitempty"`
	// Dropped lists forbidden or unknown names removed at the boundary.
	Dropped []string `json:"dropped,omitempty"`
}

// Trusted reports whether the metrics may be surfaced as performance data.
func (m *Metrics) Trusted() bool {
	return m != nil && m.Provenance != nil && m.Provenance.Integrity == IntegrityVerified
}

// Get returns the value of f.
func (m *Metrics) Get(f Field) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.Values[f]
	return v, ok
}

// Number returns the numeric value of f.
func (m *Metrics) Number(f Field) (float64, bool) {
	v, ok := m.Get(f)
	if !ok || !v.Type.Numeric() {
		return 0, false
	}
	return v.Number, true
}

// Fields returns the present fields in whitelist order.
func (m *Metrics) Fields() []Field {
	if m == nil {
		return nil
	}
	out := make([]Field, 0, len(m.Values))
	for f := range m.Values {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len is the number of approved values present.
func (m *Metrics) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Values)
}
