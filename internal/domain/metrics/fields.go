package metrics

import (
	"sort"
	"strings"

	"github.com/bryanwahyu/advisor-guard/internal/domain/entity"
)

// Field is an approved metric name.
type Field string

// Type of a metric value.
type Type string

const (
	TypeCurrency   Type = "currency"
	TypeCount      Type = "count"
	TypePercentage Type = "percentage"
	TypeDecimal    Type = "decimal"
	TypeString     Type = "string"
	TypeTimestamp  Type = "timestamp"
)

// Numeric reports whether values of this type are compared numerically.
func (t Type) Numeric() bool {
	switch t {
	case TypeCurrency, TypeCount, TypePercentage, TypeDecimal:
		return true
	}
	return false
}

const (
	FieldSales          Field = "sales"
	FieldGPSales        Field = "gpSales"
	FieldGPPercent      Field = "gpPercent"
	FieldInvoices       Field = "invoices"
	FieldAvgRepairOrder Field = "avgRepairOrder"
	FieldRetailTires    Field = "retailTires"
	FieldAllTires       Field = "allTires"
	FieldOilChanges     Field = "oilChanges"
	FieldAlignments     Field = "alignments"
	FieldBrakeServices  Field = "brakeServices"
	FieldBatteries      Field = "batteries"
	FieldWiperBlades    Field = "wiperBlades"
	FieldCabinFilters   Field = "cabinFilters"
	FieldEngineFilters  Field = "engineFilters"

	FieldTireAttachRate      Field = "tireAttachRate"
	FieldAlignmentAttachRate Field = "alignmentAttachRate"
	FieldBrakeAttachRate     Field = "brakeAttachRate"
	FieldSalesPerInvoice     Field = "salesPerInvoice"
	FieldGPPerInvoice        Field = "gpPerInvoice"

	FieldAdvisorCount Field = "advisorCount"
	FieldStoreCount   Field = "storeCount"

	FieldAdvisorName Field = "advisorName"
	FieldStoreName   Field = "storeName"
	FieldMarketName  Field = "marketName"
	FieldLastUpload  Field = "lastUploadAt"
)

type fieldSpec struct {
	typ      Type
	label    string
	advanced bool
}

// approved is the whitelist. Nothing else crosses the gateway.
var approved = map[Field]fieldSpec{
	FieldSales:          {typ: TypeCurrency, label: "Sales"},
	FieldGPSales:        {typ: TypeCurrency, label: "GP Sales"},
	FieldGPPercent:      {typ: TypePercentage, label: "GP %"},
	FieldInvoices:       {typ: TypeCount, label: "Invoices"},
	FieldAvgRepairOrder: {typ: TypeCurrency, label: "Average repair order"},
	FieldRetailTires:    {typ: TypeCount, label: "Retail tires"},
	FieldAllTires:       {typ: TypeCount, label: "All tires"},
	FieldOilChanges:     {typ: TypeCount, label: "Oil changes"},
	FieldAlignments:     {typ: TypeCount, label: "Alignments"},
	FieldBrakeServices:  {typ: TypeCount, label: "Brake services"},
	FieldBatteries:      {typ: TypeCount, label: "Batteries"},
	FieldWiperBlades:    {typ: TypeCount, label: "Wiper blades"},
	FieldCabinFilters:   {typ: TypeCount, label: "Cabin filters"},
	FieldEngineFilters:  {typ: TypeCount, label: "Engine filters"},

	FieldTireAttachRate:      {typ: TypePercentage, label: "Tire attach rate", advanced: true},
	FieldAlignmentAttachRate: {typ: TypePercentage, label: "Alignment attach rate", advanced: true},
	FieldBrakeAttachRate:     {typ: TypePercentage, label: "Brake attach rate", advanced: true},
	FieldSalesPerInvoice:     {typ: TypeDecimal, label: "Sales per invoice", advanced: true},
	FieldGPPerInvoice:        {typ: TypeDecimal, label: "GP per invoice", advanced: true},

	FieldAdvisorCount: {typ: TypeCount, label: "Advisors"},
	FieldStoreCount:   {typ: TypeCount, label: "Stores"},

	FieldAdvisorName: {typ: TypeString, label: "Advisor"},
	FieldStoreName:   {typ: TypeString, label: "Store"},
	FieldMarketName:  {typ: TypeString, label: "Market"},
	FieldLastUpload:  {typ: TypeTimestamp, label: "Last upload"},
}

// serviceCounts every advisor record must carry.
var serviceCounts = []Field{
	FieldRetailTires, FieldAllTires, FieldOilChanges, FieldAlignments,
	FieldBrakeServices, FieldBatteries,
}

var required = map[entity.Kind][]Field{
	entity.KindAdvisor: append([]Field{FieldSales, FieldGPSales, FieldGPPercent, FieldInvoices}, serviceCounts...),
	entity.KindStore:   {FieldSales, FieldGPSales, FieldGPPercent, FieldInvoices, FieldRetailTires, FieldAllTires, FieldAdvisorCount},
	entity.KindMarket:  {FieldSales, FieldGPSales, FieldGPPercent, FieldInvoices, FieldStoreCount},
}

// ScorecardFields are the keys of the constrained JSON scorecard, in order.
var ScorecardFields = []Field{
	FieldInvoices, FieldSales, FieldGPSales, FieldGPPercent, FieldRetailTires, FieldAllTires,
}

// forbiddenNames are raw-source aliases and ad hoc calculated fields.
var forbiddenNames = map[string]bool{
	"rawsales":        true,
	"totalsales":      true,
	"grossprofit":     true,
	"gp":              true,
	"gpdollars":       true,
	"profitmargin":    true,
	"estimatedgp":     true,
	"estimatedsales":  true,
	"projectedsales":  true,
	"invoicetotal":    true,
	"ticketcount":     true,
	"tirecount":       true,
	"calculatedgp":    true,
	"calculatedsales": true,
}

// forbiddenPrefixes mark upload exports, ad hoc calculations and injected fixtures.
var forbiddenPrefixes = []string{"raw", "upload", "import", "csv", "export", "manual", "adhoc", "calc", "fixture", "test", "mock", "sample"}

// Lookup returns the canonical name and type of an approved field.
func Lookup(name string) (Field, Type, bool) {
	f := Field(name)
	spec, ok := approved[f]
	if !ok {
		return "", "", false
	}
	return f, spec.typ, true
}

// TypeOf returns the value type of an approved field.
func TypeOf(f Field) Type { return approved[f].typ }

// Label returns the human label of an approved field.
func Label(f Field) string {
	if spec, ok := approved[f]; ok {
		return spec.label
	}
	return string(f)
}

// IsApproved reports whether name is on the whitelist.
func IsApproved(name string) bool {
	_, ok := approved[Field(name)]
	return ok
}

// IsAdvanced reports whether f is an approved advanced/calculated field.
func IsAdvanced(f Field) bool { return approved[f].advanced }

// IsForbidden reports whether name belongs to a forbidden source. Names are
// compared case- and separator-insensitively.
func IsForbidden(name string) bool {
	if IsApproved(name) {
		return false
	}
	n := normalizeName(name)
	if forbiddenNames[n] {
		return true
	}
	for _, p := range forbiddenPrefixes {
		if strings.HasPrefix(n, p) && len(n) > len(p) {
			return true
		}
	}
	return false
}

// performanceStems flag names that look like a performance metric.
var performanceStems = []string{"sale", "gp", "profit", "margin", "invoice", "revenue", "tire", "alignment", "brake", "battery", "oil", "kpi", "ticket", "aro"}

// LooksLikeMetric reports whether an unknown name resembles a performance metric.
func LooksLikeMetric(name string) bool {
	n := normalizeName(name)
	for _, s := range performanceStems {
		if strings.Contains(n, s) {
			return true
		}
	}
	return false
}

// Required returns the required fields for kind.
func Required(kind entity.Kind) []Field {
	return append([]Field(nil), required[kind]...)
}

// ApprovedFields returns the whitelist in a stable order.
func ApprovedFields() []Field {
	out := make([]Field, 0, len(approved))
	for f := range approved {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func normalizeName(name string) string {
	n := strings.ToLower(name)
	return strings.NewReplacer("_", "", "-", "", " ", "", ".", "").Replace(n)
}
