// Package audit defines the auditor boundary: the documents that go in,
// the structured audit result that comes out, and the error taxonomy the
// batch layer uses to decide whether a failure is worth retrying.
package audit

import "context"

// Document is one file handed to the auditor, already read into memory.
type Document struct {
	Name string
	Data []byte
}

// Usage accumulates model token consumption across requests.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	Requests     int `json:"requests"`
}

func (u Usage) TotalTokens() int { return u.InputTokens + u.OutputTokens }

func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.Requests += other.Requests
}

// Status is the three-valued outcome of a single compliance check.
type Status string

const (
	StatusYes           Status = "Yes"
	StatusNo            Status = "No"
	StatusNotApplicable Status = "N/A"
)

// Check pairs a status with the model's reasoning for it.
type Check struct {
	Status    Status `json:"status"`
	Reasoning string `json:"reasoning"`
}

// Extraction holds identifying fields lifted from the entry print.
type Extraction struct {
	AuditMonth   string `json:"audit_month"`
	Broker       string `json:"broker"`
	JobNumber    string `json:"job_number"`
	Waybill      string `json:"waybill"`
	EntryNumber  string `json:"entry_number"`
	EntryDate    string `json:"entry_date"`
	ImportExport string `json:"import_export"`
}

// DocumentSet records which of the required document types were present.
type DocumentSet struct {
	HasWaybill    bool `json:"has_waybill"`
	HasInvoice    bool `json:"has_invoice"`
	HasEntryPrint bool `json:"has_entry_print"`
}

func (d DocumentSet) FullSet() bool {
	return d.HasWaybill && d.HasInvoice && d.HasEntryPrint
}

// Missing names the absent document types, in a fixed order.
func (d DocumentSet) Missing() []string {
	var missing []string
	if !d.HasWaybill {
		missing = append(missing, "waybill")
	}
	if !d.HasInvoice {
		missing = append(missing, "invoice")
	}
	if !d.HasEntryPrint {
		missing = append(missing, "entry print")
	}
	return missing
}

// HeaderValidation carries the per-check outcomes of the entry header audit.
type HeaderValidation struct {
	OwnerCode          Check `json:"owner_code"`
	SupplierCode       Check `json:"supplier_code"`
	Valuation          Check `json:"valuation"`
	Origin             Check `json:"origin"`
	Preference         Check `json:"preference"`
	PreferenceRule     Check `json:"preference_rule"`
	Currency           Check `json:"currency"`
	Incoterms          Check `json:"incoterms"`
	TransportInsurance Check `json:"transport_insurance"`
	Discounts          Check `json:"discounts"`
}

// Result is the full structured outcome of auditing one job's documents.
type Result struct {
	Extraction Extraction       `json:"extraction"`
	Documents  DocumentSet      `json:"documents"`
	Header     HeaderValidation `json:"header_validation"`
	FreeText   string           `json:"free_text"`
	Auditor    string           `json:"auditor"`
}

// Auditor audits a job's documents and returns a structured result plus the
// token usage the attempt consumed. Usage is meaningful even when an error
// is returned.
type Auditor interface {
	Audit(ctx context.Context, jobID string, docs []Document) (Result, Usage, error)
}
