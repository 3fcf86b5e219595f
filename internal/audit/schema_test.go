package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func validPayload() map[string]any {
	check := func(status string) map[string]any {
		return map[string]any{"status": status, "reasoning": "checked"}
	}
	return map[string]any{
		"extraction": map[string]any{
			"audit_month":  "Jan-2025",
			"waybill":      "WB123",
			"entry_number": "E456",
		},
		"documents": map[string]any{
			"has_waybill":     true,
			"has_invoice":     true,
			"has_entry_print": true,
		},
		"header_validation": map[string]any{
			"owner_code":          check("Yes"),
			"supplier_code":       check("Yes"),
			"valuation":           check("No"),
			"origin":              check("Yes"),
			"preference":          check("N/A"),
			"preference_rule":     check("N/A"),
			"currency":            check("Yes"),
			"incoterms":           check("Yes"),
			"transport_insurance": check("Yes"),
			"discounts":           check("Yes"),
		},
		"free_text": "ok",
	}
}

func TestValidateAcceptsWellFormedResult(t *testing.T) {
	b, _ := json.Marshal(validPayload())
	if err := ValidateJSONAgainstSchema(BuildAuditJSONSchema(), b); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
	var out Result
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Extraction.Waybill != "WB123" {
		t.Fatalf("unexpected waybill %q", out.Extraction.Waybill)
	}
	if out.Header.Valuation.Status != StatusNo {
		t.Fatalf("unexpected valuation status %q", out.Header.Valuation.Status)
	}
}

func TestValidateRejectsBadStatus(t *testing.T) {
	p := validPayload()
	p["header_validation"].(map[string]any)["origin"] = map[string]any{"status": "Maybe"}
	b, _ := json.Marshal(p)
	if err := ValidateJSONAgainstSchema(BuildAuditJSONSchema(), b); err == nil {
		t.Fatal("expected rejection of unknown status value")
	}
}

func TestValidateRejectsMissingChecks(t *testing.T) {
	p := validPayload()
	delete(p["header_validation"].(map[string]any), "currency")
	b, _ := json.Marshal(p)
	if err := ValidateJSONAgainstSchema(BuildAuditJSONSchema(), b); err == nil {
		t.Fatal("expected rejection of missing check")
	}
}

func TestDocumentSetMissing(t *testing.T) {
	d := DocumentSet{HasWaybill: true}
	if d.FullSet() {
		t.Fatal("expected incomplete set")
	}
	missing := d.Missing()
	if len(missing) != 2 || missing[0] != "invoice" || missing[1] != "entry print" {
		t.Fatalf("unexpected missing list %v", missing)
	}
	full := DocumentSet{HasWaybill: true, HasInvoice: true, HasEntryPrint: true}
	if !full.FullSet() || len(full.Missing()) != 0 {
		t.Fatal("expected full set")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	base := fmt.Errorf("boom")

	tr := Transient(base)
	if !IsTransient(tr) || IsPermanent(tr) {
		t.Fatal("transient classified wrong")
	}
	if !errors.Is(tr, base) {
		t.Fatal("transient should unwrap to cause")
	}

	pe := Permanent(base)
	if !IsPermanent(pe) || IsTransient(pe) {
		t.Fatal("permanent classified wrong")
	}

	wrapped := fmt.Errorf("attempt 3: %w", tr)
	if !IsTransient(wrapped) {
		t.Fatal("wrapped transient not detected")
	}
	if IsTransient(base) || IsPermanent(base) {
		t.Fatal("plain error should be neither")
	}
	if Transient(nil) != nil || Permanent(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestUsageAccumulation(t *testing.T) {
	var u Usage
	u.Add(Usage{InputTokens: 100, OutputTokens: 20, Requests: 1})
	u.Add(Usage{InputTokens: 50, OutputTokens: 5, Requests: 1})
	if u.TotalTokens() != 175 || u.Requests != 2 {
		t.Fatalf("unexpected usage %+v", u)
	}
}
