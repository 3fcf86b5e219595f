package audit

// BuildAuditJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. It is sent to the model as a structured output constraint and
// reused locally to validate the response before decoding.
func BuildAuditJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"extraction": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"audit_month":   map[string]any{"type": "string"},
					"broker":        map[string]any{"type": "string"},
					"job_number":    map[string]any{"type": "string"},
					"waybill":       map[string]any{"type": "string"},
					"entry_number":  map[string]any{"type": "string"},
					"entry_date":    map[string]any{"type": "string"},
					"import_export": map[string]any{"type": "string"},
				},
				"required": []string{"waybill", "entry_number"},
			},
			"documents": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"has_waybill":     map[string]any{"type": "boolean"},
					"has_invoice":     map[string]any{"type": "boolean"},
					"has_entry_print": map[string]any{"type": "boolean"},
				},
				"required": []string{"has_waybill", "has_invoice", "has_entry_print"},
			},
			"header_validation": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"owner_code":          checkProp(),
					"supplier_code":       checkProp(),
					"valuation":           checkProp(),
					"origin":              checkProp(),
					"preference":          checkProp(),
					"preference_rule":     checkProp(),
					"currency":            checkProp(),
					"incoterms":           checkProp(),
					"transport_insurance": checkProp(),
					"discounts":           checkProp(),
				},
				"required": []string{
					"owner_code", "supplier_code", "valuation", "origin",
					"preference", "preference_rule", "currency", "incoterms",
					"transport_insurance", "discounts",
				},
			},
			"free_text": map[string]any{"type": "string"},
			"auditor":   map[string]any{"type": "string"},
		},
		"required": []string{"extraction", "documents", "header_validation"},
	}
}

func checkProp() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"status":    map[string]any{"type": "string", "enum": []string{"Yes", "No", "N/A"}},
			"reasoning": map[string]any{"type": "string"},
		},
		"required": []string{"status"},
	}
}
