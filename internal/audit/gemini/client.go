package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/akintola/customs-audit/internal/audit"
)

// Audit implements audit.Auditor by sending the job's documents inline as
// base64 PDF parts and asking for JSON constrained by the audit schema.
// HTTP timeouts, rate limits, 5xx responses, and malformed model output are
// reported as transient; other rejections are permanent.
func (c *Client) Audit(ctx context.Context, jobID string, docs []audit.Document) (audit.Result, audit.Usage, error) {
	rid := uuid.New().String()
	start := time.Now()

	totalBytes := 0
	for _, d := range docs {
		totalBytes += len(d.Data)
	}
	c.log.Info("llm.audit.start",
		"req_id", rid,
		"job_id", jobID,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"documents", len(docs),
		"total_bytes", totalBytes,
	)

	schema := audit.BuildAuditJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": buildSystemPrompt(c.cfg.Broker)},
			{"role": "user", "content": buildUserContent(jobID, docs)},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, usage, httpErr := c.post(ctx, endpoint, body)
	if httpErr != nil {
		c.log.Error("llm.audit.http_error",
			"req_id", rid, "job_id", jobID, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return audit.Result{}, usage, classify(httpErr)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.audit.decode_error",
			"req_id", rid, "job_id", jobID, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return audit.Result{}, usage, audit.Transient(fmt.Errorf("decode gemini response: %w", err))
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.audit.no_choices",
			"req_id", rid, "job_id", jobID, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return audit.Result{}, usage, audit.Transient(fmt.Errorf("no choices in gemini response"))
	}
	content := []byte(stripFence(cc.Choices[0].Message.Content))

	if err := audit.ValidateJSONAgainstSchema(schema, content); err != nil {
		c.log.Error("llm.audit.schema_validation_failed",
			"req_id", rid, "job_id", jobID, "error", err, "content", string(content),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return audit.Result{}, usage, audit.Transient(fmt.Errorf("schema validation failed: %w", err))
	}

	var out audit.Result
	if err := json.Unmarshal(content, &out); err != nil {
		c.log.Error("llm.audit.unmarshal_failed",
			"req_id", rid, "job_id", jobID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return audit.Result{}, usage, audit.Transient(fmt.Errorf("unmarshal result: %w", err))
	}
	if out.Extraction.Broker == "" {
		out.Extraction.Broker = c.cfg.Broker
	}

	c.log.Info("llm.audit.ok",
		"req_id", rid,
		"job_id", jobID,
		"waybill", out.Extraction.Waybill,
		"entry_number", out.Extraction.EntryNumber,
		"full_set", out.Documents.FullSet(),
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, usage, nil
}

// statusError carries the provider status code so failures can be split
// into retryable and terminal.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gemini status %d: %s", e.code, e.body)
}

func classify(err error) error {
	if se, ok := err.(*statusError); ok {
		switch {
		case se.code == http.StatusRequestTimeout, se.code == http.StatusTooManyRequests:
			return audit.Transient(se)
		case se.code >= 500:
			return audit.Transient(se)
		default:
			return audit.Permanent(se)
		}
	}
	// Transport-level failure: DNS, connection reset, client timeout.
	return audit.Transient(err)
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, audit.Usage, error) {
	var usage audit.Usage
	b, err := json.Marshal(body)
	if err != nil {
		return nil, usage, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, usage, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, usage, fmt.Errorf("gemini http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.log.Warn("gemini response body close error", "error", err)
		}
	}(resp.Body)

	usage.Requests = 1
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, usage, &statusError{code: resp.StatusCode, body: buf.String()}
	}

	// Token counts ride on the same response envelope.
	var u struct {
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(buf.Bytes(), &u); err == nil {
		usage.InputTokens = u.Usage.PromptTokens
		usage.OutputTokens = u.Usage.CompletionTokens
	}
	return buf.Bytes(), usage, nil
}

func buildSystemPrompt(broker string) string {
	parts := []string{
		"You are a senior customs compliance auditor. Return ONLY JSON that matches the JSON Schema provided.",
		"You will receive the full document set for one customs job: typically a waybill, a commercial invoice, and an entry print.",
		"First record which document types are present.",
		"Extract the waybill number, entry number, entry date, job number, and audit month (format like 'Jan-2025') from the entry print.",
		"Then validate the entry header against the supporting documents, check by check.",
		"Each check status must be 'Yes' (correct), 'No' (discrepancy found), or 'N/A' (not applicable to this entry).",
		"Give short factual reasoning for every check, citing the values you compared.",
		"Checks: owner code, supplier code, valuation, origin, preference claim, preference rule, currency, incoterms, transport and insurance, discounts.",
		"If any required document is missing, mark checks that depend on it as 'No' and explain what could not be verified.",
		"Use 'free_text' for observations that do not fit a specific check.",
	}
	if broker != "" {
		parts = append(parts, "The customs broker for these entries is "+broker+".")
	}
	return strings.Join(parts, " ")
}

// buildUserContent assembles a multi-part user message: a text part naming
// the job, then one inline PDF part per document.
func buildUserContent(jobID string, docs []audit.Document) []map[string]any {
	parts := []map[string]any{
		{"type": "text", "text": fmt.Sprintf("Audit customs job %s. Documents attached: %d.", jobID, len(docs))},
	}
	for _, d := range docs {
		parts = append(parts, map[string]any{
			"type": "file",
			"file": map[string]any{
				"filename":  d.Name,
				"file_data": "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(d.Data),
			},
		})
	}
	return parts
}

// stripFence tolerates models that wrap JSON in a markdown code fence.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
