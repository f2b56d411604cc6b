package rag

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformedResponse is returned when the envelope is neither an object nor a string.
var ErrMalformedResponse = errors.New("malformed rag response")

const (
	DecisionInformationOnly = "Information Only"
	AmountNotApplicable     = "Not applicable"
	noResponseSummary       = "No response available"
)

// Clause is one cited passage.
type Clause struct {
	Reference string `json:"Reference"`
	Text      string `json:"Text"`
}

// Justification explains a decision.
type Justification struct {
	Summary string   `json:"Summary"`
	Clauses []Clause `json:"Clauses"`
}

// Answer is the normalized query response.
type Answer struct {
	Decision      string        `json:"Decision"`
	Amount        string        `json:"Amount"`
	Justification Justification `json:"Justification"`
	Answer        string        `json:"answer"`
	Sources       []string      `json:"sources"`
}

// clauseLabels is checked in order; the first keyword found names the clause.
var clauseLabels = []struct {
	keyword string
	label   string
}{
	{"encryption", "Encryption Provisions"},
	{"privacy", "Privacy Provisions"},
	{"security", "Security Provisions"},
	{"data", "Data Handling"},
	{"user", "User Obligations"},
	{"right", "User Rights"},
	{"policy", "Policy Terms"},
	{"deletion", "Data Deletion"},
	{"storage", "Data Storage"},
}

var fencedJSON = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(\\{.*?\\})\\s*```")

// Normalize turns the loosely-typed response of the retrieval service into an
// Answer. Structured fields come first, then a fenced JSON block inside the
// summary overrides them, then a plain string is used as the summary.
func Normalize(raw []byte) (Answer, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Answer{}, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}

	var envelope any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&envelope); err != nil {
		// Not JSON at all; the body itself is the answer.
		return finish(fields{summary: string(raw)}), nil
	}

	var f fields
	switch v := envelope.(type) {
	case string:
		f.summary = v
	case map[string]any:
		f = fromObject(lowerKeys(v))
	default:
		return Answer{}, fmt.Errorf("%w: unexpected %T", ErrMalformedResponse, envelope)
	}

	applyFenced(&f)
	return finish(f), nil
}

type fields struct {
	decision   string
	amount     string
	summary    string
	clauses    []any
	hasClauses bool
}

func fromObject(obj map[string]any) fields {
	var f fields
	f.decision = asString(obj["decision"])
	f.amount = formatAmount(obj["amount"])

	switch j := obj["justification"].(type) {
	case map[string]any:
		j = lowerKeys(j)
		f.summary = asString(j["summary"])
		if c, ok := j["clauses"].([]any); ok {
			f.clauses, f.hasClauses = c, true
		}
	case string:
		f.summary = j
	}
	if !f.hasClauses {
		if c, ok := obj["relevant_clauses"].([]any); ok {
			f.clauses, f.hasClauses = c, true
		}
	}
	if strings.TrimSpace(f.summary) == "" {
		f.summary = asString(obj["answer"])
	}
	return f
}

// applyFenced lets a JSON object embedded in a fenced code block in the summary
// override the outer fields.
func applyFenced(f *fields) {
	m := fencedJSON.FindStringSubmatchIndex(f.summary)
	if m == nil {
		return
	}
	block := f.summary[m[2]:m[3]]

	dec := json.NewDecoder(strings.NewReader(block))
	dec.UseNumber()
	var embedded map[string]any
	if err := dec.Decode(&embedded); err != nil {
		return
	}
	embedded = lowerKeys(embedded)

	if d := asString(embedded["decision"]); d != "" {
		f.decision = d
	}
	if a := formatAmount(embedded["amount"]); a != "" {
		f.amount = a
	}

	rest := strings.TrimSpace(f.summary[:m[0]] + f.summary[m[1]:])
	switch j := embedded["justification"].(type) {
	case string:
		f.summary = j
	case map[string]any:
		j = lowerKeys(j)
		f.summary = asString(j["summary"])
		if c, ok := j["clauses"].([]any); ok {
			f.clauses, f.hasClauses = c, true
		}
	default:
		f.summary = rest
	}
	if c, ok := embedded["relevant_clauses"].([]any); ok {
		f.clauses, f.hasClauses = c, true
	}
}

func finish(f fields) Answer {
	out := Answer{
		Decision: strings.TrimSpace(f.decision),
		Amount:   strings.TrimSpace(f.amount),
		Justification: Justification{
			Summary: strings.TrimSpace(f.summary),
			Clauses: coerceClauses(f.clauses),
		},
	}
	if out.Decision == "" {
		out.Decision = DecisionInformationOnly
	}
	if out.Amount == "" {
		out.Amount = AmountNotApplicable
	}
	if out.Justification.Summary == "" {
		out.Justification.Summary = noResponseSummary
	}
	out.Answer = out.Justification.Summary
	out.Sources = make([]string, 0, len(out.Justification.Clauses))
	for _, c := range out.Justification.Clauses {
		out.Sources = append(out.Sources, c.Reference)
	}
	return out
}

func coerceClauses(items []any) []Clause {
	out := make([]Clause, 0, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case string:
			text := strings.TrimSpace(v)
			if text == "" {
				continue
			}
			out = append(out, Clause{Reference: ClauseLabel(text, i+1), Text: text})
		case map[string]any:
			v = lowerKeys(v)
			text := firstString(v, "text", "content", "excerpt")
			ref := firstString(v, "reference", "section", "ref", "title")
			if ref == "" && text == "" {
				continue
			}
			if ref == "" {
				ref = ClauseLabel(text, i+1)
			}
			out = append(out, Clause{Reference: ref, Text: text})
		}
	}
	return out
}

// ClauseLabel names a bare clause string by the first vocabulary keyword it
// contains, or "Document Section n" when none match.
func ClauseLabel(text string, n int) string {
	lower := strings.ToLower(text)
	for _, l := range clauseLabels {
		if strings.Contains(lower, l.keyword) {
			return l.label
		}
	}
	return "Document Section " + strconv.Itoa(n)
}

func lowerKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		lk := strings.ToLower(k)
		// Exact lower-case keys win over differently-cased duplicates.
		if _, exists := out[lk]; exists && k != lk {
			continue
		}
		out[lk] = v
	}
	return out
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(asString(m[k])); s != "" {
			return s
		}
	}
	return ""
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func formatAmount(v any) string {
	switch t := v.(type) {
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return t.String()
	case string:
		return strings.TrimSpace(t)
	default:
		return ""
	}
}
