// Package web provides HTTP handlers and utilities for the web interface.
package web

import (
	"fmt"
	"strings"

	"github.com/relicdb/relicdb/internal/executor"
)

// QueryPlan represents a parsed EXPLAIN output for display.
type QueryPlan struct {
	Type    string // "full heap scan" or "index scan"
	Indexes []string
	RawPlan string // original "plan: ..." line
}

// ParseExplainOutput parses the leading "plan: ..." line an Engine.Explain
// result prepends to its wrapped statement's own output.
func ParseExplainOutput(result *executor.Result) (*QueryPlan, error) {
	if result == nil {
		return nil, fmt.Errorf("nil result")
	}

	lines := strings.SplitN(result.Message, "\n", 2)
	first := strings.TrimSpace(lines[0])
	if !strings.HasPrefix(first, "plan: ") {
		return nil, fmt.Errorf("not an explain result")
	}
	rawPlan := strings.TrimPrefix(first, "plan: ")

	plan := &QueryPlan{RawPlan: rawPlan}
	if idx := strings.Index(rawPlan, "index scan via "); idx >= 0 {
		plan.Type = "index scan"
		names := strings.TrimPrefix(rawPlan, "index scan via ")
		for _, n := range strings.Split(names, ",") {
			plan.Indexes = append(plan.Indexes, strings.TrimSpace(n))
		}
	} else {
		plan.Type = "full heap scan"
	}

	return plan, nil
}

// FormatPlanHTML formats a QueryPlan as HTML for web display.
func (p *QueryPlan) FormatPlanHTML() string {
	var sb strings.Builder

	sb.WriteString(`<div class="query-plan">`)
	sb.WriteString(`<h4>Query Plan</h4>`)

	sb.WriteString(`<div class="plan-row">`)
	sb.WriteString(`<span class="plan-label">Access Method:</span>`)
	sb.WriteString(fmt.Sprintf(`<span class="plan-value access-%s">%s</span>`,
		strings.ToLower(strings.ReplaceAll(p.Type, " ", "-")), p.Type))
	sb.WriteString(`</div>`)

	if len(p.Indexes) > 0 {
		sb.WriteString(`<div class="plan-row">`)
		sb.WriteString(`<span class="plan-label">Indexes:</span>`)
		sb.WriteString(fmt.Sprintf(`<span class="plan-value">%s</span>`, strings.Join(p.Indexes, ", ")))
		sb.WriteString(`</div>`)
	}

	sb.WriteString(`</div>`)
	return sb.String()
}

// FormatPlanText formats a QueryPlan as plain text.
func (p *QueryPlan) FormatPlanText() string {
	var sb strings.Builder

	sb.WriteString("=== Query Plan ===\n")
	sb.WriteString(fmt.Sprintf("Access Method: %s\n", p.Type))
	if len(p.Indexes) > 0 {
		sb.WriteString(fmt.Sprintf("Indexes: %s\n", strings.Join(p.Indexes, ", ")))
	}

	return sb.String()
}
