package plan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/swarmd/internal/roles"
	"github.com/fyrsmithlabs/swarmd/internal/store"
)

const validPlan = `# Billing service

## Overview
A service that renders and serves invoices.

## Features

### Invoice model
- Priority: High
- Description: Core invoice data model
- Agent: architect
- Dependencies: none
- Acceptance Criteria:
  - model covers line items and totals
- Microtasks:
  - define schema

### Invoice renderer
- Priority: Medium
- Description: Render invoices to PDF
- Agent: coder
- Dependencies: Invoice model
- Acceptance Criteria:
  - renders a golden invoice byte-identically
- Microtasks:
  - layout engine
  - font embedding

### Invoice API
- Priority: Medium
- Description: REST endpoint serving rendered invoices
- Agent: coder
- Dependencies: Invoice model, Invoice renderer
- Acceptance Criteria:
  - GET returns the rendered invoice
- Microtasks:
  - handler

## Architecture Decisions

### Use REST over gRPC
Clients are browsers, REST keeps the surface simple.
`

func TestParse_ValidPlan(t *testing.T) {
	doc, err := Parse(validPlan)
	require.NoError(t, err)

	assert.Equal(t, "Billing service", doc.Title)
	assert.Contains(t, doc.Overview, "renders and serves invoices")
	require.Len(t, doc.Features, 3)

	model := doc.Features[0]
	assert.Equal(t, "Invoice model", model.Name)
	assert.Equal(t, store.PriorityHigh, model.Priority)
	assert.Equal(t, roles.Architect, model.Agent)
	assert.Empty(t, model.Dependencies, `"none" means no dependencies`)
	assert.Equal(t, []string{"define schema"}, model.Microtasks)

	renderer := doc.Features[1]
	assert.Equal(t, []string{"Invoice model"}, renderer.Dependencies)
	assert.Len(t, renderer.Microtasks, 2)

	api := doc.Features[2]
	assert.Equal(t, []string{"Invoice model", "Invoice renderer"}, api.Dependencies)

	require.Len(t, doc.ArchitectureDecisions, 1)
	assert.Equal(t, "Use REST over gRPC", doc.ArchitectureDecisions[0].Title)
	assert.Contains(t, doc.ArchitectureDecisions[0].Description, "browsers")
}

func TestParse_MissingSections(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		section string
	}{
		{"no title", "## Overview\ntext\n## Features\n", "title"},
		{"no overview", "# T\n## Features\n### F\n- Priority: Low\n", "overview"},
		{"no features", "# T\n## Overview\ntext\n", "features"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.text)
			require.Error(t, err)
			assert.Equal(t, ErrMissingSection, KindOf(err))
			var pe *Error
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tc.section, pe.Section)
		})
	}
}

// mutatePlan drops or rewrites one line of the valid plan.
func mutatePlan(t *testing.T, match, replacement string) string {
	t.Helper()
	require.Contains(t, validPlan, match)
	return strings.Replace(validPlan, match, replacement, 1)
}

func TestParse_FeatureFieldValidation(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		kind  ErrorKind
		field string
	}{
		{
			"missing priority",
			mutatePlan(t, "- Priority: High\n", ""),
			ErrMissingField, "priority",
		},
		{
			"invalid priority",
			mutatePlan(t, "- Priority: High", "- Priority: Urgent"),
			ErrInvalidEnumValue, "priority",
		},
		{
			"invalid agent",
			mutatePlan(t, "- Agent: architect", "- Agent: wizard"),
			ErrInvalidEnumValue, "agent",
		},
		{
			"missing dependencies",
			mutatePlan(t, "- Dependencies: none\n", ""),
			ErrMissingField, "dependencies",
		},
		{
			"empty description",
			mutatePlan(t, "- Description: Core invoice data model", "- Description:"),
			ErrEmptyRequiredField, "description",
		},
		{
			"empty acceptance criteria",
			mutatePlan(t, "- Acceptance Criteria:\n  - model covers line items and totals\n", "- Acceptance Criteria:\n"),
			ErrEmptyRequiredField, "acceptance criteria",
		},
		{
			"missing microtasks",
			mutatePlan(t, "- Microtasks:\n  - define schema\n", ""),
			ErrMissingField, "microtasks",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.text)
			require.Error(t, err)
			var pe *Error
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tc.kind, pe.Kind)
			assert.Equal(t, tc.field, pe.Field)
		})
	}
}

func TestParse_UnresolvedDependency(t *testing.T) {
	text := mutatePlan(t, "- Dependencies: Invoice model, Invoice renderer",
		"- Dependencies: Invoice model, Payment gateway")
	_, err := Parse(text)
	require.Error(t, err)
	assert.Equal(t, ErrUnresolvedDependency, KindOf(err))
	assert.Contains(t, err.Error(), "Payment gateway")
}

func TestParse_CircularDependency(t *testing.T) {
	text := mutatePlan(t, "- Dependencies: none", "- Dependencies: Invoice API")
	_, err := Parse(text)
	require.Error(t, err)

	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCircularDependency, pe.Kind)
	require.NotEmpty(t, pe.Cycle)
	assert.Equal(t, pe.Cycle[0], pe.Cycle[len(pe.Cycle)-1], "cycle closes on itself")
}

func TestParse_SelfDependencyIsCircular(t *testing.T) {
	text := mutatePlan(t, "- Dependencies: Invoice model\n- Acceptance Criteria:\n  - renders a golden invoice byte-identically",
		"- Dependencies: Invoice renderer\n- Acceptance Criteria:\n  - renders a golden invoice byte-identically")
	_, err := Parse(text)
	require.Error(t, err)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCircularDependency, pe.Kind)
	assert.Equal(t, []string{"Invoice renderer", "Invoice renderer"}, pe.Cycle)
}
