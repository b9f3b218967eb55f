// Package plan parses declarative project plans into a validated,
// dependency-ordered feature graph.
//
// A plan is a structured text document with required sections (Title,
// Overview, Features, optional Architecture Decisions) and a fixed
// per-feature field grammar:
//
//	# Plan title
//
//	## Overview
//	Free text.
//
//	## Features
//
//	### Feature name
//	- Priority: High
//	- Description: what to build
//	- Agent: coder
//	- Dependencies: Other feature, Another one
//	- Acceptance Criteria:
//	  - criterion
//	- Microtasks:
//	  - microtask
//
//	## Architecture Decisions
//	### Decision title
//	Free text rationale.
package plan

import (
	"bufio"
	"strings"

	"github.com/fyrsmithlabs/swarmd/internal/roles"
	"github.com/fyrsmithlabs/swarmd/internal/store"
)

// Feature is one declared unit of deliverable work.
type Feature struct {
	Name               string
	Priority           store.Priority
	Description        string
	Agent              roles.Role
	Dependencies       []string
	AcceptanceCriteria []string
	Microtasks         []string
}

// ArchDecision is a declared architecture decision.
type ArchDecision struct {
	Title       string
	Description string
}

// Document is a parsed and validated plan.
type Document struct {
	Title                 string
	Overview              string
	Features              []Feature
	ArchitectureDecisions []ArchDecision
}

// rawFeature carries unvalidated field values during parsing. presence
// tracks which fields appeared at all, distinguishing a missing field from
// an empty one.
type rawFeature struct {
	name       string
	fields     map[string]string
	lists      map[string][]string
	listsSeen  map[string]bool
	fieldsSeen map[string]bool
}

// Parse parses and validates a plan document. Validation order: document
// structure, per-feature fields, dependency-name resolution, cycle
// detection. It aborts on the first violation.
func Parse(planText string) (*Document, error) {
	doc, raws, err := scan(planText)
	if err != nil {
		return nil, err
	}
	if doc.Title == "" {
		return nil, &Error{Kind: ErrMissingSection, Section: "title"}
	}
	if strings.TrimSpace(doc.Overview) == "" {
		return nil, &Error{Kind: ErrMissingSection, Section: "overview"}
	}
	if len(raws) == 0 {
		return nil, &Error{Kind: ErrMissingSection, Section: "features"}
	}

	for _, raw := range raws {
		f, err := validateFeature(raw)
		if err != nil {
			return nil, err
		}
		doc.Features = append(doc.Features, f)
	}

	if err := resolveDependencies(doc.Features); err != nil {
		return nil, err
	}
	if err := detectCycles(doc.Features); err != nil {
		return nil, err
	}
	return doc, nil
}

// scan performs the purely syntactic pass.
func scan(planText string) (*Document, []rawFeature, error) {
	doc := &Document{}
	var raws []rawFeature

	const (
		secNone = iota
		secOverview
		secFeatures
		secDecisions
	)
	section := secNone
	var overview strings.Builder
	var current *rawFeature
	var currentDecision *ArchDecision
	var decisionBody strings.Builder
	activeList := ""

	flushDecision := func() {
		if currentDecision != nil {
			currentDecision.Description = strings.TrimSpace(decisionBody.String())
			doc.ArchitectureDecisions = append(doc.ArchitectureDecisions, *currentDecision)
			currentDecision = nil
			decisionBody.Reset()
		}
	}
	flushFeature := func() {
		if current != nil {
			raws = append(raws, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(planText))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "### "):
			name := strings.TrimSpace(strings.TrimPrefix(trimmed, "### "))
			if section == secFeatures {
				flushFeature()
				current = &rawFeature{
					name:       name,
					fields:     map[string]string{},
					lists:      map[string][]string{},
					listsSeen:  map[string]bool{},
					fieldsSeen: map[string]bool{},
				}
				activeList = ""
			} else if section == secDecisions {
				flushDecision()
				currentDecision = &ArchDecision{Title: name}
			}

		case strings.HasPrefix(trimmed, "## "):
			flushFeature()
			flushDecision()
			activeList = ""
			switch normalizeHeader(strings.TrimPrefix(trimmed, "## ")) {
			case "overview":
				section = secOverview
			case "features":
				section = secFeatures
			case "architecture decisions":
				section = secDecisions
			default:
				section = secNone
			}

		case strings.HasPrefix(trimmed, "# "):
			if doc.Title == "" {
				doc.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
			}

		case section == secOverview:
			overview.WriteString(line)
			overview.WriteString("\n")

		case section == secDecisions && currentDecision != nil:
			decisionBody.WriteString(line)
			decisionBody.WriteString("\n")

		case section == secFeatures && current != nil:
			scanFeatureLine(current, line, trimmed, &activeList)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, &Error{Kind: ErrMissingSection, Section: "document", Detail: err.Error()}
	}
	flushFeature()
	flushDecision()
	doc.Overview = strings.TrimSpace(overview.String())
	return doc, raws, nil
}

func scanFeatureLine(f *rawFeature, line, trimmed string, activeList *string) {
	indented := strings.HasPrefix(line, "  ") || strings.HasPrefix(line, "\t")

	// Continuation items of an active list ("  - item").
	if *activeList != "" && indented && strings.HasPrefix(trimmed, "- ") {
		item := strings.TrimSpace(strings.TrimPrefix(trimmed, "- "))
		if item != "" {
			f.lists[*activeList] = append(f.lists[*activeList], item)
		}
		return
	}

	if !strings.HasPrefix(trimmed, "- ") || indented {
		return
	}
	*activeList = ""

	body := strings.TrimPrefix(trimmed, "- ")
	key, value, found := strings.Cut(body, ":")
	if !found {
		return
	}
	key = normalizeHeader(key)
	value = strings.TrimSpace(value)

	switch key {
	case "acceptance criteria", "microtasks":
		f.listsSeen[key] = true
		*activeList = key
	default:
		f.fieldsSeen[key] = true
		f.fields[key] = value
	}
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validateFeature(raw rawFeature) (Feature, error) {
	f := Feature{Name: raw.name}
	if f.Name == "" {
		return f, &Error{Kind: ErrMissingField, Field: "name"}
	}

	priority, ok := raw.fields["priority"]
	if !ok {
		return f, &Error{Kind: ErrMissingField, Feature: f.Name, Field: "priority"}
	}
	switch normalizeHeader(priority) {
	case "low":
		f.Priority = store.PriorityLow
	case "medium":
		f.Priority = store.PriorityMedium
	case "high":
		f.Priority = store.PriorityHigh
	default:
		return f, &Error{Kind: ErrInvalidEnumValue, Feature: f.Name, Field: "priority",
			Detail: "expected Low, Medium or High, got " + priority}
	}

	description, ok := raw.fields["description"]
	if !ok {
		return f, &Error{Kind: ErrMissingField, Feature: f.Name, Field: "description"}
	}
	if strings.TrimSpace(description) == "" {
		return f, &Error{Kind: ErrEmptyRequiredField, Feature: f.Name, Field: "description"}
	}
	f.Description = description

	agent, ok := raw.fields["agent"]
	if !ok {
		return f, &Error{Kind: ErrMissingField, Feature: f.Name, Field: "agent"}
	}
	role, err := roles.Parse(normalizeHeader(agent))
	if err != nil {
		return f, &Error{Kind: ErrInvalidEnumValue, Feature: f.Name, Field: "agent", Detail: err.Error()}
	}
	f.Agent = role

	deps, ok := raw.fields["dependencies"]
	if !ok {
		return f, &Error{Kind: ErrMissingField, Feature: f.Name, Field: "dependencies"}
	}
	f.Dependencies = splitDependencies(deps)

	if !raw.listsSeen["acceptance criteria"] {
		return f, &Error{Kind: ErrMissingField, Feature: f.Name, Field: "acceptance criteria"}
	}
	f.AcceptanceCriteria = raw.lists["acceptance criteria"]
	if len(f.AcceptanceCriteria) == 0 {
		return f, &Error{Kind: ErrEmptyRequiredField, Feature: f.Name, Field: "acceptance criteria"}
	}

	if !raw.listsSeen["microtasks"] {
		return f, &Error{Kind: ErrMissingField, Feature: f.Name, Field: "microtasks"}
	}
	f.Microtasks = raw.lists["microtasks"]
	if len(f.Microtasks) == 0 {
		return f, &Error{Kind: ErrEmptyRequiredField, Feature: f.Name, Field: "microtasks"}
	}

	return f, nil
}

// splitDependencies parses a comma-separated dependency list. "none" and the
// empty string both mean no dependencies.
func splitDependencies(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || normalizeHeader(s) == "none" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
