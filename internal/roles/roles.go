// Package roles defines the closed set of worker roles and their per-role
// prompt templates and relevance weights. All role-keyed branching in swarmd
// goes through the lookup table here rather than ad hoc string switches.
package roles

import "fmt"

// Role identifies a worker specialization.
type Role string

const (
	SpecWriter Role = "spec-writer"
	Formalizer Role = "formalizer"
	Prototyper Role = "prototyper"
	Architect  Role = "architect"
	Coder      Role = "coder"
	Tester     Role = "tester"
)

// All returns every role in pipeline order.
func All() []Role {
	return []Role{SpecWriter, Formalizer, Prototyper, Architect, Coder, Tester}
}

// Valid reports whether r is a known role.
func Valid(r Role) bool {
	_, ok := profiles[r]
	return ok
}

// Parse resolves a plan-document agent name to a Role.
func Parse(name string) (Role, error) {
	r := Role(name)
	if !Valid(r) {
		return "", fmt.Errorf("unknown role %q", name)
	}
	return r, nil
}

// RelevanceWeights are the role-specific scoring bonuses applied by the
// context prioritization engine.
type RelevanceWeights struct {
	// CodeModuleBonus is added when a code module matches the role's focus
	// (e.g. test paths and functions for Tester).
	CodeModuleBonus float64

	// ContractBonus is added for contracts relevant to the role.
	ContractBonus float64

	// ContractAlways grants ContractBonus unconditionally (Formalizer works
	// on contracts regardless of keyword overlap).
	ContractAlways bool

	// WorkspaceFileBonus is added for workspace files of the role's
	// preferred kinds.
	WorkspaceFileBonus float64

	// FavorsFunctionModules marks roles that favor function-typed code
	// modules regardless of path (Tester).
	FavorsFunctionModules bool

	// PreferredPathHints mark filename/path fragments the role favors.
	PreferredPathHints []string
}

// Profile bundles everything the orchestrator needs to know about a role.
type Profile struct {
	Role           Role
	Description    string
	PromptTemplate string
	Weights        RelevanceWeights
}

var profiles = map[Role]Profile{
	SpecWriter: {
		Role:        SpecWriter,
		Description: "writes requirement specifications from feature descriptions",
		PromptTemplate: "You are the requirements specialist. Produce a precise requirements " +
			"specification for the task below. State acceptance criteria as testable statements.",
		Weights: RelevanceWeights{
			ContractBonus:      0.2,
			WorkspaceFileBonus: 0.3,
			PreferredPathHints: []string{"readme", "doc", "spec", ".md"},
		},
	},
	Formalizer: {
		Role:        Formalizer,
		Description: "turns requirements into formal contracts (OpenAPI, JSON Schema, properties)",
		PromptTemplate: "You are the contract formalizer. Translate the requirements into formal " +
			"contracts: OpenAPI for endpoints, JSON Schema for data, property definitions for invariants.",
		Weights: RelevanceWeights{
			ContractBonus:      0.4,
			ContractAlways:     true,
			WorkspaceFileBonus: 0.3,
			PreferredPathHints: []string{"contract", "schema", "openapi", "api", ".yaml", ".json"},
		},
	},
	Prototyper: {
		Role:        Prototyper,
		Description: "builds throwaway prototypes proving the contracts are implementable",
		PromptTemplate: "You are the prototyper. Build the smallest runnable prototype that " +
			"exercises the formalized contracts end to end. Throwaway code is acceptable.",
		Weights: RelevanceWeights{
			CodeModuleBonus:    0.2,
			ContractBonus:      0.3,
			WorkspaceFileBonus: 0.2,
			PreferredPathHints: []string{"prototype", "example", "demo"},
		},
	},
	Architect: {
		Role:        Architect,
		Description: "designs module boundaries and integration points",
		PromptTemplate: "You are the architect. Design the module structure, boundaries and " +
			"integration points for the implementation, referencing prior architectural decisions.",
		Weights: RelevanceWeights{
			CodeModuleBonus:    0.2,
			ContractBonus:      0.3,
			WorkspaceFileBonus: 0.2,
			PreferredPathHints: []string{"design", "architecture", "adr", ".md"},
		},
	},
	Coder: {
		Role:        Coder,
		Description: "implements production code against the designed architecture",
		PromptTemplate: "You are the implementer. Write production code satisfying the contracts " +
			"and the architecture. Follow existing code conventions in the workspace.",
		Weights: RelevanceWeights{
			CodeModuleBonus:    0.2,
			ContractBonus:      0.2,
			WorkspaceFileBonus: 0.3,
			PreferredPathHints: []string{"src", "internal", "pkg", "lib"},
		},
	},
	Tester: {
		Role:        Tester,
		Description: "writes and runs tests validating the implementation against contracts",
		PromptTemplate: "You are the tester. Write tests validating the implementation against " +
			"every contract, covering edge cases the requirements name.",
		Weights: RelevanceWeights{
			CodeModuleBonus:       0.2,
			ContractBonus:         0.3,
			WorkspaceFileBonus:    0.3,
			FavorsFunctionModules: true,
			PreferredPathHints:    []string{"test", "spec", "_test", "fixture"},
		},
	},
}

// ProfileFor returns the profile for a role. The bool is false for unknown roles.
func ProfileFor(r Role) (Profile, bool) {
	p, ok := profiles[r]
	return p, ok
}

// WeightsFor returns the relevance weights for a role, zero-valued when unknown.
func WeightsFor(r Role) RelevanceWeights {
	return profiles[r].Weights
}
