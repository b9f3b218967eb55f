// Package workflow implements the fixed task pipeline: an ordered sequence
// of phases, each bound to one responsible role, with readiness checks over
// completed predecessors and critique gating before a phase may advance.
package workflow

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/swarmd/internal/roles"
)

// Step is one phase of the task pipeline.
type Step string

const (
	StepDefineRequirements Step = "DEFINE_REQUIREMENTS"
	StepFormalizeContracts Step = "FORMALIZE_CONTRACTS"
	StepPrototypeLogic     Step = "PROTOTYPE_LOGIC"
	StepDesignArchitecture Step = "DESIGN_ARCHITECTURE"
	StepImplementCode      Step = "IMPLEMENT_CODE"
	StepTestValidate       Step = "TEST_VALIDATE"
	StepCompleted          Step = "COMPLETED"
)

// phaseSpec binds a step to its responsible role, its required predecessors
// and its prompt descriptor fields.
type phaseSpec struct {
	role             roles.Role
	requires         []Step
	critiqueRequired bool
	inputs           []string
	outputs          []string
}

var phases = map[Step]phaseSpec{
	StepDefineRequirements: {
		role:    roles.SpecWriter,
		inputs:  []string{"feature description", "acceptance criteria"},
		outputs: []string{"requirements document"},
	},
	StepFormalizeContracts: {
		role:             roles.Formalizer,
		requires:         []Step{StepDefineRequirements},
		critiqueRequired: true,
		inputs:           []string{"requirements document"},
		outputs:          []string{"contract specifications (OpenAPI, JSON Schema or property definitions)"},
	},
	StepPrototypeLogic: {
		role:     roles.Prototyper,
		requires: []Step{StepFormalizeContracts},
		inputs:   []string{"contract specifications"},
		outputs:  []string{"runnable prototype"},
	},
	StepDesignArchitecture: {
		role:             roles.Architect,
		requires:         []Step{StepPrototypeLogic},
		critiqueRequired: true,
		inputs:           []string{"prototype", "contract specifications"},
		outputs:          []string{"architecture design", "module boundaries"},
	},
	StepImplementCode: {
		role:             roles.Coder,
		requires:         []Step{StepDesignArchitecture},
		critiqueRequired: true,
		inputs:           []string{"architecture design", "contract specifications"},
		outputs:          []string{"production code", "registered code modules"},
	},
	StepTestValidate: {
		role:             roles.Tester,
		requires:         []Step{StepImplementCode},
		critiqueRequired: true,
		inputs:           []string{"production code", "contract specifications"},
		outputs:          []string{"test suite", "validation report"},
	},
	StepCompleted: {},
}

// sequence is the fixed execution order.
var sequence = []Step{
	StepDefineRequirements,
	StepFormalizeContracts,
	StepPrototypeLogic,
	StepDesignArchitecture,
	StepImplementCode,
	StepTestValidate,
	StepCompleted,
}

// Steps returns every step in execution order, terminal step last.
func Steps() []Step {
	out := make([]Step, len(sequence))
	copy(out, sequence)
	return out
}

// Valid reports whether s is a known step.
func Valid(s Step) bool {
	_, ok := phases[s]
	return ok
}

// FirstStep returns the entry step of the pipeline.
func FirstStep() Step {
	return sequence[0]
}

// Next returns the successor of the given step. The terminal step has no
// successor, reported by ok=false. Unknown steps also report ok=false.
func Next(s Step) (Step, bool) {
	for i, step := range sequence {
		if step == s && i+1 < len(sequence) {
			return sequence[i+1], true
		}
	}
	return "", false
}

// RoleFor returns the role responsible for the step.
func RoleFor(s Step) roles.Role {
	return phases[s].role
}

// RequiredPreviousSteps returns the predecessors that must be completed
// before the step may begin.
func RequiredPreviousSteps(s Step) []Step {
	req := phases[s].requires
	out := make([]Step, len(req))
	copy(out, req)
	return out
}

// CritiqueRequired reports whether the step's artifact is gated by a
// critique before the pipeline advances.
func CritiqueRequired(s Step) bool {
	return phases[s].critiqueRequired
}

// PromptDescriptor is the structured-text description of a phase handed to
// a worker: phase name, responsible role, required inputs, expected outputs.
type PromptDescriptor struct {
	Step            Step
	Role            roles.Role
	RequiredInputs  []string
	ExpectedOutputs []string
}

// DescriptorFor returns the prompt descriptor for a step. The terminal step
// has none.
func DescriptorFor(s Step) (PromptDescriptor, bool) {
	spec, ok := phases[s]
	if !ok || s == StepCompleted {
		return PromptDescriptor{}, false
	}
	return PromptDescriptor{
		Step:            s,
		Role:            spec.role,
		RequiredInputs:  spec.inputs,
		ExpectedOutputs: spec.outputs,
	}, true
}

// Text renders the descriptor as structured text suitable for embedding in
// a worker prompt.
func (d PromptDescriptor) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Phase: %s\n", d.Step)
	fmt.Fprintf(&b, "Role: %s\n", d.Role)
	b.WriteString("Required inputs:\n")
	for _, in := range d.RequiredInputs {
		fmt.Fprintf(&b, "  - %s\n", in)
	}
	b.WriteString("Expected outputs:\n")
	for _, out := range d.ExpectedOutputs {
		fmt.Fprintf(&b, "  - %s\n", out)
	}
	return b.String()
}
