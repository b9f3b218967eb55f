package store

import (
	"fmt"

	"github.com/fyrsmithlabs/swarmd/internal/roles"
)

// Every create validates required fields and enum domains before persisting,
// failing fast on the first violation.

func validateProject(p Project) error {
	return required("project", "name", p.Name)
}

func validateTask(t Task) error {
	if err := required("task", "project_id", t.ProjectID); err != nil {
		return err
	}
	if err := required("task", "title", t.Title); err != nil {
		return err
	}
	if !taskStatuses[t.Status] {
		return &ValidationError{Entity: "task", Field: "status", Reason: fmt.Sprintf("has unknown value %q", t.Status)}
	}
	if !priorities[t.Priority] {
		return &ValidationError{Entity: "task", Field: "priority", Reason: fmt.Sprintf("has unknown value %q", t.Priority)}
	}
	if t.Agent != "" && !roles.Valid(t.Agent) {
		return &ValidationError{Entity: "task", Field: "agent", Reason: fmt.Sprintf("has unknown value %q", t.Agent)}
	}
	return nil
}

func validatePheromone(p Pheromone) error {
	if !validPheromoneType(p.Type) {
		return &ValidationError{Entity: "pheromone", Field: "type", Reason: fmt.Sprintf("has unknown value %q", p.Type)}
	}
	if p.Strength < 0 || p.Strength > 1 {
		return &ValidationError{Entity: "pheromone", Field: "strength", Reason: fmt.Sprintf("must be in [0,1], got %g", p.Strength)}
	}
	if err := required("pheromone", "context", p.Context); err != nil {
		return err
	}
	if p.ExpiresAt.IsZero() {
		return &ValidationError{Entity: "pheromone", Field: "expires_at", Reason: "is required"}
	}
	return nil
}

func validateContract(c Contract) error {
	if err := required("contract", "project_id", c.ProjectID); err != nil {
		return err
	}
	if err := required("contract", "name", c.Name); err != nil {
		return err
	}
	if !contractTypes[c.Type] {
		return &ValidationError{Entity: "contract", Field: "type", Reason: fmt.Sprintf("has unknown value %q", c.Type)}
	}
	return required("contract", "specification", c.Specification)
}

func validateCodeModule(m CodeModule) error {
	if err := required("code_module", "project_id", m.ProjectID); err != nil {
		return err
	}
	if err := required("code_module", "name", m.Name); err != nil {
		return err
	}
	if !codeModuleTypes[m.Type] {
		return &ValidationError{Entity: "code_module", Field: "type", Reason: fmt.Sprintf("has unknown value %q", m.Type)}
	}
	return required("code_module", "file_path", m.FilePath)
}

func validateTest(t Test) error {
	if err := required("test", "project_id", t.ProjectID); err != nil {
		return err
	}
	if err := required("test", "name", t.Name); err != nil {
		return err
	}
	if !testTypes[t.Type] {
		return &ValidationError{Entity: "test", Field: "type", Reason: fmt.Sprintf("has unknown value %q", t.Type)}
	}
	return nil
}

func validateDecision(d Decision) error {
	if err := required("decision", "project_id", d.ProjectID); err != nil {
		return err
	}
	return required("decision", "title", d.Title)
}

func validateRelationship(r Relationship) error {
	if err := required("relationship", "from_id", r.FromID); err != nil {
		return err
	}
	if err := required("relationship", "to_id", r.ToID); err != nil {
		return err
	}
	if !relationTypes[r.Type] {
		return &ValidationError{Entity: "relationship", Field: "type", Reason: fmt.Sprintf("has unknown value %q", r.Type)}
	}
	if r.Type == RelImplementsEndpoint || r.Type == RelTestsEndpoint {
		if r.Properties["path"] == "" || r.Properties["method"] == "" {
			return &ValidationError{Entity: "relationship", Field: "properties", Reason: "must carry path and method for endpoint edges"}
		}
	}
	return nil
}
