package orchestrator

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/swarmd/internal/priming"
	"github.com/fyrsmithlabs/swarmd/internal/roles"
	"github.com/fyrsmithlabs/swarmd/internal/workflow"
)

// BuildPrompt renders the worker prompt for a task's current step: the
// role's prompt template, the phase descriptor, then the primed context
// sections that are non-empty.
func BuildPrompt(primed *priming.PrimedContext, step workflow.Step) string {
	var b strings.Builder

	if profile, ok := roles.ProfileFor(primed.Role); ok {
		b.WriteString(profile.PromptTemplate)
		b.WriteString("\n\n")
	}
	if desc, ok := workflow.DescriptorFor(step); ok {
		b.WriteString(desc.Text())
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Task: %s\n", primed.Task.Title)
	if primed.Task.Description != "" {
		fmt.Fprintf(&b, "%s\n", primed.Task.Description)
	}
	fmt.Fprintf(&b, "Complexity: %s\n\n", primed.Complexity)

	if len(primed.Decisions) > 0 {
		b.WriteString("Architectural decisions:\n")
		for _, d := range primed.Decisions {
			fmt.Fprintf(&b, "  - %s: %s\n", d.Title, d.Description)
		}
		b.WriteString("\n")
	}
	if len(primed.Contracts) > 0 {
		b.WriteString("Relevant contracts:\n")
		for _, c := range primed.Contracts {
			fmt.Fprintf(&b, "  - %s (%s): %s\n", c.Contract.Name, c.Contract.Type, c.Contract.Description)
		}
		b.WriteString("\n")
	}
	if len(primed.CodeModules) > 0 {
		b.WriteString("Relevant code modules:\n")
		for _, m := range primed.CodeModules {
			fmt.Fprintf(&b, "  - %s (%s)\n", m.Module.Name, m.Module.FilePath)
		}
		b.WriteString("\n")
	}
	if len(primed.Dependencies) > 0 {
		b.WriteString("Depends on completed tasks:\n")
		for _, d := range primed.Dependencies {
			fmt.Fprintf(&b, "  - %s [%s]\n", d.Title, d.Status)
		}
		b.WriteString("\n")
	}
	if primed.Pheromones.Total() > 0 {
		if len(primed.Pheromones.Guides) > 0 {
			b.WriteString("Guidance from prior work:\n")
			for _, p := range primed.Pheromones.Guides {
				fmt.Fprintf(&b, "  - %s\n", p.Context)
			}
		}
		if len(primed.Pheromones.Warnings) > 0 {
			b.WriteString("Warnings from prior failures:\n")
			for _, p := range primed.Pheromones.Warnings {
				fmt.Fprintf(&b, "  - %s\n", p.Context)
			}
		}
		b.WriteString("\n")
	}
	if len(primed.WorkspaceFiles) > 0 {
		b.WriteString("Workspace files of interest:\n")
		for _, f := range primed.WorkspaceFiles {
			fmt.Fprintf(&b, "  - %s\n", f.File.Path)
		}
		b.WriteString("\n")
	}
	if len(primed.ContractSnippets) > 0 {
		b.WriteString("Contract excerpts:\n")
		for _, s := range primed.ContractSnippets {
			fmt.Fprintf(&b, "--- %s (%s)\n%s\n", s.Snippet.File, s.Snippet.Description, s.Snippet.Content)
		}
		b.WriteString("\n")
	}
	if len(primed.SimilarTasks) > 0 {
		b.WriteString("Similar past tasks:\n")
		for _, s := range primed.SimilarTasks {
			fmt.Fprintf(&b, "  - %s [%s]\n", s.Task.Title, s.Task.Status)
		}
		b.WriteString("\n")
	}

	b.WriteString("Report IMPASSE: <reason> on its own line if you cannot proceed.\n")
	return b.String()
}
