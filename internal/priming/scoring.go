package priming

import (
	"sort"
	"strings"
	"time"

	"github.com/fyrsmithlabs/swarmd/internal/roles"
	"github.com/fyrsmithlabs/swarmd/internal/store"
)

// recencyWindow is the "recently touched" horizon granting a score bonus.
const recencyWindow = 7 * 24 * time.Hour

// clamp keeps relevance scores within [0,1] regardless of match count.
func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// ScoredModule is a code module with its relevance score.
type ScoredModule struct {
	Module store.CodeModule
	Score  float64
}

// ScoreCodeModules scores, sorts descending and truncates to max.
// Per module: +0.3 per keyword matched in name+path, the role's module bonus
// when the module fits the role's focus, +0.1 when updated inside the
// recency window.
func ScoreCodeModules(mods []store.CodeModule, keywords []string, role roles.Role, now time.Time, max int) []ScoredModule {
	w := roles.WeightsFor(role)
	out := make([]ScoredModule, 0, len(mods))
	for _, m := range mods {
		score := 0.3 * float64(matchCount(m.Name+" "+m.FilePath, keywords))
		if moduleFitsRole(m, w) {
			score += w.CodeModuleBonus
		}
		if now.Sub(m.UpdatedAt) <= recencyWindow {
			score += 0.1
		}
		out = append(out, ScoredModule{Module: m, Score: clamp(score)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

func moduleFitsRole(m store.CodeModule, w roles.RelevanceWeights) bool {
	if w.FavorsFunctionModules && m.Type == store.ModuleFunction {
		return true
	}
	path := strings.ToLower(m.FilePath)
	for _, hint := range w.PreferredPathHints {
		if strings.Contains(path, hint) {
			return true
		}
	}
	return false
}

// ScoredContract is a contract with its relevance score.
type ScoredContract struct {
	Contract store.Contract
	Score    float64
}

// ScoreContracts scores and sorts descending; no default truncation.
// Per contract: +0.4 per keyword matched in name+description, plus the
// role's contract bonus when matched — or unconditionally for roles whose
// weights mark contracts always relevant (Formalizer).
func ScoreContracts(contracts []store.Contract, keywords []string, role roles.Role) []ScoredContract {
	w := roles.WeightsFor(role)
	out := make([]ScoredContract, 0, len(contracts))
	for _, c := range contracts {
		matches := matchCount(c.Name+" "+c.Description, keywords)
		score := 0.4 * float64(matches)
		if w.ContractAlways || matches > 0 {
			score += w.ContractBonus
		}
		out = append(out, ScoredContract{Contract: c, Score: clamp(score)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// WorkspaceFile is a file visible in the task's isolated workspace.
type WorkspaceFile struct {
	Path    string
	ModTime time.Time
}

// ScoredFile is a workspace file with its relevance score.
type ScoredFile struct {
	File  WorkspaceFile
	Score float64
}

func isTestPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.Contains(lower, "test") || strings.Contains(lower, "spec")
}

func isDocPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".rst") ||
		strings.Contains(lower, "docs/")
}

func isScriptPath(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range []string{".ts", ".tsx", ".js", ".jsx"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// ScoreWorkspaceFiles scores, filters to score > 0.1, honors the
// include-tests/include-docs flags, sorts descending and truncates to max.
func ScoreWorkspaceFiles(files []WorkspaceFile, keywords []string, role roles.Role, now time.Time, includeTests, includeDocs bool, max int) []ScoredFile {
	w := roles.WeightsFor(role)
	out := make([]ScoredFile, 0, len(files))
	for _, f := range files {
		if !includeTests && isTestPath(f.Path) {
			continue
		}
		if !includeDocs && isDocPath(f.Path) {
			continue
		}
		score := 0.3 * float64(matchCount(f.Path, keywords))
		lower := strings.ToLower(f.Path)
		for _, hint := range w.PreferredPathHints {
			if strings.Contains(lower, hint) {
				score += w.WorkspaceFileBonus
				break
			}
		}
		if isScriptPath(f.Path) {
			score += 0.1
		}
		if now.Sub(f.ModTime) <= recencyWindow {
			score += 0.1
		}
		score = clamp(score)
		if score > 0.1 {
			out = append(out, ScoredFile{File: f, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

// ContractSnippet is an excerpt of a contract file offered as prompt context.
type ContractSnippet struct {
	File        string
	Description string
	Content     string
}

// ScoredSnippet is a contract snippet with its relevance score.
type ScoredSnippet struct {
	Snippet ContractSnippet
	Score   float64
}

// ScoreSnippets applies text-overlap scoring over file+description+content,
// filters to score > 0.1, sorts descending and truncates to max.
func ScoreSnippets(snippets []ContractSnippet, keywords []string, max int) []ScoredSnippet {
	out := make([]ScoredSnippet, 0, len(snippets))
	for _, s := range snippets {
		score := clamp(0.3 * float64(matchCount(s.File+" "+s.Description+" "+s.Content, keywords)))
		if score > 0.1 {
			out = append(out, ScoredSnippet{Snippet: s, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}
