// Package coverage analyzes how well a contract is covered by the knowledge
// graph: which modules implement it, which tests validate it, which tasks it
// defines, and, for OpenAPI contracts, per-endpoint implementation and test
// coverage.
package coverage

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/swarmd/internal/logging"
	"github.com/fyrsmithlabs/swarmd/internal/store"
)

// EndpointImplementation links an endpoint to the module function serving it.
type EndpointImplementation struct {
	Module       store.CodeModule
	FunctionName string
}

// EndpointCoverage is the implementation and test status of one declared
// (path, method) pair of an OpenAPI contract.
type EndpointCoverage struct {
	Path            string
	Method          string
	Implementations []EndpointImplementation
	Tests           []store.Test
}

// Covered reports whether the endpoint has at least one implementation and
// one test.
func (e EndpointCoverage) Covered() bool {
	return len(e.Implementations) > 0 && len(e.Tests) > 0
}

// Coverage is the full coverage picture of one contract. Slices are empty,
// never nil, when the contract has no links.
type Coverage struct {
	Contract            store.Contract
	ImplementingModules []store.CodeModule
	ValidatingTests     []store.Test
	DefinedTasks        []store.Task
	EndpointCoverage    []EndpointCoverage
}

// Analyzer computes contract coverage from the knowledge store.
type Analyzer struct {
	store  store.Store
	logger *logging.Logger
}

// NewAnalyzer creates a coverage analyzer over the given store.
func NewAnalyzer(s store.Store, logger *logging.Logger) *Analyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Analyzer{store: s, logger: logger.Named("coverage")}
}

// GetContractCoverage loads the contract and fans out the reverse-edge and
// forward-edge queries in parallel. Unknown contract ids surface as
// store.ErrNotFound.
func (a *Analyzer) GetContractCoverage(ctx context.Context, contractID string) (*Coverage, error) {
	contract, err := a.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}

	cov := &Coverage{
		Contract:            *contract,
		ImplementingModules: []store.CodeModule{},
		ValidatingTests:     []store.Test{},
		DefinedTasks:        []store.Task{},
		EndpointCoverage:    []EndpointCoverage{},
	}

	var (
		implEdges     []store.Relationship
		testEdges     []store.Relationship
		endpointImpls []store.Relationship
		endpointTests []store.Relationship
		defined       []store.Relationship
		modules       []store.CodeModule
		tests         []store.Test
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		implEdges, err = a.reverseEdges(gctx, contractID, store.RelImplements, store.RelUses)
		return err
	})
	g.Go(func() error {
		var err error
		testEdges, err = a.reverseEdges(gctx, contractID, store.RelValidates, store.RelTests)
		return err
	})
	g.Go(func() error {
		var err error
		endpointImpls, err = a.store.ListRelationshipsTo(gctx, contractID, store.RelImplementsEndpoint)
		return err
	})
	g.Go(func() error {
		var err error
		endpointTests, err = a.store.ListRelationshipsTo(gctx, contractID, store.RelTestsEndpoint)
		return err
	})
	g.Go(func() error {
		var err error
		defined, err = a.store.ListRelationshipsFrom(gctx, contractID, store.RelDefines)
		return err
	})
	g.Go(func() error {
		var err error
		modules, err = a.store.ListCodeModules(gctx, contract.ProjectID)
		return err
	})
	g.Go(func() error {
		var err error
		tests, err = a.store.ListTests(gctx, contract.ProjectID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	moduleByID := make(map[string]store.CodeModule, len(modules))
	for _, m := range modules {
		moduleByID[m.ID] = m
	}
	testByID := make(map[string]store.Test, len(tests))
	for _, tc := range tests {
		testByID[tc.ID] = tc
	}

	seenModules := map[string]bool{}
	for _, edge := range implEdges {
		if m, ok := moduleByID[edge.FromID]; ok && !seenModules[m.ID] {
			seenModules[m.ID] = true
			cov.ImplementingModules = append(cov.ImplementingModules, m)
		}
	}
	for _, edge := range append(testEdges, endpointTests...) {
		if tc, ok := testByID[edge.FromID]; ok {
			cov.ValidatingTests = appendUniqueTest(cov.ValidatingTests, tc)
		}
	}
	for _, edge := range defined {
		task, err := a.store.GetTask(ctx, edge.ToID)
		if err != nil {
			continue
		}
		cov.DefinedTasks = append(cov.DefinedTasks, *task)
	}

	if contract.Type == store.ContractOpenAPI {
		cov.EndpointCoverage = endpointCoverage(contract.Specification, endpointImpls, endpointTests, moduleByID, testByID)
	}
	return cov, nil
}

func (a *Analyzer) reverseEdges(ctx context.Context, toID string, types ...store.RelationType) ([]store.Relationship, error) {
	var out []store.Relationship
	for _, t := range types {
		edges, err := a.store.ListRelationshipsTo(ctx, toID, t)
		if err != nil {
			return nil, err
		}
		out = append(out, edges...)
	}
	return out, nil
}

func appendUniqueTest(tests []store.Test, tc store.Test) []store.Test {
	for _, have := range tests {
		if have.ID == tc.ID {
			return tests
		}
	}
	return append(tests, tc)
}

// openAPIMethods is the set of operation keys recognized under a path item.
var openAPIMethods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"patch": true, "head": true, "options": true, "trace": true,
}

// openAPIDoc is the minimal shape needed to enumerate endpoints.
type openAPIDoc struct {
	Paths map[string]map[string]any `yaml:"paths"`
}

// endpointCoverage enumerates every declared (path, method) pair and joins
// the endpoint-tagged edges onto it. A specification that fails to parse
// yields no endpoints rather than an error.
func endpointCoverage(spec string, impls, tests []store.Relationship,
	moduleByID map[string]store.CodeModule, testByID map[string]store.Test) []EndpointCoverage {

	var doc openAPIDoc
	if err := yaml.Unmarshal([]byte(spec), &doc); err != nil {
		return []EndpointCoverage{}
	}

	paths := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := []EndpointCoverage{}
	for _, path := range paths {
		methods := make([]string, 0, len(doc.Paths[path]))
		for m := range doc.Paths[path] {
			if openAPIMethods[strings.ToLower(m)] {
				methods = append(methods, strings.ToUpper(m))
			}
		}
		sort.Strings(methods)

		for _, method := range methods {
			ec := EndpointCoverage{
				Path:            path,
				Method:          method,
				Implementations: []EndpointImplementation{},
				Tests:           []store.Test{},
			}
			for _, edge := range impls {
				if edgeMatches(edge, path, method) {
					if m, ok := moduleByID[edge.FromID]; ok {
						ec.Implementations = append(ec.Implementations, EndpointImplementation{
							Module:       m,
							FunctionName: edge.Properties["function"],
						})
					}
				}
			}
			for _, edge := range tests {
				if edgeMatches(edge, path, method) {
					if tc, ok := testByID[edge.FromID]; ok {
						ec.Tests = append(ec.Tests, tc)
					}
				}
			}
			out = append(out, ec)
		}
	}
	return out
}

func edgeMatches(edge store.Relationship, path, method string) bool {
	return edge.Properties["path"] == path &&
		strings.EqualFold(edge.Properties["method"], method)
}
