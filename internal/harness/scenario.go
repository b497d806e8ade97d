package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/querycanvas/internal/canvas"
	"github.com/roach88/querycanvas/internal/engine"
	"github.com/roach88/querycanvas/internal/querysql"
)

// Scenario defines a conformance test scenario: a gesture sequence on a
// fresh canvas plus assertions on the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden files.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is an optional catalog path (CUE directory, .cue file or
	// YAML file). Relative paths are resolved against the scenario file.
	Catalog string `yaml:"catalog,omitempty"`

	// Dialect selects identifier quoting. Default: plain.
	Dialect string `yaml:"dialect,omitempty"`

	// Alias selects self-join alias handling. Default: auto.
	Alias string `yaml:"alias,omitempty"`

	// Steps are applied in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final canvas.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one gesture. Exactly one gesture field must be set.
type Step struct {
	Place    *engine.PlaceRelation    `yaml:"place,omitempty"`
	Remove   *engine.RemoveInstance   `yaml:"remove,omitempty"`
	Move     *engine.MoveInstance     `yaml:"move,omitempty"`
	Activate *engine.ActivateField    `yaml:"activate,omitempty"`
	Cancel   *engine.CancelSession    `yaml:"cancel,omitempty"`
	Unlink   *engine.RemoveConnection `yaml:"unlink,omitempty"`
	SetKind  *engine.SetJoinKind      `yaml:"set_kind,omitempty"`
	Compile  *engine.RequestCompile   `yaml:"compile,omitempty"`
	Reset    *engine.ResetCanvas      `yaml:"reset,omitempty"`

	// Expect, if set, is checked against the step's outcome.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Gesture returns the step's gesture.
func (s Step) Gesture() (engine.Gesture, error) {
	var found []engine.Gesture
	if s.Place != nil {
		found = append(found, *s.Place)
	}
	if s.Remove != nil {
		found = append(found, *s.Remove)
	}
	if s.Move != nil {
		found = append(found, *s.Move)
	}
	if s.Activate != nil {
		found = append(found, *s.Activate)
	}
	if s.Cancel != nil {
		found = append(found, *s.Cancel)
	}
	if s.Unlink != nil {
		found = append(found, *s.Unlink)
	}
	if s.SetKind != nil {
		found = append(found, *s.SetKind)
	}
	if s.Compile != nil {
		found = append(found, *s.Compile)
	}
	if s.Reset != nil {
		found = append(found, *s.Reset)
	}

	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return nil, fmt.Errorf("no gesture (use one of: place, remove, move, activate, cancel, unlink, set_kind, compile, reset)")
	default:
		kinds := make([]string, len(found))
		for i, g := range found {
			kinds[i] = string(g.Kind())
		}
		return nil, fmt.Errorf("several gestures in one step: %s", strings.Join(kinds, ", "))
	}
}

// ExpectClause specifies the expected outcome of one step.
// An empty Error means the step must succeed.
type ExpectClause struct {
	// Error is the expected canvas error code, e.g. UNKNOWN_COLUMN.
	Error string `yaml:"error,omitempty"`

	// Session is "idle", "armed" or an exact "armed(i1.id)".
	Session string `yaml:"session,omitempty"`

	// Instance is the id a place step must allocate.
	Instance string `yaml:"instance,omitempty"`

	// Connection is the id an activate step must create.
	Connection string `yaml:"connection,omitempty"`

	// Changed is the expected changed flag of remove, cancel and unlink.
	Changed *bool `yaml:"changed,omitempty"`

	// Query is the expected text of a compile step.
	Query string `yaml:"query,omitempty"`
}

// Assertion validates the final canvas.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Query is the expected query (query_equals).
	Query string `yaml:"query,omitempty"`

	// Text is the expected substring (query_contains).
	Text string `yaml:"text,omitempty"`

	// Count is the expected count (instance_count, connection_count).
	Count int `yaml:"count,omitempty"`

	// State is the expected session state (session_state).
	State string `yaml:"state,omitempty"`

	// Portable is the expected portability (portable).
	Portable *bool `yaml:"portable,omitempty"`

	// Warning is a substring one warning must contain (portable).
	Warning string `yaml:"warning,omitempty"`
}

// Assertion type constants.
const (
	AssertQueryEquals     = "query_equals"
	AssertQueryContains   = "query_contains"
	AssertInstanceCount   = "instance_count"
	AssertConnectionCount = "connection_count"
	AssertSessionState    = "session_state"
	AssertPortable        = "portable"
)

// LoadScenario reads and parses a scenario YAML file. A relative catalog
// path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving a relative catalog path against basePath.
//
// Unknown fields are rejected so typos like "assertion:" fail loudly.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) && basePath != "" {
		scenario.Catalog = filepath.Join(basePath, scenario.Catalog)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml file in dir, sorted by path.
// If path is a file, only that scenario is loaded.
func LoadScenarios(path string) ([]*Scenario, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat scenarios: %w", err)
	}
	if !info.IsDir() {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return []*Scenario{s}, nil
	}

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(path, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to list scenarios: %w", err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	scenarios := make([]*Scenario, 0, len(files))
	for _, file := range files {
		s, err := LoadScenario(file)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// compiler builds the SQL compiler the scenario asks for.
func (s *Scenario) compiler() (*querysql.SQLCompiler, error) {
	dialect, err := querysql.ParseDialect(s.Dialect)
	if err != nil {
		return nil, err
	}
	alias, err := querysql.ParseAliasMode(s.Alias)
	if err != nil {
		return nil, err
	}
	return querysql.NewSQLCompiler(querysql.WithDialect(dialect), querysql.WithAliasMode(alias)), nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	if _, err := s.compiler(); err != nil {
		return err
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}

	return nil
}

var knownErrorCodes = map[string]bool{
	string(canvas.CodeUnknownInstance):   true,
	string(canvas.CodeUnknownConnection): true,
	string(canvas.CodeSameInstance):      true,
	string(canvas.CodeUnknownColumn):     true,
	string(canvas.CodeUnknownRelation):   true,
	string(canvas.CodeInvalidJoinKind):   true,
}

func validateStep(index int, step Step) error {
	if _, err := step.Gesture(); err != nil {
		return fmt.Errorf("steps[%d]: %w", index, err)
	}
	if step.Expect != nil && step.Expect.Error != "" && !knownErrorCodes[step.Expect.Error] {
		return fmt.Errorf("steps[%d]: unknown error code %q", index, step.Expect.Error)
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertQueryEquals:
		if a.Query == "" {
			return fmt.Errorf("assertions[%d]: query is required for query_equals", index)
		}
	case AssertQueryContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for query_contains", index)
		}
	case AssertInstanceCount, AssertConnectionCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertSessionState:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for session_state", index)
		}
	case AssertPortable:
		if a.Portable == nil && a.Warning == "" {
			return fmt.Errorf("assertions[%d]: portable or warning is required for portable", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
