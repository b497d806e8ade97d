package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the compiled query and trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Query    string       // Final compiled query
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		line := fmt.Sprintf("  [%d] %s %v", event.Seq, event.Kind, event.Args)
		if event.Error != "" {
			line += " -> " + event.Error
		}
		fmt.Fprintln(&buf, line)
	}

	fmt.Fprintf(&buf, "\nQuery:\n%s\n", e.Query)
	return buf.String()
}

func failure(result *Result, typ, expected, actual string) error {
	return &AssertionError{
		Type:     typ,
		Expected: expected,
		Actual:   actual,
		Query:    result.Query,
		Trace:    result.Trace,
	}
}

func assertQueryEquals(result *Result, a Assertion) error {
	want := strings.TrimRight(a.Query, "\n")
	if result.Query == want {
		return nil
	}
	return failure(result, a.Type, fmt.Sprintf("query %q", want), fmt.Sprintf("query %q", result.Query))
}

func assertQueryContains(result *Result, a Assertion) error {
	if strings.Contains(result.Query, a.Text) {
		return nil
	}
	return failure(result, a.Type, fmt.Sprintf("query containing %q", a.Text), "not found in query")
}

func assertInstanceCount(result *Result, a Assertion) error {
	if got := len(result.Design.Instances); got != a.Count {
		return failure(result, a.Type, fmt.Sprintf("%d instances", a.Count), fmt.Sprintf("%d instances", got))
	}
	return nil
}

func assertConnectionCount(result *Result, a Assertion) error {
	if got := len(result.Design.Connections); got != a.Count {
		return failure(result, a.Type, fmt.Sprintf("%d connections", a.Count), fmt.Sprintf("%d connections", got))
	}
	return nil
}

func assertSessionState(result *Result, a Assertion) error {
	if sessionMatches(a.State, result.Session) {
		return nil
	}
	return failure(result, a.Type, "session "+a.State, "session "+result.Session.String())
}

func assertPortable(result *Result, a Assertion) error {
	portable := len(result.Warnings) == 0
	if a.Portable != nil && *a.Portable != portable {
		return failure(result, a.Type,
			fmt.Sprintf("portable=%t", *a.Portable),
			fmt.Sprintf("portable=%t (warnings: %v)", portable, result.Warnings))
	}

	if a.Warning != "" {
		for _, w := range result.Warnings {
			if strings.Contains(w, a.Warning) {
				return nil
			}
		}
		return failure(result, a.Type, fmt.Sprintf("a warning containing %q", a.Warning), fmt.Sprintf("warnings: %v", result.Warnings))
	}
	return nil
}

// EvaluateAssertions runs every assertion against a result and returns
// the failure messages in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string

	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertQueryEquals:
			err = assertQueryEquals(result, a)
		case AssertQueryContains:
			err = assertQueryContains(result, a)
		case AssertInstanceCount:
			err = assertInstanceCount(result, a)
		case AssertConnectionCount:
			err = assertConnectionCount(result, a)
		case AssertSessionState:
			err = assertSessionState(result, a)
		case AssertPortable:
			err = assertPortable(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}

		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %s", i, err))
		}
	}

	return errs
}
