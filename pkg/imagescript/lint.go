package imagescript

import (
	"fmt"
	"regexp"
	"strings"
)

// unterminatedProperty matches a property line whose quoted value is not
// followed by a semicolon.
var unterminatedProperty = regexp.MustCompile(`\w+\s*:\s*".*"\s*$`)

// LintError describes a problem on one line of a script.
type LintError struct {
	Line    int
	Message string
}

func (e LintError) Error() string {
	return fmt.Sprintf("L%d: %s", e.Line, e.Message)
}

// Lint reports editor problems for a script. Line numbers are 1-based.
// Lint findings never affect compilation.
func Lint(script string) []LintError {
	var errs []LintError
	for i, line := range strings.Split(script, "\n") {
		if unterminatedProperty.MatchString(strings.TrimSpace(line)) {
			errs = append(errs, LintError{
				Line:    i + 1,
				Message: "Missing semicolon at the end of the line.",
			})
		}
	}
	return errs
}

// LintErr calls Lint and returns nil if there are no problems, or a combined
// error listing all of them.
func LintErr(script string) error {
	errs := Lint(script)
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("script has %d problem(s):\n  %s", len(errs), strings.Join(msgs, "\n  "))
}
