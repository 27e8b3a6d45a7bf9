package ecma

import (
	"testing"

	"github.com/kr/pretty"
)

// dumpf renders v as a multi-line struct dump on test failure, grounded in
// the teacher's own indirect kr/pretty dependency (promoted here to a
// direct, exercised one — see SPEC_FULL.md's Test tooling section).
func dumpf(t *testing.T, label string, v interface{}) {
	t.Helper()
	t.Logf("%s:\n%s", label, pretty.Sprint(v))
}
