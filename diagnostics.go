package ecma

import (
	"fmt"
	"strings"

	"github.com/go-sourcemap/sourcemap"
	"github.com/google/pprof/profile"
	"golang.org/x/text/width"
)

// Tracer observes evaluator lifecycle events. The zero-value-friendly
// noopTracer is installed by NewRealm; embedders that want a call-stack
// trace or step profile install their own.
type Tracer interface {
	EnterCall(name string, ref SourceReference)
	LeaveCall(name string)
	Step(kind string, ref SourceReference)
	HostFailure(err *HostError)
}

type noopTracer struct{}

func (noopTracer) EnterCall(string, SourceReference) {}
func (noopTracer) LeaveCall(string)                  {}
func (noopTracer) Step(string, SourceReference)      {}
func (noopTracer) HostFailure(*HostError)            {}

// callStackTracer is an opt-in Tracer that records the live call stack so
// CaptureCallStackProfile has something to turn into a pprof profile when
// a *HostError escapes.
type callStackTracer struct {
	frames []string
}

// NewCallStackTracer builds a Tracer embedders can install on
// Realm.Tracer to get pprof-shaped call-stack capture on host failure.
func NewCallStackTracer() *callStackTracer { return &callStackTracer{} }

func (t *callStackTracer) EnterCall(name string, _ SourceReference) {
	t.frames = append(t.frames, name)
}
func (t *callStackTracer) LeaveCall(name string) {
	if len(t.frames) > 0 {
		t.frames = t.frames[:len(t.frames)-1]
	}
}
func (t *callStackTracer) Step(string, SourceReference) {}
func (t *callStackTracer) HostFailure(*HostError)        {}

// CaptureCallStackProfile turns the tracer's currently live call frames
// into a minimal pprof profile.Profile (one sample, one location per
// frame), suitable for writing out alongside a *HostError report.
func CaptureCallStackProfile(t *callStackTracer) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "host_failure", Unit: "count"}},
		PeriodType: &profile.ValueType{Type: "host_failure", Unit: "count"},
		Period:     1,
	}
	var locs []*profile.Location
	for i := len(t.frames) - 1; i >= 0; i-- {
		id := uint64(len(locs) + 1)
		fn := &profile.Function{ID: id, Name: t.frames[i]}
		p.Function = append(p.Function, fn)
		loc := &profile.Location{ID: id, Line: []profile.Line{{Function: fn}}}
		p.Location = append(p.Location, loc)
		locs = append(locs, loc)
	}
	p.Sample = append(p.Sample, &profile.Sample{Location: locs, Value: []int64{1}})
	return p
}

// ResolveOriginalPosition maps a generated (line, column) position back
// through a source map to the file/line/column it was authored at, so a
// *HostError/*ThrownValue can be reported against source the user wrote
// rather than whatever a bundler/transpiler produced.
func ResolveOriginalPosition(sourceMapJSON []byte, genLine, genColumn int) (file string, line, column int, ok bool) {
	smap, err := sourcemap.Parse("", sourceMapJSON)
	if err != nil {
		return "", 0, 0, false
	}
	file, _, line, column, ok = smap.Source(genLine, genColumn)
	return file, line, column, ok
}

// CaretLine renders a caret ("^") under column col of line, accounting for
// East-Asian wide/fullwidth runes occupying two terminal cells so the
// caret still lines up visually under the offending character.
func CaretLine(line string, col int) string {
	var b strings.Builder
	count := 0
	for i, r := range line {
		if i >= col {
			break
		}
		w := 1
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			w = 2
		}
		count += w
	}
	return strings.Repeat(" ", count) + "^"
}

// FormatSourceSnippet renders a one-line "file:offset" header (ref.File and
// the start byte offset ref.Start; col only positions the caret) followed
// by the offending source line and a caret, the shape every *HostError/
// *ThrownValue report built on top of this module uses.
func FormatSourceSnippet(ref SourceReference, line string, col int) string {
	return fmt.Sprintf("%s:%d\n%s\n%s", ref.File, ref.Start, line, CaretLine(line, col))
}
