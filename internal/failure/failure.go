// Package failure defines the error taxonomy shared by every build step.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a build failure. A Kind is itself an error so callers can
// test with errors.Is(err, failure.CompileFailed).
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	DownloadFailed              Kind = "download failed"
	ExtractionFailed            Kind = "extraction failed"
	SourceIncomplete            Kind = "source incomplete"
	ToolchainNotFound           Kind = "toolchain not found"
	UnsupportedToolchainVersion Kind = "unsupported toolchain version"
	ConfigureFailed             Kind = "configure failed"
	CompileFailed               Kind = "compile failed"
	ArtifactNotFound            Kind = "artifact not found"
	InstallFailed               Kind = "install failed"
	MainBuildFailed             Kind = "main project build failed"
	MergeWarning                Kind = "merge skipped"
	MergeFailed                 Kind = "merge failed"
	PublishFailed               Kind = "publish failed"
	InvalidPlatform             Kind = "invalid platform"
	InvalidCatalog              Kind = "invalid unit catalog"
)

// Fatal reports whether a failure of kind k must stop the run.
func (k Kind) Fatal() bool {
	return k != MergeWarning
}

// Error is a failure raised by one step of the build.
type Error struct {
	Kind Kind
	Unit string // unit name, empty for run-wide steps
	Op   string // step that failed, e.g. "configure"
	Err  error
	Hint string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Unit != "" {
		b.WriteString(" ")
		b.WriteString(e.Unit)
	}
	b.WriteString(": ")
	b.WriteString(string(e.Kind))
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Hint != "" {
		b.WriteString(" (")
		b.WriteString(e.Hint)
		b.WriteString(")")
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches both the Kind and any wrapped error.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// New returns an *Error of the given kind.
func New(kind Kind, unit, op string, err error) *Error {
	return &Error{Kind: kind, Unit: unit, Op: op, Err: err}
}

// Newf is New with a formatted cause.
func Newf(kind Kind, unit, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Unit: unit, Op: op, Err: fmt.Errorf(format, args...)}
}

// WithHint attaches an actionable hint to e and returns it.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

// IsFatal reports whether err must terminate the run. Errors outside the
// taxonomy are always fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if k, ok := KindOf(err); ok {
		return k.Fatal()
	}
	return true
}
