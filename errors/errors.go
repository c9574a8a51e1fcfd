package errors

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseParse  Phase = "parse"  // schema grammar
	PhaseLoad   Phase = "load"   // schema store lookup
	PhaseDecode Phase = "decode" // TBL to values
	PhaseEncode Phase = "encode" // values to TBL
	PhaseFetch  Phase = "fetch"  // remote schema download
	PhaseIO     Phase = "io"     // exchange documents and files
)

// Kind categorizes the error
type Kind string

const (
	KindBadMagic            Kind = "bad_magic"
	KindUnknownType         Kind = "unknown_type"
	KindEntryLengthMismatch Kind = "entry_length_mismatch"
	KindRepeatCountMismatch Kind = "repeat_count_mismatch"
	KindVersionMismatch     Kind = "version_mismatch"
	KindSchemaNotFound      Kind = "schema_not_found"
	KindTruncated           Kind = "truncated_input"
	KindTypeMismatch        Kind = "type_mismatch"
	KindFieldMissing        Kind = "field_missing"
	KindOverflow            Kind = "overflow"
	KindInvalidData         Kind = "invalid_data"
	KindInvalidUTF8         Kind = "invalid_utf8"
	KindInvalidInput        Kind = "invalid_input"
	KindDepthExceeded       Kind = "depth_exceeded"
	KindNotFound            Kind = "not_found"
)

// NoEntry marks an error that is not tied to a specific entry.
const NoEntry = -1

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Table  string
	Type   string
	Detail string
	Path   []string
	Entry  int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Table != "" {
		b.WriteString(" in table ")
		b.WriteString(strconv.Quote(e.Table))
	}
	if e.Entry > NoEntry {
		b.WriteString(" entry ")
		b.WriteString(strconv.Itoa(e.Entry))
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Type != "" {
		b.WriteString(": type ")
		b.WriteString(e.Type)
	}

	if e.Detail != "" {
		if e.Type != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. An empty Phase on the
// target matches any phase.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		if t.Phase != "" && t.Phase != e.Phase {
			return false
		}
		return e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether err or any error in its chain is an *Error of kind.
func IsKind(err error, kind Kind) bool {
	return errors.Is(err, &Error{Kind: kind})
}

// As is errors.As specialised to *Error.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// WithTable returns err annotated with the table name and entry index.
// Errors that already carry a table keep it.
func WithTable(err error, table string, entry int) error {
	e, ok := As(err)
	if !ok {
		return err
	}
	if e.Table == "" {
		e.Table = table
		e.Entry = entry
	}
	return e
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
			Entry: NoEntry,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Table sets the table name and entry index
func (b *Builder) Table(name string, entry int) *Builder {
	b.err.Table = name
	b.err.Entry = entry
	return b
}

// Type sets the schema type token
func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// BadMagic creates an invalid container magic error
func BadMagic(got []byte) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindBadMagic,
		Entry:  NoEntry,
		Detail: fmt.Sprintf("expected %q, got %q", "#TBL", got),
		Value:  got,
	}
}

// UnknownType creates an unrecognized type-token error
func UnknownType(path []string, token string) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindUnknownType,
		Entry:  NoEntry,
		Path:   path,
		Type:   token,
		Detail: "unrecognized type token",
	}
}

// EntryLengthMismatch creates an entry size mismatch error
func EntryLengthMismatch(phase Phase, got, want int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindEntryLengthMismatch,
		Entry:  NoEntry,
		Detail: fmt.Sprintf("entry is %d bytes, declared entry_length is %d", got, want),
		Value:  got,
	}
}

// RepeatCountMismatch creates a repeat length mismatch error
func RepeatCountMismatch(path []string, got, want int) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindRepeatCountMismatch,
		Entry:  NoEntry,
		Path:   path,
		Detail: fmt.Sprintf("got %d values, repeat count is %d", got, want),
		Value:  got,
	}
}

// VersionMismatch creates a schema version mismatch error
func VersionMismatch(path []string, name string, got, want int) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindVersionMismatch,
		Entry:  NoEntry,
		Path:   path,
		Detail: fmt.Sprintf("schema %q: data has version %d, registered version is %d", name, got, want),
		Value:  got,
	}
}

// SchemaNotFound creates a missing schema error
func SchemaNotFound(phase Phase, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindSchemaNotFound,
		Entry:  NoEntry,
		Detail: fmt.Sprintf("no schema registered for %q", name),
	}
}

// Truncated creates a truncated input error
func Truncated(path []string, pos int, cause error) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindTruncated,
		Entry:  NoEntry,
		Path:   path,
		Detail: fmt.Sprintf("input ends before field completes (position %d)", pos),
		Cause:  cause,
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, schemaType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Entry:  NoEntry,
		Path:   path,
		Type:   schemaType,
		Detail: "cannot use value of Go type " + goType,
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Entry:  NoEntry,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// FieldMissing creates a missing field error
func FieldMissing(phase Phase, path []string, fieldName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldMissing,
		Entry:  NoEntry,
		Path:   path,
		Detail: fmt.Sprintf("required field %q not found", fieldName),
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Entry:  NoEntry,
		Path:   path,
		Type:   targetType,
		Detail: fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:  value,
	}
}

// DepthExceeded creates a recursion limit error
func DepthExceeded(phase Phase, path []string, limit int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDepthExceeded,
		Entry:  NoEntry,
		Path:   path,
		Detail: fmt.Sprintf("nesting deeper than %d levels", limit),
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Entry:  NoEntry,
		Path:   path,
		Detail: detail,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Entry:  NoEntry,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Entry:  NoEntry,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Entry:  NoEntry,
		Detail: detail,
		Cause:  cause,
	}
}
