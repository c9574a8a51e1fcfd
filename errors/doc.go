// Package errors provides structured error types for the TBL codec.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes the context needed to diagnose schema/data mismatches:
// table name, entry index, field path, schema type token and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
//		Table("ItemTableData", 12).
//		Path("effects", "[3]", "value").
//		Type("u32").
//		Detail("cannot convert string to integer").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnknownType(path, "q32")
//	err := errors.EntryLengthMismatch(errors.PhaseDecode, 12, 10)
//
// All errors implement the standard error interface and support errors.Is/As.
// IsKind matches a Kind regardless of phase:
//
//	if errors.IsKind(err, errors.KindSchemaNotFound) { ... }
package errors
