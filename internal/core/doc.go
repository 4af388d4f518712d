// Package core translates REST-style resource paths into row operations on a
// sheet-based document store.
//
// This package holds all request-to-row logic independent of the HTTP
// transport. It can be driven by web handlers, CLI tools, or tests against any
// [Store] implementation.
//
// # Architecture
//
// One request maps to one short-lived [Document] handle:
//
//  1. The resource path is split by [ParsePath] into an operation selector and
//     positional arguments ([SheetIndexArg], [RowIDArg]).
//  2. [Service] opens a fresh document, fetching sheet metadata and rows.
//  3. Store records are rendered as header-ordered [Row] values by [Serialize].
//  4. [LocateByID] and [LocateByColumnValue] find zero-based positions,
//     returning [NotFound] when nothing matches.
//  5. Writes assign ids with [NextID], merge patches field by field and
//     delete by store-native [RowRef].
//
// Nothing is cached between requests. Inserts from separate processes may assign
// the same id; the store offers no compare-and-set to prevent it.
//
// # Error Handling
//
// Failures are sentinel errors wrapped with context ([ErrMalformedRequest],
// [ErrInvalidPayload], [ErrRowNotFound], ...). [MapError] turns any error into
// a [UserMessage] with a support code:
//
//   - REQ001-REQ006: malformed requests and payloads
//   - NF001-NF002: sheet or row not found
//   - STORE001: upstream store failure
package core
