// Package model provides the data types of a service request composition.
//
// This package contains type definitions only. All other internal packages
// import model; model imports nothing internal.
//
// Key constraints carried by the types:
//   - SelectionEntry.Quantity always equals len(SelectionEntry.Instances)
//   - AdditionalInfo never holds a nil value; absent means "not yet answered"
//   - All JSON tags use the camelCase names of the composition snapshot; the
//     snake_case wire shape lives in internal/wire
package model
