// Package extract holds the field extractors that turn a marc.Record into
// normalized values for index fields.
//
// Extractors are pure functions of the record. Malformed values are dropped
// (and logged at debug level) rather than returned as errors, so one bad
// subfield never fails a whole record. A nil slice or false ok means
// "no value" and the caller should omit the field.
package extract
