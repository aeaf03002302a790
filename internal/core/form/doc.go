// Package form provides field state and the form state engine.
//
// A Field is an immutable value: SetValue and MarkTouched return a new Field.
// A Form owns an ordered, fixed set of fields and publishes a new State
// snapshot on every mutation, with FormIsValid recomputed before the snapshot
// becomes visible. Readers therefore never see a stale aggregate.
//
// Local validation failures are not errors. They are represented by
// Field.Valid, Field.Touched and State.Valid. The only errors the engine
// returns are ErrUnknownField (a programming mistake) and ErrFormInvalid
// (Submit on an invalid form).
package form
