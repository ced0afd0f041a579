package model

import "errors"

var (
    // ErrInvalidConfiguration marks malformed input: non-positive capacity
    // bound, empty locations, mismatched matrices, inconsistent list lengths.
    ErrInvalidConfiguration = errors.New("invalid configuration")

    // ErrIndexOutOfRange marks a virtual or physical index outside its bound.
    ErrIndexOutOfRange = errors.New("index out of range")

    // ErrNoSolution is returned when the engine found no feasible assignment
    // within its budget. It is a reportable outcome, not a crash.
    ErrNoSolution = errors.New("no solution found")

    // ErrInvariantViolated marks a report that does not conserve load.
    ErrInvariantViolated = errors.New("invariant violated")
)
