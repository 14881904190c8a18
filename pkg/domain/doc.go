// Package domain contains the core value types of the dinky runtime: the
// immutable story model produced by the compiler (knots, stitches, blocks,
// declarations) and the mutable session state the interpreter walks over
// (variables, visit counters, pending paragraphs and choices).
//
// The package is dependency-free so that adapters (stores, transports,
// presentation) can share types without pulling in the engine.
package domain
