// Package vm implements the hearth runtime that compiled functional
// programs execute against.
//
// This package contains:
//   - Tagged value representation with immediate integers
//   - Per-unit semi-space heaps and the copying collector
//   - The foreign memory tracker and raw memory primitives
//   - Value stacks, call frames and trampolined tail calls
//   - Execution units, mailboxes and deep-copy message passing
package vm
