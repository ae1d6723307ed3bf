// Package testkit holds test fixtures shared by several packages: a set of
// small C functions with known behaviour and helpers for unmapped memory.
// Fixtures are in a regular package because cgo is not allowed in test files.
package testkit
