// Package app wires configuration, logging, metrics, the interpreter
// runtime, and the execution pipeline into a single dependency graph.
package app
