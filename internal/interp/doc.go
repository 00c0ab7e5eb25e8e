/*
Package interp defines the interpreter collaborator surface.

# Overview

The execution pipeline never talks to a concrete language runtime directly.
Everything it needs — loading the companion package, running code, reading
and writing interpreter globals, best-effort interruption — is expressed by
the Interpreter interface, so the same installer/rewriter/engine stack works
against any runtime that can satisfy it.

Two adapters ship with the backend:

 1. gojart: an embedded goja VM for the JavaScript language profile
 2. remote: an HTTP bridge to an out-of-process Python worker

# Concurrency

An Interpreter is a single logical resource. Only one Run or Load call may
be in flight at a time; callers are expected to serialize. Interrupt is the
only method that may be called while a Run is outstanding.
*/
package interp
