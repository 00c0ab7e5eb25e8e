/*
Package exec orchestrates snippet execution against the interpreter.

The engine threads one snippet through the full pipeline: optional import
rewriting (gated on the companion package being installed), a script-style
file guard, output-stream redirection, the interpreter call itself with a
best-effort timeout, and memory sampling. Whatever happens — success,
exception, timeout — the caller gets a structured Result back, never an
unhandled failure, and the interpreter's original output streams are
restored on every exit path.

Timeouts are best-effort by design: the interpreter is asked to raise an
internal exit signal, which cannot be guaranteed to stop a runaway loop.

The engine does not serialize concurrent Execute calls; the interpreter is
a single logical resource and callers are expected to run one request at a
time.
*/
package exec
