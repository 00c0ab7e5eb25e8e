/*
Package lang holds per-language glue snippets for the execution pipeline.

The engine, installer and test collector are language-agnostic; everything
that must be expressed in the interpreted language itself — stream
redirection, the script-style __file__ guard, memory sampling, module-cache
reset, post-install smoke checks, the test harness — lives in a Profile
value. The Python profile mirrors the browser worker's behavior; the
JavaScript profile targets the embedded goja runtime.
*/
package lang
