/*
Package rewrite retargets snippet imports at the installed companion package.

Snippets were authored against a src/ repository layout; the installed wheel
exposes the same modules under the package root. The rewriter applies an
ordered, declarative rule table (embedded YAML, validated at load) in two
passes: global namespace-prefix rules over the whole text, then line-guarded
chapter rules that map bare module imports to fully-qualified paths.

The rewriter is deliberately not a parser. It performs line-local pattern
substitution and reports everything it did — and everything that looks
suspicious — in a Diagnostics record. It never fails; callers decide what to
do with diagnostics errors.
*/
package rewrite
