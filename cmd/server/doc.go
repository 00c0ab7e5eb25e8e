// Command server runs the companion backend: package installation,
// import rewriting, sandboxed execution, and test collection over HTTP.
package main
