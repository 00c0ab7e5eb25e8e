/*
Package install drives companion-package installation as a state machine.

States move Idle → Installing → Installed or Error; Error permits a retry
back through Installing, and Reset returns to Idle. The installer owns the
only durable mutable state in the pipeline and exposes it exclusively
through read-only snapshots and a synchronous progress callback — callers
never see the state mid-transition.

Installation is install-once per session and single-flight: a second caller
arriving while an install is running gets false back immediately, with no
duplicated network or verification work.
*/
package install
