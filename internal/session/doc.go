/*
Package session drives one generation job at a time.

The Machine accepts user intents (start, cancel, auto-queue changes,
document-changed notices) and backend messages from the transport, runs the
export pipeline when the document changed, and mirrors the coarse state to
the status file.

State diagram:

	Idle ──start──▶ Exporting ──export ok──▶ Pending ──progress/preview──▶ Streaming
	                    │                       │                             │
	               export failed          success / cancelled / error (either state)
	                    ▼                       ▼
	                  Failed          Completed | Cancelled | Failed ──reset──▶ Idle

A start while a job is active is a cancel request. Cancel moves the job to
Pending and waits for the backend's acknowledgment; it never forces Idle.
*/
package session
