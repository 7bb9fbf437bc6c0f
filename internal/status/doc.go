// Package status persists the coarse session status to a small JSON file so
// observers without a socket can follow job state, and polls it back.
package status
