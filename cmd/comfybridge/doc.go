// Package main is the entry point for comfybridge, the coordinator between
// an image-editing document and a local generation backend.
//
// Architecture:
//
//	document → export pipeline → artifacts on disk
//	session machine ⇄ websocket channel ⇄ generation backend
//	session machine → status.json ← poller / external observers
//
// Commands:
//
//	comfybridge serve              # channel + session + status poller + HTTP
//	comfybridge status             # print the status file record
//	comfybridge export --document doc.png [--selection sel.png]
//
// Configuration comes from the environment (see internal/infrastructure/config)
// and an optional --config file in YAML, TOML or JSON.
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
