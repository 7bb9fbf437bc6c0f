// Package server exposes the session over a local HTTP control surface.
//
// Routes:
//
//	GET  /health               liveness plus connection and session state
//	GET  /status               session snapshot and the status file record
//	POST /queue                start/cancel toggle
//	POST /cancel               cancel the active job
//	PUT  /autoqueue            {"enabled": bool}
//	PUT  /prompting            {"advanced": bool}
//	POST /document/changed     mark the document edited
//	GET  /workflows            list workflows and the current one
//	PUT  /workflows/current    {"name": "..."}
//	GET  /metrics              prometheus exposition
//
// Example Usage:
//
//	srv := server.New(server.Options{Controller: machine, Catalog: catalog})
//	if err := srv.Run(ctx, "127.0.0.1:8765"); err != nil {
//	    log.Fatal(err)
//	}
package server
