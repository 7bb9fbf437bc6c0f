// Package transport owns the single persistent websocket connection to the
// generation backend.
//
// The channel moves through Disconnected -> Connecting -> Open and back to
// Disconnected on any close or error, after which exactly one reconnect is
// scheduled at a fixed interval. A manual Connect supersedes a pending
// reconnect. The first failed dial of an outage also asks the Launcher to
// start the local backend; later failures of the same outage do not.
//
// Every inbound frame goes through Dispatch, the single decode point.
// Recognized messages are queued on Messages(); unparseable frames are
// logged and dropped, unknown kinds are ignored.
//
// Message Types (Client -> Backend):
//   - image_to_image: start a generation job
//   - cancel: interrupt the running job
//
// Message Types (Backend -> Client):
//   - {type:"progress"}: progress percent
//   - {status:"preview"}: live preview frame
//   - {status:"success"}: final images
//   - {status:"cancelled"}: cancel acknowledged
//   - {status:"error"}: job failed
package transport
