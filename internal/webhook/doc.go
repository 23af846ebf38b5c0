// Package webhook triggers commands from signed HTTP POSTs.
//
// Each endpoint maps a path to one command. The request body is not passed
// to the command; it only has to carry a valid HMAC-SHA256 signature made
// with the endpoint's shared secret.
//
// # Configuration
//
//	webhooks:
//	  listen: "127.0.0.1:8088"
//	  endpoints:
//	    - path: /hooks/deploy
//	      command: refresh
//	      secret: ${DEPLOY_HOOK_SECRET}
//	      signature_header: X-Hub-Signature-256
//	      max_body_size: 64KB
//
// # Responses
//
//   - 202 Accepted: command dispatched, body carries execution_id
//   - 403 Forbidden: missing or invalid signature (no details)
//   - 404 Not Found: unknown path or command
//   - 409 Conflict: the command cannot execute right now
//   - 413 Payload Too Large: body exceeds max_body_size
package webhook
