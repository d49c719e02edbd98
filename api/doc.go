// Package api holds the request and response types of the SceneFlow HTTP API.
//
// # API Overview
//
// SceneFlow exposes the narrative scheduler over REST:
//   - Turn handling: POST /api/v1/groups/{group}/turns runs one director cycle
//   - Scene progress: complete the current step or cancel the running scene
//   - Tension seeds: list, create, escalate and resolve
//   - Relations and execution history per group
//   - Scene catalog listing and cache invalidation
//   - Maintenance: tension decay and expired seed cleanup
//   - Health, readiness, version and Prometheus metrics
//
// Every JSON response uses the envelope
//
//	{"success": true, "data": ..., "error": null, "timestamp": "...", "request_id": "..."}
//
// # Authentication
//
// When API keys are configured, /api/v1 endpoints require the X-API-Key header:
//
//	X-API-Key: your-api-key
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
package api
