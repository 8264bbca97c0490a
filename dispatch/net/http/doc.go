// Package http exposes the dispatcher's operational surface over Fiber:
// a health endpoint reporting queue depth and breaker status, and a manual
// circuit-reset endpoint for operators.
package http
