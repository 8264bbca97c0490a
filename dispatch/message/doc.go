// Package message defines the outbound notification record and its typed
// attribute metadata.
package message
