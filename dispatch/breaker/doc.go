// Package breaker wraps sony/gobreaker with consecutive-failure tripping,
// cooldown-based recovery probing, and out-of-band reset.
package breaker
