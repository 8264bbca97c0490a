// Package queue provides the bounded in-memory FIFO buffer between producers
// and the dispatcher worker. The queue is volatile: contents do not survive a
// restart.
package queue
