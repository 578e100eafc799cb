// Package audit carries the internal audit event model and the asynchronous
// dispatcher that feeds integrator-supplied sinks.
package audit
