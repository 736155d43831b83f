/*
Package observability provides tools for monitoring the Arbor engine.

Metrics records generation passes as Prometheus counters, gauges and
histograms. It implements the recorder the expression generator reports to,
so wiring it is a matter of passing it to arbor.WithMetrics.
*/
package observability
