/*
Package monitoring collects Prometheus metrics about a conversion.

# Overview

Every retrieval is counted by scheme and outcome (fetched, cached, blocked,
failed) and timed. The collectors live on a private registry so several
conversions in one process never collide, and a Snapshot mirrors the
counters for the end-of-run summary.

# Usage

	metrics := monitoring.NewMetrics()

	timer := monitoring.NewTimer(metrics, "https")
	data, err := fetch()
	if err != nil {
		timer.Stop(monitoring.OutcomeFailed, 0)
	} else {
		timer.Stop(monitoring.OutcomeFetched, len(data))
	}

	_ = metrics.WriteText(os.Stderr)

A nil *Metrics is valid and records nothing.
*/
package monitoring
