package observe

import (
	"go.opentelemetry.io/otel/metric"
)

// metrics holds the instruments recorded by Instrument.
type metrics struct {
	commandTotal     metric.Int64Counter
	commandDuration  metric.Float64Histogram
	dispatchTotal    metric.Int64Counter
	dispatchDuration metric.Float64Histogram
	cacheLookups     metric.Int64Counter
	logFailures      metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	m := &metrics{}
	var err error

	if m.commandTotal, err = meter.Int64Counter(
		"frontctl.command.total",
		metric.WithDescription("Commands executed, by request, command and signal"),
		metric.WithUnit("{command}"),
	); err != nil {
		return nil, err
	}
	if m.commandDuration, err = meter.Float64Histogram(
		"frontctl.command.duration_ms",
		metric.WithDescription("Command execution duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.dispatchTotal, err = meter.Int64Counter(
		"frontctl.dispatch.total",
		metric.WithDescription("Dispatched requests, by request, outcome and cache status"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.dispatchDuration, err = meter.Float64Histogram(
		"frontctl.dispatch.duration_ms",
		metric.WithDescription("Request dispatch duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.cacheLookups, err = meter.Int64Counter(
		"frontctl.cache.lookups",
		metric.WithDescription("Response cache lookups, by result"),
		metric.WithUnit("{lookup}"),
	); err != nil {
		return nil, err
	}
	if m.logFailures, err = meter.Int64Counter(
		"frontctl.log.backend_errors",
		metric.WithDescription("Logger backend failures, by backend"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}
	return m, nil
}
