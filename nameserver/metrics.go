package nameserver

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"

	"github.com/veldtnet/rrdns/dnsmsg"
)

var (
	requestsTotal    = metrics.NewCounter(`rrdns_nameserver_requests_total`)
	requestsDuration = metrics.NewHistogram(`rrdns_nameserver_request_duration_seconds`)
)

func repliesByRCode(rc dnsmsg.RCode) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(
		`rrdns_nameserver_replies_total{rcode=%q}`, rcodeLabel(rc),
	))
}
