package proxy

import "expvar"

var (
	stats = expvar.NewMap("shamba_proxy")

	requestsByMode = new(expvar.Map).Init()
	errorsByKind   = new(expvar.Map).Init()
	recorderDrops  = new(expvar.Int)
)

func init() {
	stats.Set("requests", requestsByMode)
	stats.Set("errors", errorsByKind)
	stats.Set("recorder_drops", recorderDrops)
}

func countRequest(mode Mode) {
	requestsByMode.Add(string(mode), 1)
}

func countError(kind ErrorKind) {
	errorsByKind.Add(string(kind), 1)
}
