package entity

// Liveness describes how usable a cache entry is.
type Liveness int

const (
	// LivenessCold means the entry has never been refreshed.
	LivenessCold Liveness = iota
	// LivenessWarming means the owning task is subscribed but no data has arrived yet.
	LivenessWarming
	// LivenessLive means the entry was refreshed within the freshness window.
	LivenessLive
	// LivenessStale means the entry holds data older than the freshness window.
	LivenessStale
)

func (l Liveness) String() string {
	switch l {
	case LivenessCold:
		return "cold"
	case LivenessWarming:
		return "warming"
	case LivenessLive:
		return "live"
	case LivenessStale:
		return "stale"
	default:
		return "unknown"
	}
}
