package domain

import "time"

// LinkQuality is a qualitative estimate of the current connection.
type LinkQuality string

const (
	QualityFast    LinkQuality = "fast"
	QualitySlow    LinkQuality = "slow"
	QualityOffline LinkQuality = "offline"
)

// NetworkState is the process-wide connectivity snapshot. The network
// monitor is its sole writer; every policy only reads it.
type NetworkState struct {
	Online  bool
	Quality LinkQuality
	RTT     time.Duration
}

// Offline is the canonical disconnected state.
func Offline() NetworkState {
	return NetworkState{Online: false, Quality: QualityOffline}
}

// OfflineFeature declares whether a feature keeps working without
// connectivity, and why.
type OfflineFeature struct {
	FeatureID        string
	AvailableOffline bool
	Reason           string
}
