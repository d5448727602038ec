package domain

import "time"

// ProfileName identifies a query class preset.
type ProfileName string

const (
	ProfileStatic   ProfileName = "static"
	ProfileStandard ProfileName = "standard"
	ProfileRealtime ProfileName = "realtime"
)

// Profile controls staleness and lifecycle for every query tagged with it.
// Each query is tagged with exactly one profile at creation.
type Profile struct {
	Name               ProfileName
	StaleTime          time.Duration
	GCTime             time.Duration
	RefetchOnReconnect bool
	RefetchOnMount     bool
}

// DefaultProfiles returns the built-in presets. Config may override the
// timings but never removes a preset.
func DefaultProfiles() map[ProfileName]Profile {
	return map[ProfileName]Profile{
		ProfileStatic: {
			Name:      ProfileStatic,
			StaleTime: time.Hour,
			GCTime:    24 * time.Hour,
		},
		ProfileStandard: {
			Name:               ProfileStandard,
			StaleTime:          30 * time.Second,
			GCTime:             5 * time.Minute,
			RefetchOnReconnect: true,
			RefetchOnMount:     true,
		},
		ProfileRealtime: {
			Name:               ProfileRealtime,
			StaleTime:          0,
			GCTime:             time.Minute,
			RefetchOnReconnect: true,
			RefetchOnMount:     true,
		},
	}
}
