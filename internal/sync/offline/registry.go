// Package offline classifies features as available or unavailable without
// connectivity and queues deferred writes for replay.
package offline

import "github.com/hackfest/syncengine/internal/core/domain"

// Registry is the static offline capability table. Features not registered
// default to unavailable, which routes their writes into the queue.
type Registry struct {
	features map[string]domain.OfflineFeature
}

// NewRegistry builds a registry from the defaults plus any overrides.
func NewRegistry(extra ...domain.OfflineFeature) *Registry {
	r := &Registry{features: make(map[string]domain.OfflineFeature)}
	for _, f := range defaultFeatures() {
		r.features[f.FeatureID] = f
	}
	for _, f := range extra {
		r.features[f.FeatureID] = f
	}
	return r
}

// Capability returns the offline classification for a feature. Unregistered
// features are unavailable offline.
func (r *Registry) Capability(featureID string) domain.OfflineFeature {
	if f, ok := r.features[featureID]; ok {
		return f
	}
	return domain.OfflineFeature{
		FeatureID:        featureID,
		AvailableOffline: false,
		Reason:           "requires connectivity; queued until back online",
	}
}

func defaultFeatures() []domain.OfflineFeature {
	return []domain.OfflineFeature{
		{
			FeatureID:        "browseCachedEvents",
			AvailableOffline: true,
			Reason:           "served from the local cache",
		},
		{
			FeatureID:        "browseCachedTeams",
			AvailableOffline: true,
			Reason:           "served from the local cache",
		},
		{
			FeatureID:        "draftSubmission",
			AvailableOffline: true,
			Reason:           "drafts live locally until submitted",
		},
		{
			FeatureID:        "createSubmission",
			AvailableOffline: false,
			Reason:           "submission upload needs the backend; queued until back online",
		},
		{
			FeatureID:        "scoreSubmission",
			AvailableOffline: false,
			Reason:           "scores must reach the judging service; queued until back online",
		},
		{
			FeatureID:        "registerForEvent",
			AvailableOffline: false,
			Reason:           "registration is first-come-first-served and needs the backend",
		},
		{
			FeatureID:        "signIn",
			AvailableOffline: false,
			Reason:           "authentication needs the backend",
		},
	}
}
