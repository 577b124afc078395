// Package reputation implements DID reputation credentials: profile
// validation, issuance, verification, revocation, and weighted
// aggregation with issuer weighting, exponential recency decay, and
// tiered classification.
package reputation

import "hivecoordinator/internal/hiveerr"

// Domain names the four reputation profiles.
type Domain string

const (
	DomainHiveAdvisor  Domain = "hive:advisor"
	DomainHiveNode     Domain = "hive:node"
	DomainHiveClient   Domain = "hive:client"
	DomainAgentGeneral Domain = "agent:general"
)

// Outcome is the credential's outcome classification, which modifies
// its aggregation weight.
type Outcome string

const (
	OutcomeRenew   Outcome = "renew"
	OutcomeRevoke  Outcome = "revoke"
	OutcomeNeutral Outcome = "neutral"
)

func (o Outcome) valid() bool {
	switch o {
	case OutcomeRenew, OutcomeRevoke, OutcomeNeutral:
		return true
	}
	return false
}

// metricRange is a metric's permitted (lo, hi) bound.
type metricRange struct {
	lo, hi float64
}

// profile declares a domain's required and optional metrics.
type profile struct {
	required map[string]metricRange
	optional map[string]metricRange
}

// profiles is the static registry of the four domains. Metric names
// and ranges are declared once here; issuance, verification, and
// aggregation all read from this single source of truth.
var profiles = map[Domain]profile{
	DomainHiveAdvisor: {
		required: map[string]metricRange{
			"recommendation_accuracy": {0, 100},
			"responsiveness":          {0, 100},
		},
		optional: map[string]metricRange{
			"engagement_score": {0, 100},
		},
	},
	DomainHiveNode: {
		required: map[string]metricRange{
			"uptime_pct":               {0, 100},
			"forwarding_success_rate":  {0, 100},
		},
		optional: map[string]metricRange{
			"capacity_utilization": {0, 100},
		},
	},
	DomainHiveClient: {
		required: map[string]metricRange{
			"payment_success_rate": {0, 100},
		},
		optional: map[string]metricRange{
			"dispute_rate": {0, 100},
		},
	},
	DomainAgentGeneral: {
		required: map[string]metricRange{
			"task_completion_rate": {0, 100},
		},
		optional: map[string]metricRange{
			"trust_score": {0, 100},
		},
	},
}

func validDomain(d Domain) bool {
	_, ok := profiles[d]
	return ok
}

// validateMetrics checks that all required metrics are present,
// every present metric known to the profile, and every numeric metric
// within its declared range.
func validateMetrics(d Domain, metrics map[string]float64) error {
	p, ok := profiles[d]
	if !ok {
		return hiveerr.Validation("reputation.validate_metrics", errUnknownDomain(d))
	}
	for name := range p.required {
		if _, present := metrics[name]; !present {
			return hiveerr.Validation("reputation.validate_metrics", errMissingMetric(name))
		}
	}
	for name, v := range metrics {
		r, known := p.required[name]
		if !known {
			r, known = p.optional[name]
		}
		if !known {
			return hiveerr.Validation("reputation.validate_metrics", errUnknownMetric(name))
		}
		if v < r.lo || v > r.hi {
			return hiveerr.Validation("reputation.validate_metrics", errMetricOutOfRange(name, v, r.lo, r.hi))
		}
	}
	return nil
}

// normalizedScore averages the profile's required metrics, each
// normalized into [0,1] by its declared range, and scales to [0,100].
func normalizedScore(d Domain, metrics map[string]float64) float64 {
	p := profiles[d]
	if len(p.required) == 0 {
		return 0
	}
	var sum float64
	for name, r := range p.required {
		v := metrics[name]
		span := r.hi - r.lo
		if span == 0 {
			continue
		}
		norm := (v - r.lo) / span
		if norm < 0 {
			norm = 0
		}
		if norm > 1 {
			norm = 1
		}
		sum += norm
	}
	return (sum / float64(len(p.required))) * 100
}
