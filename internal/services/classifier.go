package services

import "strings"

// Flavor selects which deployment script a server gets. Constrained hosts
// (serv00/hostuno shared hosting) have no root, no nginx and manage sites
// through the devil CLI instead.
type Flavor string

const (
	FlavorStandard    Flavor = "standard"
	FlavorConstrained Flavor = "constrained"
)

var constrainedMarkers = []string{"serv00", "hostuno"}

// ClassifyStatic inspects the stored server fields. It is cheap but can be
// wrong when records are stale; executors re-check with a live hostname probe.
func ClassifyStatic(ip, name, hostname string) Flavor {
	for _, field := range []string{ip, name, hostname} {
		lower := strings.ToLower(field)
		for _, marker := range constrainedMarkers {
			if strings.Contains(lower, marker) {
				return FlavorConstrained
			}
		}
	}
	return FlavorStandard
}

// ClassifyHostname classifies from a live `hostname` probe. It overrides
// whatever the static classification said.
func ClassifyHostname(hostname string) Flavor {
	lower := strings.ToLower(strings.TrimSpace(hostname))
	for _, marker := range constrainedMarkers {
		if strings.Contains(lower, marker) {
			return FlavorConstrained
		}
	}
	return FlavorStandard
}
