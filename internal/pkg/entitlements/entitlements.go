package entitlements

import (
	"strings"

	"github.com/nikhilsawlani/SnapLink/app/models"
)

// ResolvePlan maps a remote plan's free-text name to an internal Plan.
// Exact name match wins. Otherwise fall back to a case-insensitive substring
// match of the internal name inside the remote name ("Pro" matches
// "Pro - Monthly"). When several internal names are contained (e.g. "Pro"
// and "Pro Plus"), the longest match wins so the tie-break is deterministic.
// Returns nil when nothing matches.
func ResolvePlan(plans []models.Plan, remotePlanName string) *models.Plan {
	remote := strings.TrimSpace(remotePlanName)
	if remote == "" {
		return nil
	}

	for i := range plans {
		if strings.EqualFold(plans[i].Name, remote) {
			return &plans[i]
		}
	}

	remoteLower := strings.ToLower(remote)
	var best *models.Plan
	for i := range plans {
		name := strings.ToLower(strings.TrimSpace(plans[i].Name))
		if name == "" || !strings.Contains(remoteLower, name) {
			continue
		}
		if best == nil || len(plans[i].Name) > len(best.Name) {
			best = &plans[i]
		}
	}
	return best
}
