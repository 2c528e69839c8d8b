// Package ranking maps an author's cumulative received likes to a
// reputation tier and its optional badge.
//
// Tiers are an ascending table of (threshold, tier) pairs. The rank for a
// like total is the highest tier whose threshold does not exceed it, so the
// mapping is total over non-negative integers and never decreases as likes
// grow:
//
//	table, err := ranking.LoadTiers("configs/rank.tiers.json")
//	if err != nil {
//		logger.Warn("using default rank tiers", "error", err)
//	}
//	rank := table.RankFor(likes)
//
// Deploy-time calibration lives in configs/rank.tiers.json; a restart is
// required to pick up changes.
package ranking
