// SPDX-License-Identifier: MIT

package cache

import "fmt"

// Key builders for the cache namespaces insightd uses. Keeping them in
// one place prevents handler-level drift in key formats.

// PollResultsKey caches the aggregated vote counts of a poll.
func PollResultsKey(pollID string) string {
	return fmt.Sprintf("poll:results:%s", pollID)
}

// ClassMasteryKey caches the per-concept mastery summary of a class.
func ClassMasteryKey(classID, conceptID string) string {
	return fmt.Sprintf("class:mastery:%s:%s", classID, conceptID)
}

// ClassEngagementKey caches the engagement rollup of a class.
func ClassEngagementKey(classID string) string {
	return fmt.Sprintf("class:engagement:%s", classID)
}

// InstitutionOverviewKey caches the institution-wide analytics overview.
func InstitutionOverviewKey() string {
	return "analytics:institution:overview"
}

// TeamSoftSkillsKey caches the aggregated soft skills of a team.
func TeamSoftSkillsKey(teamID string) string {
	return fmt.Sprintf("team:softskills:%s", teamID)
}
