// Package alerts implements the rule evaluation engine and webhook delivery
// for workload alerting. Rules are evaluated per faculty group of each live
// snapshot; webhooks are delivered to Teams, Slack or generic HTTP targets.
package alerts
