// Package alert provides the business boundary for Fleetwatch's alert
// lifecycle and escalation engine. It defines the domain model, the Store
// persistence interface, the rule Registry and its strategies, the Service
// (ingestion gate, state machine, single write path), the Auditor
// (asynchronous transition trail), and the staleness Sweeper.
package alert
