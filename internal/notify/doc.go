// Package notify delivers spike and alert events to Slack, Discord, and
// generic HTTP webhooks with rate-limited fan-out.
package notify
