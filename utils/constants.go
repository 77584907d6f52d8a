// File: utils/constants.go
package utils

import "time"

// SessionPrefix is the prefix used for Redis admin session keys.
const SessionPrefix = "adminSession:"

// ManualMarkerPrefix prefixes the one-shot manual-update marker keys.
const ManualMarkerPrefix = "manual:"

// ForwardedPrefix prefixes relay dedupe keys ("forwarded:<id>:<version>").
const ForwardedPrefix = "forwarded:"

// ForwardedTTL bounds how long a forwarded (id, version) pair is remembered.
const ForwardedTTL = 24 * time.Hour

// DefaultWebhookURL is used when WEBHOOK_URL is not configured.
const DefaultWebhookURL = "https://automation.reservo.local/webhook/reservations"
