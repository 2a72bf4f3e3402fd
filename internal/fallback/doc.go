// Package fallback implements the tiered service chain shared by the
// translation, speech, vision and recipe services. A Chain tries its
// handlers in fixed priority order (primary, secondary, fallback), skips
// handlers whose configuration is missing, makes exactly one attempt per
// handler and always returns a Result instead of an error.
package fallback
