// Package notify fans fired publications out to subscribers.
//
// Delivery model: on every dispatch the current subscriber list is read
// fresh from the preference store and one snapshot per user is built; each
// (subscriber, enabled kind) pair gets one best-effort send. Sends are
// rate-limited and time-bounded but independent — no retries, no shared
// transaction, no caching across events.
package notify
