// Package lifecycle holds the client lifecycle rules: date coercion, payment
// status, expiry extension, the admin activity feed, check-in scheduling and
// dashboard statistics. Everything here is pure; callers pass "now".
package lifecycle
