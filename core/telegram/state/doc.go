// Package state provides a per-user session store for Telegram dialogs.
// Values are isolated by user id and each user has its own lock, so handlers
// running on separate goroutines never mutate one user's session concurrently.
package state
