// Package storage keeps an append-only audit trail of preference changes
// and deliveries. Records are written for operators and never read back to
// restore bot state.
package storage
