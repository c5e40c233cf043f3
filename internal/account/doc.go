// Package account provides the business boundary for unpaid-account triage.
// It defines the Record model, the score Classifier, band filtering and
// aggregation, and the Store interface that owns status transitions.
package account
