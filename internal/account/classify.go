package account

// Score bounds and band thresholds. Filter bands are derived from Classify,
// so a boundary score lands in the same bucket everywhere.
const (
	MinScore = 0
	MaxScore = 100

	HighThreshold   = 80
	MediumThreshold = 50
)

// Classify maps a payment score to the recommended collection action.
func Classify(score int) (Action, error) {
	switch {
	case score < MinScore || score > MaxScore:
		return "", ErrInvalidScore
	case score >= HighThreshold:
		return ActionSendReminder, nil
	case score >= MediumThreshold:
		return ActionOfferPaymentPlan, nil
	default:
		return ActionEscalate, nil
	}
}
