package payouts

const (
	OnboardingStatusMissing        = "missing"
	OnboardingStatusPending        = "pending"
	OnboardingStatusVerified       = "verified"
	OnboardingStatusRequiresAction = "requires_action"
)

// PaymentAccount is the rail account configuration attached to a listing or
// a listing group.
type PaymentAccount struct {
	DestinationAccountID string
	OnboardingStatus     string
}

// HasDestination reports whether the account can receive settlements.
func (a *PaymentAccount) HasDestination() bool {
	return a != nil && a.DestinationAccountID != ""
}

// DeriveOnboardingStatus maps the rail's account view onto the local
// onboarding state.
func DeriveOnboardingStatus(info AccountInfo) string {
	if info.ChargesEnabled && info.PayoutsEnabled {
		return OnboardingStatusVerified
	}
	if len(info.Requirements) > 0 {
		return OnboardingStatusRequiresAction
	}
	return OnboardingStatusPending
}
