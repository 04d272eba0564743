package types

// Enum values for the provisioning saga state machine. A saga record is
// deleted once the market is registered, so there is no terminal value.
type SagaState string

const (
	SagaYesTokenPending SagaState = "YES_TOKEN_PENDING"
	SagaNoTokenPending  SagaState = "NO_TOKEN_PENDING"
	SagaMarketPending   SagaState = "MARKET_PENDING"
)

func (s SagaState) String() string {
	return string(s)
}

// NextState returns the state a saga moves to once the awaited continuation
// has been handled, or false for states with no further transition.
func (s SagaState) NextState() (SagaState, bool) {
	switch s {
	case SagaYesTokenPending:
		return SagaNoTokenPending, true
	case SagaNoTokenPending:
		return SagaMarketPending, true
	default:
		return "", false
	}
}
