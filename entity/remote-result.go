package entity

// RemoteOutcome classifies the provider-side result of a best-effort
// gateway call. The local ledger transition commits regardless; the
// outcome only tells callers whether the remote state is known to match.
type RemoteOutcome string

const (
	RemoteOk      RemoteOutcome = "ok"
	RemoteWarning RemoteOutcome = "warning"
	RemoteUnknown RemoteOutcome = "unknown"
)

type RemoteResult struct {
	Outcome RemoteOutcome `json:"outcome"`
	Detail  string        `json:"detail,omitempty"`
}

func (r RemoteResult) Ok() bool {
	return r.Outcome == RemoteOk
}
