// Package searchvolume looks up measured search impressions for a keyword in
// Google Search Console, including the OAuth authorization-code flow that
// gates access to it.
package searchvolume

import "time"

// Outcome is the result of a FetchVolume call. It is one of
// AuthorizationRequired, TokensIssued or Volume.
type Outcome interface {
	outcome()
}

// AuthorizationRequired signals that the end user must visit URL to grant
// access. State must be remembered and compared on the callback.
type AuthorizationRequired struct {
	URL   string
	State string
}

// TokensIssued carries the tokens obtained by exchanging an authorization code.
type TokensIssued struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Volume is a non-negative impression count over the reporting window.
// Degraded is set when the count is a stand-in zero rather than a measurement.
type Volume struct {
	Count    int64
	Degraded Reason
}

func (AuthorizationRequired) outcome() {}
func (TokensIssued) outcome()          {}
func (Volume) outcome()                {}

// Reason explains why a lookup degraded to zero.
type Reason string

const (
	ReasonNone Reason = ""
	// ReasonNoProperty means the account has no verified Search Console property.
	ReasonNoProperty Reason = "no_property"
	// ReasonForbidden means the account may not use the Search Console API.
	ReasonForbidden Reason = "forbidden"
	// ReasonSitesFailed means listing properties failed for a reason other than auth.
	ReasonSitesFailed Reason = "sites_failed"
	// ReasonQueryFailed means the search analytics query itself failed.
	ReasonQueryFailed Reason = "query_failed"
)

// Label returns the metrics label for a lookup outcome.
func Label(o Outcome) string {
	switch v := o.(type) {
	case AuthorizationRequired:
		return "authorization_required"
	case TokensIssued:
		return "tokens_issued"
	case Volume:
		if v.Degraded != ReasonNone {
			return string(v.Degraded)
		}
		if v.Count == 0 {
			return "zero"
		}
		return "real"
	}
	return "unknown"
}
