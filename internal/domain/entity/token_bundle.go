package entity

import "time"

// DefaultFreshnessTolerance is the safety margin applied before a stored
// provider token is considered stale.
const DefaultFreshnessTolerance = 600 * time.Second

// TokenBundle is the OAuth2 token material returned by a provider code or
// refresh exchange. It is immutable once issued; a refresh produces a new
// bundle which replaces the stored one wholesale.
type TokenBundle struct {
	AccessToken  string    `gorm:"column:access_token;size:2048;not null" json:"-"`
	RefreshToken string    `gorm:"column:refresh_token;size:2048;not null;default:''" json:"-"`
	TokenType    string    `gorm:"column:token_type;size:40;not null;default:''" json:"token_type"`
	Scope        string    `gorm:"column:scope;size:255;not null;default:''" json:"scope"`
	ExpiresIn    int       `gorm:"column:expires_in;not null;default:0" json:"expires_in"`
	IssuedAt     time.Time `gorm:"column:issued_at;not null" json:"issued_at"`
}

// IsFresh reports whether the access token is still usable at the given
// moment, keeping a tolerance margin so an in-flight provider call does not
// race the expiry. Fresh means issuedAt + expiresIn - tolerance > now; the
// exact boundary counts as stale.
func (b TokenBundle) IsFresh(now time.Time, tolerance time.Duration) bool {
	lifetime := time.Duration(b.ExpiresIn) * time.Second
	return b.IssuedAt.Add(lifetime - tolerance).After(now)
}
