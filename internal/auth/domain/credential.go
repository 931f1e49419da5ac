package domain

import "time"

// Credential is an OAuth token pair. A zero Expiry means the provider did not
// say, so validity has to be probed.
type Credential struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

func (c Credential) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

func (c Credential) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}
