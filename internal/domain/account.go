package domain

import "time"

// Account represents a locally registered learner.
type Account struct {
	Identity       string    `json:"identity"`
	DisplayName    string    `json:"displayName"`
	CredentialHash string    `json:"credentialHash,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Session marks the single signed-in identity of the process.
type Session struct {
	Identity string    `json:"identity"`
	Token    string    `json:"token"`
	IssuedAt time.Time `json:"issuedAt"`
}
