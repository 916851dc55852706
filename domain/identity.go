package domain

// ConnectedIdentity binds an authenticated user to a live connection.
// Created on successful handshake, destroyed on disconnect or revoke.
type ConnectedIdentity struct {
	UserID        string `json:"userId"`
	Name          string `json:"name"`
	AuthSessionID string `json:"authSessionId"`
	ConnectionID  string `json:"connectionId"`
}
