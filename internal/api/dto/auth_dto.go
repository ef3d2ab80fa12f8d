package dto

import "time"

// TokenRequest exchanges the admin secret for a workspace-scoped token.
type TokenRequest struct {
	AdminSecret string `json:"admin_secret"`
	MemberID    string `json:"member_id"`
	WorkspaceID string `json:"workspace_id"`
	Role        string `json:"role"`
}

// TokenResponse carries the signed token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
