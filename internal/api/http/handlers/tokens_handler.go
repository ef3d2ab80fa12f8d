package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-desk/internal/api/dto"
	"github.com/spec-kit/ticket-desk/internal/auth"
	apperrors "github.com/spec-kit/ticket-desk/pkg/util"
)

// TokensHandler issues workspace-scoped API tokens.
type TokensHandler struct {
	tokens          *auth.TokenManager
	adminSecretHash string
}

// NewTokensHandler constructs handler.
func NewTokensHandler(tokens *auth.TokenManager, adminSecretHash string) *TokensHandler {
	return &TokensHandler{tokens: tokens, adminSecretHash: adminSecretHash}
}

// IssueToken POST /auth/token. The admin secret gates issuance; the
// resulting token carries the member, workspace, and role it was minted
// for.
func (h *TokensHandler) IssueToken(c *fiber.Ctx) error {
	if h.adminSecretHash == "" {
		return apperrors.NewUnauthorized("token issuance disabled")
	}
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.MemberID == "" || req.WorkspaceID == "" {
		return apperrors.NewValidationError("member_id and workspace_id required", nil)
	}
	if err := auth.CompareSecret(h.adminSecretHash, req.AdminSecret); err != nil {
		return apperrors.NewUnauthorized("invalid admin secret")
	}

	role := auth.APIRole(req.Role)
	switch role {
	case auth.RoleAdmin, auth.RoleAssignee, auth.RoleRequester:
	default:
		return apperrors.NewValidationError("role must be ADMIN, ASSIGNEE or REQUESTER", nil)
	}

	token, expiresAt, err := h.tokens.GenerateToken(req.MemberID, req.WorkspaceID, role)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.TokenResponse{Token: token, ExpiresAt: expiresAt}})
}
