package http

import (
	"encoding/json"
	"net/http"

	"github.com/relaygate/authbridge/internal/bridge/domain"
	"github.com/relaygate/authbridge/internal/bridge/service"
	"github.com/relaygate/authbridge/pkg/httpx"
	"github.com/relaygate/authbridge/pkg/oauthsdk"
)

// RegisterHandler serves RFC 7591 dynamic client registration.
type RegisterHandler struct {
	clients *service.RegistrationService
}

// NewRegisterHandler wires the handler.
func NewRegisterHandler(clients *service.RegistrationService) *RegisterHandler {
	return &RegisterHandler{clients: clients}
}

// Register handles POST /register.
//
//	@Summary		Register an OAuth client
//	@Description	Dynamic client registration per RFC 7591. Client id and
//	@Description	secret are server-generated; the secret is returned once.
//	@Tags			oauth2
//	@Accept			json
//	@Produce		json
//	@Param			request	body		oauthsdk.RegistrationRequest	true	"client metadata"
//	@Success		201		{object}	oauthsdk.RegistrationResponse
//	@Failure		400		{object}	oauthsdk.ErrorResponse
//	@Router			/register [post]
func (h *RegisterHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req oauthsdk.RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		oauthsdk.NewOAuth2Error(http.StatusBadRequest,
			oauthsdk.ErrorCodeInvalidClientMetadata,
			"request body must be a JSON registration document").WriteError(w)
		return
	}

	client, secret, err := h.clients.Register(r.Context(), service.RegisterInput{
		ClientName:              req.ClientName,
		RedirectURIs:            req.RedirectURIs,
		Scope:                   req.Scope,
		TokenEndpointAuthMethod: req.TokenEndpointAuthMethod,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, oauthsdk.RegistrationResponse{
		ClientID:                client.ID.String(),
		ClientSecret:            secret,
		ClientName:              client.Name,
		RedirectURIs:            client.RedirectURIs,
		GrantTypes:              []string{domain.GrantAuthorizationCode, domain.GrantRefreshToken},
		ResponseTypes:           []string{domain.ResponseTypeCode},
		TokenEndpointAuthMethod: client.AuthMethod,
		ClientIDIssuedAt:        client.CreatedAt.Unix(),
	})
}
