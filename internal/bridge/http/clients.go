package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/relaygate/authbridge/internal/bridge/service"
	"github.com/relaygate/authbridge/pkg/httpx"
	"github.com/relaygate/authbridge/pkg/oauthsdk"
)

// ClientsHandler is the admin surface over registered clients. The router
// mounts it behind bearer authentication.
type ClientsHandler struct {
	clients *service.RegistrationService
}

// NewClientsHandler wires the handler.
func NewClientsHandler(clients *service.RegistrationService) *ClientsHandler {
	return &ClientsHandler{clients: clients}
}

type clientSummary struct {
	ClientID     string    `json:"client_id"`
	ClientName   string    `json:"client_name"`
	RedirectURIs []string  `json:"redirect_uris"`
	AuthMethod   string    `json:"token_endpoint_auth_method"`
	CreatedAt    time.Time `json:"created_at"`
}

// List handles GET /clients.
//
//	@Summary	List registered clients
//	@Tags		admin
//	@Produce	json
//	@Security	AdminToken
//	@Success	200	{array}		clientSummary
//	@Failure	401	{object}	oauthsdk.ErrorResponse
//	@Router		/clients [get]
func (h *ClientsHandler) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clients.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]clientSummary, 0, len(clients))
	for _, c := range clients {
		out = append(out, clientSummary{
			ClientID:     c.ID.String(),
			ClientName:   c.Name,
			RedirectURIs: c.RedirectURIs,
			AuthMethod:   c.AuthMethod,
			CreatedAt:    c.CreatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// Revoke handles DELETE /clients/{id}.
//
//	@Summary	Revoke a client
//	@Description	Deletes the registration and every token issued to it.
//	@Tags		admin
//	@Security	AdminToken
//	@Param		id	path	string	true	"client id"
//	@Success	204
//	@Failure	401	{object}	oauthsdk.ErrorResponse
//	@Failure	404	{object}	oauthsdk.ErrorResponse
//	@Router		/clients/{id} [delete]
func (h *ClientsHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	if err := h.clients.Revoke(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, service.ErrInvalidClient) {
			oauthsdk.NewOAuth2Error(http.StatusNotFound,
				oauthsdk.ErrorCodeInvalidRequest,
				"unknown client").WriteError(w)
			return
		}
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
