package http

import (
	"net/http"
	"strings"

	"github.com/relaygate/authbridge/internal/bridge/domain"
	"github.com/relaygate/authbridge/pkg/httpx"
	"github.com/relaygate/authbridge/pkg/oauthsdk"
	"github.com/relaygate/authbridge/pkg/pkcex"
)

// MetadataHandler serves the RFC 8414 authorization server metadata
// document MCP clients use to discover the bridge's endpoints.
type MetadataHandler struct {
	issuer string
}

// NewMetadataHandler wires the handler. The issuer is the bridge's
// external base URL.
func NewMetadataHandler(issuer string) *MetadataHandler {
	return &MetadataHandler{issuer: strings.TrimRight(issuer, "/")}
}

// Metadata handles GET /.well-known/oauth-authorization-server.
//
//	@Summary	Authorization server metadata
//	@Tags		discovery
//	@Produce	json
//	@Success	200	{object}	oauthsdk.ServerMetadata
//	@Router		/.well-known/oauth-authorization-server [get]
func (h *MetadataHandler) Metadata(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, oauthsdk.ServerMetadata{
		Issuer:                        h.issuer,
		AuthorizationEndpoint:         h.issuer + "/authorize",
		TokenEndpoint:                 h.issuer + "/token",
		RegistrationEndpoint:          h.issuer + "/register",
		IntrospectionEndpoint:         h.issuer + "/introspect",
		RevocationEndpoint:            h.issuer + "/revoke",
		ResponseTypesSupported:        []string{domain.ResponseTypeCode},
		GrantTypesSupported:           []string{domain.GrantAuthorizationCode, domain.GrantRefreshToken},
		CodeChallengeMethodsSupported: []string{pkcex.MethodS256, pkcex.MethodPlain},
		TokenEndpointAuthMethodsSupported: []string{
			domain.AuthMethodClientSecretPost,
			domain.AuthMethodNone,
		},
	})
}
