package http

import (
	"net/http"

	"github.com/driftlock/authd/internal/auth/service"
	"github.com/driftlock/authd/pkg/httpx"
)

// SocialHandler handles POST /v1/auth/social. The provider assertion is
// verified by the federation gateway in front of this service; what
// arrives here is the already-validated claim set.
type SocialHandler struct {
	Accounts *service.AccountService
}

func (h *SocialHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req socialLoginRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := h.Accounts.SocialLogin(r.Context(), req.Provider, req.ProviderID, req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.OK(w, http.StatusOK, "login successful", pair)
}
