package handlers

import (
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	apierrors "github.com/pribylovaa/quotes-service/internal/errors"
	"github.com/pribylovaa/quotes-service/internal/models"
	"github.com/pribylovaa/quotes-service/internal/service"
)

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := h.decode(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	u, err := h.svc.Register(r.Context(), models.RegisterInput{
		Username: in.Username,
		Password: in.Password,
		Email:    in.Email,
		FullName: in.FullName,
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, toUserResponse(*u), "User registered successfully")
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := h.decode(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	sess, err := h.svc.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.setRefreshCookie(w, sess.Tokens.RefreshToken, sess.Tokens.RefreshExpiresAt)
	writeOK(w, http.StatusOK, loginResponse{
		AccessToken:     sess.Tokens.AccessToken,
		AccessExpiresAt: sess.Tokens.AccessExpiresAt,
		User:            toUserResponse(sess.User),
	}, "Login successful")
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	raw, err := h.refreshToken(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	pair, err := h.svc.Refresh(r.Context(), raw)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if pair.RefreshToken != "" {
		h.setRefreshCookie(w, pair.RefreshToken, pair.RefreshExpiresAt)
	}

	writeOK(w, http.StatusOK, refreshResponse{
		AccessToken:     pair.AccessToken,
		AccessExpiresAt: pair.AccessExpiresAt,
	}, "Access token refreshed")
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	raw, err := h.refreshToken(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.svc.Logout(r.Context(), raw); err != nil {
		// Недействительная сессия: cookie бесполезна, убираем её.
		if stderrors.Is(err, service.ErrInvalidToken) {
			h.clearRefreshCookie(w)
		}
		apierrors.WriteError(w, r, err)
		return
	}

	h.clearRefreshCookie(w)
	writeOK(w, http.StatusOK, nil, "Logged out")
}

// refreshToken берёт refresh-токен из cookie, а при её отсутствии — из тела запроса.
func (h *Handlers) refreshToken(r *http.Request) (string, error) {
	if c, err := r.Cookie(h.cookie.Name); err == nil && strings.TrimSpace(c.Value) != "" {
		return c.Value, nil
	}

	var in refreshRequest
	if err := h.decode(r, &in); err != nil {
		return "", err
	}

	return in.RefreshToken, nil
}

func (h *Handlers) setRefreshCookie(w http.ResponseWriter, value string, expires time.Time) {
	maxAge := int(time.Until(expires).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     h.cookie.Path,
		Domain:   h.cookie.Domain,
		Expires:  expires,
		MaxAge:   maxAge,
		Secure:   h.cookie.Secure,
		HttpOnly: true,
		SameSite: sameSite(h.cookie.SameSite),
	})
}

func (h *Handlers) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     h.cookie.Path,
		Domain:   h.cookie.Domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Secure:   h.cookie.Secure,
		HttpOnly: true,
		SameSite: sameSite(h.cookie.SameSite),
	})
}

func sameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
