package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hyperadmin/internal/apperr"
	"hyperadmin/internal/auth"
	"hyperadmin/internal/httpx"
)

var maxCardImageBytes int64 = 10 << 20

type Handler struct {
	Service *Service
	Logger  *slog.Logger
}

// MountRoutes registers the user routes on r. Callers are expected to have
// installed auth.JWTMiddleware already; mutations additionally require the
// admin role.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleAdmin, auth.RoleReadOnly))
		r.Get("/", h.list)
		r.Get("/search", h.search)
		r.Get("/discord/{discordID}", h.getByDiscordID)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleAdmin))
		r.Post("/", h.create)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		if h.Service.CardUploadsEnabled() {
			r.Post("/{id}/card-image", h.uploadCardImage)
		}
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	f, p, err := ParseFilter(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, r, h.Logger, err)
		return
	}
	res, err := h.Service.List(r.Context(), f, p)
	if err != nil {
		httpx.RespondError(w, r, h.Logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, err := ParsePage(q)
	if err != nil {
		httpx.RespondError(w, r, h.Logger, err)
		return
	}
	res, err := h.Service.Search(r.Context(), q.Get("query"), p)
	if err != nil {
		httpx.RespondError(w, r, h.Logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	u, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, r, h.Logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewView(u))
}

func (h *Handler) getByDiscordID(w http.ResponseWriter, r *http.Request) {
	u, err := h.Service.GetByDiscordID(r.Context(), chi.URLParam(r, "discordID"))
	if err != nil {
		httpx.RespondError(w, r, h.Logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewView(u))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.RespondError(w, r, h.Logger, err)
		return
	}
	u, err := h.Service.Create(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, r, h.Logger, err)
		return
	}
	h.Logger.InfoContext(r.Context(), "user created", "id", u.ID, "operator", operator(r))
	httpx.JSON(w, http.StatusCreated, NewView(u))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.RespondError(w, r, h.Logger, err)
		return
	}
	u, err := h.Service.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		httpx.RespondError(w, r, h.Logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewView(u))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, r, h.Logger, err)
		return
	}
	h.Logger.InfoContext(r.Context(), "user deleted", "id", id, "operator", operator(r))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) uploadCardImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCardImageBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			err = apperr.Invalid("file", "is too large")
		} else {
			err = apperr.Invalid("file", "multipart field is required")
		}
		httpx.RespondError(w, r, h.Logger, err)
		return
	}
	defer file.Close()

	u, err := h.Service.UploadCardImage(r.Context(), chi.URLParam(r, "id"),
		header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		httpx.RespondError(w, r, h.Logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewView(u))
}

func operator(r *http.Request) string {
	if a, ok := auth.AdminFromContext(r.Context()); ok {
		return a.Username
	}
	return ""
}
