// Package httpapi exposes the sync protocol over a JSON HTTP API:
// /login, /list_objects, /get_object, /update_object.
package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/fortress/internal/logging"
	"github.com/dmitrijs2005/fortress/internal/server/auth"
	"github.com/dmitrijs2005/fortress/internal/server/storage"
)

// Handler serves the sync API over a Repository. The server stores opaque
// (siv, ciphertext) pairs and never holds key material that could open them.
type Handler struct {
	repo      storage.Repository
	jwtSecret []byte
	tokenTTL  time.Duration
	pepper    []byte
	log       logging.Logger
}

func NewHandler(repo storage.Repository, jwtSecret []byte, tokenTTL time.Duration, pepper []byte, log logging.Logger) *Handler {
	return &Handler{repo: repo, jwtSecret: jwtSecret, tokenTTL: tokenTTL, pepper: pepper, log: log}
}

// Router wires the endpoints with logging and, where needed, token
// authentication.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("POST /list_objects", h.authenticated(h.listObjects))
	mux.HandleFunc("POST /get_object", h.authenticated(h.getObject))
	mux.HandleFunc("POST /update_object", h.authenticated(h.updateObject))
	return h.logged(mux)
}

type loginRequest struct {
	UserId  string `json:"user_id"`
	UserKey string `json:"user_key"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

type wireObject struct {
	Id  string `json:"id"`
	Siv string `json:"siv"`
}

type listObjectsResponse struct {
	Objects []wireObject `json:"objects"`
}

type getObjectRequest struct {
	ObjectId string `json:"object_id"`
}

type getObjectResponse struct {
	Siv  string `json:"siv"`
	Data string `json:"data"`
}

type updateObjectRequest struct {
	ObjectId string `json:"object_id"`
	Siv      string `json:"siv"`
	Data     string `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// login verifies the (login id, login key) pair and issues an access token.
// The first login for an unknown id registers the account.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}
	loginId, err := hex.DecodeString(req.UserId)
	if err != nil || len(loginId) != 32 {
		writeError(w, http.StatusBadRequest, "malformed user_id")
		return
	}
	loginKey, err := hex.DecodeString(req.UserKey)
	if err != nil || len(loginKey) != 32 {
		writeError(w, http.StatusBadRequest, "malformed user_key")
		return
	}

	keyHash := auth.HashLoginKey(loginKey, h.pepper)

	stored, err := h.repo.GetUserKeyHash(ctx, loginId)
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		if err := h.repo.CreateUser(ctx, loginId, keyHash); err != nil {
			h.log.Error(ctx, "creating user", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		h.log.Info(ctx, "account registered", "login_id", req.UserId)
	case err != nil:
		h.log.Error(ctx, "loading user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	case !auth.VerifyLoginKey(loginKey, h.pepper, stored):
		writeError(w, http.StatusUnauthorized, "bad credentials")
		return
	}

	token, err := auth.GenerateToken(req.UserId, h.jwtSecret, h.tokenTTL)
	if err != nil {
		h.log.Error(ctx, "issuing token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: token})
}

func (h *Handler) listObjects(w http.ResponseWriter, r *http.Request, loginId []byte) {
	objects, err := h.repo.ListObjects(r.Context(), loginId)
	if err != nil {
		h.log.Error(r.Context(), "listing objects", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := listObjectsResponse{Objects: make([]wireObject, 0, len(objects))}
	for _, o := range objects {
		resp.Objects = append(resp.Objects, wireObject{
			Id:  hex.EncodeToString(o.ObjectId),
			Siv: hex.EncodeToString(o.Siv),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getObject(w http.ResponseWriter, r *http.Request, loginId []byte) {
	var req getObjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}
	objectId, err := hex.DecodeString(req.ObjectId)
	if err != nil || len(objectId) != 32 {
		writeError(w, http.StatusBadRequest, "malformed object_id")
		return
	}

	siv, ciphertext, err := h.repo.GetObject(r.Context(), loginId, objectId)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such object")
		return
	}
	if err != nil {
		h.log.Error(r.Context(), "loading object", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, getObjectResponse{
		Siv:  hex.EncodeToString(siv),
		Data: hex.EncodeToString(ciphertext),
	})
}

func (h *Handler) updateObject(w http.ResponseWriter, r *http.Request, loginId []byte) {
	var req updateObjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}
	objectId, err := hex.DecodeString(req.ObjectId)
	if err != nil || len(objectId) != 32 {
		writeError(w, http.StatusBadRequest, "malformed object_id")
		return
	}
	siv, err := hex.DecodeString(req.Siv)
	if err != nil || len(siv) != 32 {
		writeError(w, http.StatusBadRequest, "malformed siv")
		return
	}
	ciphertext, err := hex.DecodeString(req.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed data")
		return
	}

	if err := h.repo.PutObject(r.Context(), loginId, objectId, siv, ciphertext); err != nil {
		h.log.Error(r.Context(), "storing object", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// authenticated validates the bearer token and hands the resolved login id
// to the wrapped handler.
func (h *Handler) authenticated(next func(http.ResponseWriter, *http.Request, []byte)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing access token")
			return
		}

		loginIdHex, err := auth.GetLoginIdFromToken(token, h.jwtSecret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "token expired")
			return
		}
		loginId, err := hex.DecodeString(loginIdHex)
		if err != nil || len(loginId) != 32 {
			writeError(w, http.StatusUnauthorized, "bad token subject")
			return
		}
		next(w, r, loginId)
	}
}

// logged records every request with its duration.
func (h *Handler) logged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.log.Debug(r.Context(), "request served",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
