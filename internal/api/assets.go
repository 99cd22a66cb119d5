package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/fractal/internal/models"
	"github.com/starford/fractal/internal/registry"
)

const maxUploadBytes = 512 << 20 // 512 MB

// ListAssets handles GET /api/assets.
//
//	@Summary		List registered assets
//	@Tags			assets
//	@Produce		json
//	@Param			kind	query		string	false	"Filter by kind"	Enums(VIDEO, AUDIO, IMAGE)
//	@Param			q		query		string	false	"Name substring"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	AssetListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/assets [get]
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := registry.Filter{Query: q.Get("q")}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))
	if k := q.Get("kind"); k != "" {
		kind, err := models.ParseKind(k)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		f.Kind = kind
	}

	assets, total, err := h.lib.List(r.Context(), f)
	if err != nil {
		writeError(w, "list assets", err)
		return
	}
	writeJSON(w, http.StatusOK, AssetListResponse{Assets: assets, Total: total})
}

// GetAsset handles GET /api/assets/{id}.
//
//	@Summary		Get a single asset
//	@Tags			assets
//	@Produce		json
//	@Param			id	path		string	true	"Asset id"
//	@Success		200	{object}	models.Asset
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/assets/{id} [get]
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	a, err := h.lib.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get asset", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// UploadAsset handles POST /api/assets (multipart/form-data, field "file").
//
//	@Summary		Upload a media file into the library
//	@Tags			assets
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Media file"
//	@Success		201		{object}	AssetResponse
//	@Success		200		{object}	AssetResponse	"Content already registered"
//	@Failure		400		{object}	errResponse
//	@Failure		415		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/assets [post]
func (h *Handler) UploadAsset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	asset, created, err := h.lib.Import(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(w, "upload asset", err)
		return
	}
	writeJSON(w, createdStatus(created), AssetResponse{Asset: asset, Created: created})
}

// RegisterRemote handles POST /api/assets/remote.
//
//	@Summary		Register an asset that lives at a URL
//	@Tags			assets
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RemoteAssetRequest	true	"Remote asset"
//	@Success		201		{object}	AssetResponse
//	@Success		200		{object}	AssetResponse	"Source already registered"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/assets/remote [post]
func (h *Handler) RegisterRemote(w http.ResponseWriter, r *http.Request) {
	var req RemoteAssetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	asset, created, err := h.lib.RegisterRemote(r.Context(), req)
	if err != nil {
		writeError(w, "register remote asset", err)
		return
	}
	writeJSON(w, createdStatus(created), AssetResponse{Asset: asset, Created: created})
}

// SyncLibrary handles POST /api/library/sync.
//
//	@Summary		Rescan the media folder
//	@Tags			assets
//	@Produce		json
//	@Success		200	{object}	library.Report
//	@Security		BearerAuth
//	@Router			/library/sync [post]
func (h *Handler) SyncLibrary(w http.ResponseWriter, r *http.Request) {
	rep, err := h.lib.Sync(r.Context())
	if err != nil {
		writeError(w, "sync library", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func createdStatus(created bool) int {
	if created {
		return http.StatusCreated
	}
	return http.StatusOK
}
