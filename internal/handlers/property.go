package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"propertyhub/internal/apperr"
	"propertyhub/internal/auth"
	"propertyhub/internal/cache"
	"propertyhub/internal/listing"
	"propertyhub/internal/models"
	"propertyhub/internal/properties"
	"propertyhub/internal/search"
)

// PropertyHandler serves listing reads, submissions and edits
type PropertyHandler struct {
	query          *properties.Query
	listings       *listing.Service
	cache          *cache.PropertyCache
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewPropertyHandler creates a property handler
func NewPropertyHandler(query *properties.Query, listings *listing.Service, c *cache.PropertyCache, maxUploadBytes int64, logger *zap.Logger) *PropertyHandler {
	return &PropertyHandler{
		query:          query,
		listings:       listings,
		cache:          c,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.Named("http.properties"),
	}
}

// updateRequest is a listing edit plus the images to drop
type updateRequest struct {
	listing.Patch
	RemoveImages []string `json:"remove_images"`
}

// Home returns pinned and latest listings
func (h *PropertyHandler) Home(c *gin.Context) {
	home, err := h.query.Home(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, home)
}

// List filters approved listings by status, one page at a time
func (h *PropertyHandler) List(c *gin.Context) {
	status := models.PropertyStatus(c.DefaultQuery("status", string(models.StatusForRent)))
	page, err := h.query.ByStatus(c.Request.Context(), status, queryInt(c, "page", 1))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Get returns one listing. Approved listings are served from the cache.
func (h *PropertyHandler) Get(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if cached, ok := h.cache.Get(id); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	property, err := h.query.Get(c.Request.Context(), id, auth.Actor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if property.Approved {
		h.cache.Set(property)
	}
	c.JSON(http.StatusOK, property)
}

// Mine lists the session user's listings
func (h *PropertyHandler) Mine(c *gin.Context) {
	list, err := h.query.CreatedBy(c.Request.Context(), auth.Actor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"properties": list, "count": len(list)})
}

// Create submits a listing, as JSON or as multipart with a "data" JSON
// field and "images" files
func (h *PropertyHandler) Create(c *gin.Context) {
	var draft listing.Draft
	uploads, err := h.bind(c, &draft)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	property, err := h.listings.Create(c.Request.Context(), draft, auth.Actor(c), uploads)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, property)
}

// Update edits a listing. Only its creator or an administrator may.
func (h *PropertyHandler) Update(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var req updateRequest
	uploads, err := h.bind(c, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	ctx := c.Request.Context()
	actor := auth.Actor(c)
	existing, err := h.query.Get(ctx, id, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	updated, err := h.listings.ApplyUpdate(ctx, existing, req.Patch, actor, req.RemoveImages, uploads)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.cache.Invalidate(id)
	c.JSON(http.StatusOK, updated)
}

// Search runs a full-text query over approved listings
func (h *PropertyHandler) Search(c *gin.Context) {
	params := search.FilterParams{
		Query:  c.Query("q"),
		Type:   c.Query("type"),
		Status: c.Query("status"),
		City:   c.Query("city"),
		SortBy: c.Query("sort"),
	}
	if v, err := strconv.ParseFloat(c.Query("min_price"), 64); err == nil {
		params.MinPrice = &v
	}
	if v, err := strconv.ParseFloat(c.Query("max_price"), 64); err == nil {
		params.MaxPrice = &v
	}
	if v, err := strconv.Atoi(c.Query("min_rooms")); err == nil {
		params.MinRooms = &v
	}
	params.Limit = int64(queryInt(c, "limit", 0))
	if page := queryInt(c, "page", 1); page > 1 && params.Limit > 0 {
		params.Offset = int64(page-1) * params.Limit
	}

	res, err := h.query.Search(c.Request.Context(), params)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// bind decodes the request body into dst and collects uploaded images
func (h *PropertyHandler) bind(c *gin.Context, dst interface{}) ([]listing.Upload, error) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBindJSON(dst); err != nil {
			return nil, fmt.Errorf("%w: invalid request body: %v", apperr.ErrValidation, err)
		}
		return nil, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid multipart form: %v", apperr.ErrValidation, err)
	}
	if data := form.Value["data"]; len(data) > 0 {
		if err := json.Unmarshal([]byte(data[0]), dst); err != nil {
			return nil, fmt.Errorf("%w: invalid data field: %v", apperr.ErrValidation, err)
		}
	}
	return readUploads(form.File["images"])
}

func readUploads(files []*multipart.FileHeader) ([]listing.Upload, error) {
	uploads := make([]listing.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: unreadable upload %q", apperr.ErrValidation, fh.Filename)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: unreadable upload %q", apperr.ErrValidation, fh.Filename)
		}
		uploads = append(uploads, listing.Upload{Name: fh.Filename, Data: data})
	}
	return uploads, nil
}
