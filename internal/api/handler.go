package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recipebox/internal/extract"
	"recipebox/internal/images"
	"recipebox/internal/recipe"
)

// Extractor turns one or more sources into a single recipe candidate.
type Extractor interface {
	ExtractAll(ctx context.Context, inputs []extract.Input) (recipe.Candidate, error)
}

// Transcriber converts recorded speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename, mimeType string, audio []byte) (string, error)
}

// ImageStore persists recipe photos and returns their public URL.
type ImageStore interface {
	Save(imageData []byte, ext string) (string, error)
}

// Handler handles HTTP requests.
type Handler struct {
	Extractor      Extractor
	Transcriber    Transcriber
	RecipeStore    recipe.Store
	ImageStore     ImageStore
	logger         *zap.Logger
	extractTimeout time.Duration
}

// NewHandler creates a new Handler. A zero extractTimeout means 45 seconds.
func NewHandler(extractor Extractor, transcriber Transcriber, store recipe.Store, imageStore ImageStore, logger *zap.Logger, extractTimeout time.Duration) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if extractTimeout <= 0 {
		extractTimeout = 45 * time.Second
	}
	return &Handler{
		Extractor:      extractor,
		Transcriber:    transcriber,
		RecipeStore:    store,
		ImageStore:     imageStore,
		logger:         logger,
		extractTimeout: extractTimeout,
	}
}

const storeTimeout = 5 * time.Second

const invalidImageType = "Invalid file type. Only JPEG, JPG, and PNG images are allowed."

// ParseImage extracts one recipe from one or more photographed pages sent
// as "image" form files, in page order.
func (h *Handler) ParseImage(c *gin.Context) {
	var files []*multipart.FileHeader
	form, err := c.MultipartForm()
	if err == nil {
		files = form.File["image"]
	} else if bodyTooLarge(c, err) {
		return
	}
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image provided"})
		return
	}

	inputs := make([]extract.Input, 0, len(files))
	for _, file := range files {
		extension := strings.ToLower(filepath.Ext(file.Filename))
		if !images.AllowedExtension(extension) {
			c.JSON(http.StatusBadRequest, gin.H{"error": invalidImageType, "file": file.Filename})
			return
		}

		imageData, err := readFormFile(file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("read image err: %s", err.Error())})
			return
		}

		mimeType := file.Header.Get("Content-Type")
		if !strings.HasPrefix(mimeType, "image/") {
			mimeType = images.MIMEType(extension)
		}
		inputs = append(inputs, extract.ImageInput(mimeType, imageData))
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.extractTimeout)
	defer cancel()

	candidate, err := h.Extractor.ExtractAll(ctx, inputs)
	if err != nil {
		h.writeExtractError(c, err, ctx.Err())
		return
	}

	c.JSON(http.StatusOK, candidate)
}

type parseTextRequest struct {
	Text string `json:"text"`
}

// ParseText extracts a recipe from free-form text such as a voice transcript.
func (h *Handler) ParseText(c *gin.Context) {
	var req parseTextRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No text provided"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.extractTimeout)
	defer cancel()

	candidate, err := h.Extractor.ExtractAll(ctx, []extract.Input{extract.TextInput(req.Text)})
	if err != nil {
		h.writeExtractError(c, err, ctx.Err())
		return
	}

	c.JSON(http.StatusOK, candidate)
}

// Transcribe converts an uploaded "audio" recording to text.
func (h *Handler) Transcribe(c *gin.Context) {
	file, err := c.FormFile("audio")
	if err != nil {
		if bodyTooLarge(c, err) {
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No audio file provided"})
		return
	}

	audio, err := readFormFile(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("read audio err: %s", err.Error())})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.extractTimeout)
	defer cancel()

	text, err := h.Transcriber.Transcribe(ctx, file.Filename, file.Header.Get("Content-Type"), audio)
	if err != nil {
		c.Error(err)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.JSON(http.StatusRequestTimeout, gin.H{"error": fmt.Sprintf("Transcription timed out after %s", h.extractTimeout)})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to transcribe audio"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"text": text})
}

// UploadImage stores a recipe photo and returns the URL to attach to a recipe.
func (h *Handler) UploadImage(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		if bodyTooLarge(c, err) {
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("get form err: %s", err.Error())})
		return
	}

	extension := strings.ToLower(filepath.Ext(file.Filename))
	if !images.AllowedExtension(extension) {
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidImageType})
		return
	}

	imageData, err := readFormFile(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("read image err: %s", err.Error())})
		return
	}

	imageURL, err := h.ImageStore.Save(imageData, extension)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to save image: %s", err.Error())})
		return
	}

	c.JSON(http.StatusOK, gin.H{"image_url": imageURL})
}

type createRecipeRequest struct {
	recipe.Candidate
	ImageURL *string `json:"image_url"`
}

// CreateRecipe saves a reviewed candidate as a recipe.
func (h *Handler) CreateRecipe(c *gin.Context) {
	var req createRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r := recipe.NewRecipe(req.Candidate, req.ImageURL)
	if r.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Recipe name is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	if err := h.RecipeStore.CreateRecipe(ctx, r); err != nil {
		h.writeStoreError(c, err)
		return
	}

	h.logger.Info("recipe saved",
		zap.String("recipe_id", r.ID),
		zap.Int("ingredients", len(r.Ingredients)),
		zap.Int("instructions", len(r.Instructions)),
	)
	c.JSON(http.StatusCreated, r)
}

// ListRecipes returns recipes, newest first, optionally filtered by cuisine
// type and main ingredient.
func (h *Handler) ListRecipes(c *gin.Context) {
	filter := recipe.ListFilter{
		CuisineType:    c.Query("cuisine_type"),
		MainIngredient: c.Query("main_ingredient"),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	recipes, err := h.RecipeStore.ListRecipes(ctx, filter)
	if err != nil {
		h.writeStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, recipes)
}

// GetRecipe returns one recipe with its ingredients and instructions.
func (h *Handler) GetRecipe(c *gin.Context) {
	r, ok := h.loadRecipe(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r)
}

// DeleteRecipe removes a recipe and its children.
func (h *Handler) DeleteRecipe(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	deleted, err := h.RecipeStore.DeleteRecipe(ctx, c.Param("id"))
	if err != nil {
		h.writeStoreError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Recipe not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

// CookStep returns one step of a recipe in cook mode.
func (h *Handler) CookStep(c *gin.Context) {
	step, err := strconv.Atoi(c.Param("step"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Step must be a number"})
		return
	}

	r, ok := h.loadRecipe(c)
	if !ok {
		return
	}

	view, err := recipe.CookStep(r, step)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, view)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportRecipes downloads every recipe as an XLSX workbook.
func (h *Handler) ExportRecipes(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.extractTimeout)
	defer cancel()

	data, err := recipe.ExportXLSX(ctx, h.RecipeStore)
	if err != nil {
		h.writeStoreError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="recipes.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// Health reports whether the service and its database are reachable.
func (h *Handler) Health(c *gin.Context) {
	if p, ok := h.RecipeStore.(interface{ Ping(context.Context) error }); ok {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) loadRecipe(c *gin.Context) (*recipe.Recipe, bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	r, err := h.RecipeStore.GetRecipe(ctx, c.Param("id"))
	if err != nil {
		h.writeStoreError(c, err)
		return nil, false
	}
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Recipe not found"})
		return nil, false
	}
	return r, true
}

// writeExtractError maps extraction failures onto status codes.
func (h *Handler) writeExtractError(c *gin.Context, err, ctxErr error) {
	c.Error(err)

	var ve *extract.ValidationError
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctxErr, context.DeadlineExceeded):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": fmt.Sprintf("Recipe extraction timed out after %s", h.extractTimeout)})
	case errors.As(err, &ve):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      ve.Err.Error(),
			"field":      ve.Field,
			"constraint": ve.Constraint,
		})
	case errors.Is(err, extract.ErrEmptyResponse):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, recipe.ErrEmptyBatch), errors.Is(err, extract.ErrEmptyInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to parse recipe"})
	}
}

func (h *Handler) writeStoreError(c *gin.Context, err error) {
	c.Error(err)
	if errors.Is(err, context.DeadlineExceeded) {
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "Database query timed out"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("database error: %s", err.Error())})
}

// bodyTooLarge answers 413 when err comes from the body size limit.
func bodyTooLarge(c *gin.Context, err error) bool {
	var maxErr *http.MaxBytesError
	if !errors.As(err, &maxErr) {
		return false
	}
	c.Error(err)
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{
		"error":    "Request body too large",
		"max_size": maxErr.Limit,
	})
	return true
}

func readFormFile(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}
