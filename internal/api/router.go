package api

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
	ImageURLPrefix string
	ImageDir       string
	Logger         *zap.Logger
}

// NewRouter registers every route of the service on a new gin engine.
func NewRouter(handler *Handler, opts RouterOptions) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	if opts.MaxBodyBytes > 0 {
		r.MaxMultipartMemory = opts.MaxBodyBytes
	}

	r.Use(requestid.New())
	r.Use(RequestLogger(logger))
	r.Use(Recovery(logger))
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))
	r.Use(BodySizeLimit(opts.MaxBodyBytes))

	r.GET("/health", handler.Health)

	api := r.Group("/api")
	{
		api.POST("/recipes/parse-image", handler.ParseImage)
		api.POST("/recipes/parse-text", handler.ParseText)
		api.POST("/transcribe", handler.Transcribe)
		api.POST("/images", handler.UploadImage)

		api.POST("/recipes", handler.CreateRecipe)
		api.GET("/recipes", handler.ListRecipes)
		api.GET("/recipes/:id", handler.GetRecipe)
		api.DELETE("/recipes/:id", handler.DeleteRecipe)
		api.GET("/recipes/:id/cook/:step", handler.CookStep)

		api.GET("/export/recipes.xlsx", handler.ExportRecipes)
	}

	if opts.ImageDir != "" && opts.ImageURLPrefix != "" {
		r.Static(opts.ImageURLPrefix, opts.ImageDir)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
