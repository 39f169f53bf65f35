package router

import (
	"context"
	"net/http"
	"time"

	"Food_Share/internal/handler"
	"Food_Share/internal/logging"
	"Food_Share/internal/metrics"
	"Food_Share/internal/middleware"
	"Food_Share/internal/model"
	"Food_Share/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Deps is everything the route table needs. Metrics and Ping may be nil.
type Deps struct {
	Users       *service.UserService
	Posts       *service.PostService
	Requests    *service.RequestService
	Metrics     *metrics.Metrics
	Log         logrus.FieldLogger
	CORSOrigins []string
	Ping        func(ctx context.Context) error
}

func InitRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.Middleware(d.Log))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
	}
	r.Use(cors.New(corsConfig(d.CORSOrigins)))

	user := handler.NewUserHandler(d.Users)
	post := handler.NewPostHandler(d.Posts)
	request := handler.NewRequestHandler(d.Requests)

	auth := middleware.AuthMiddleware(d.Users)
	donor := middleware.RequireRole(model.RoleDonor)
	receiver := middleware.RequireRole(model.RoleReceiver)

	r.GET("/healthz", healthz(d.Ping))
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/register", user.Register)
		authGroup.POST("/login", user.Login)
		authGroup.GET("/me", auth, user.Me)
		authGroup.POST("/logout", auth, user.Logout)
	}

	foodGroup := r.Group("/api/food")
	foodGroup.Use(auth)
	{
		foodGroup.POST("", donor, post.CreateFood)
		foodGroup.GET("", post.ListFood)
		foodGroup.GET("/my", donor, post.MyFood)
		foodGroup.DELETE("/:id", donor, post.DeleteFood)
	}

	resourceGroup := r.Group("/api/resources")
	resourceGroup.Use(auth)
	{
		resourceGroup.POST("", donor, post.CreateResource)
		resourceGroup.GET("", post.ListResources)
		resourceGroup.GET("/my", donor, post.MyResources)
		resourceGroup.DELETE("/:id", donor, post.DeleteResource)
	}

	requestGroup := r.Group("/api/requests")
	requestGroup.Use(auth)
	{
		requestGroup.POST("", receiver, request.Create)
		requestGroup.GET("/my", receiver, request.Mine)
		requestGroup.GET("/donor", donor, request.ForDonor)
		requestGroup.PUT("/:id", donor, request.Resolve)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "If-None-Match", logging.RequestIDHeader},
		ExposeHeaders:    []string{"ETag", logging.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func healthz(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
