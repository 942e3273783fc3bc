package routes

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"nutritrack/controllers"
	"nutritrack/logger"
	"nutritrack/middlewares"
)

// Deps is everything the router hands out to handlers.
type Deps struct {
	DB          *gorm.DB
	Log         *logger.Logger
	JWTSecret   []byte
	CORSOrigins []string
	DevRoutes   bool

	Auth          *controllers.AuthController
	Capture       *controllers.CaptureController
	Meals         *controllers.MealController
	Activity      *controllers.ActivityController
	Analytics     *controllers.AnalyticsController
	Goals         *controllers.GoalController
	Devices       *controllers.DeviceController
	Notifications *controllers.NotificationController
	Realtime      *controllers.RealtimeController
	Foods         *controllers.FoodController
	Dev           *controllers.DevController
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("nutritrack"))
	r.Use(middlewares.RequestContext(d.Log))

	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id", "X-Trace-Id"},
		ExposeHeaders:    []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(d.CORSOrigins) == 0 || slices.Contains(d.CORSOrigins, "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = d.CORSOrigins
	}
	r.Use(cors.New(cc))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	// Public
	r.POST("/auth/login", d.Auth.Login)
	r.GET("/foods", d.Foods.Search)
	r.GET("/foods/:name", d.Foods.Get)

	api := r.Group("/")
	api.Use(middlewares.AuthMiddleware(d.DB, d.JWTSecret))
	{
		api.GET("/me", d.Auth.Me)
		api.GET("/ws", d.Realtime.Stream)

		capture := api.Group("/capture/sessions")
		{
			capture.POST("", d.Capture.Start)
			capture.GET("/:id", d.Capture.Get)
			capture.PATCH("/:id", d.Capture.Update)
			capture.DELETE("/:id", d.Capture.End)
			capture.POST("/:id/frames", d.Capture.PushFrame)
			capture.POST("/:id/accept", d.Capture.Accept)
			capture.POST("/:id/reject", d.Capture.Reject())
			capture.POST("/:id/retry", d.Capture.Retry())
			capture.POST("/:id/cancel", d.Capture.Cancel())
			capture.POST("/:id/review", d.Capture.Review())
			capture.POST("/:id/resume", d.Capture.Resume())
			capture.DELETE("/:id/dishes/:index", d.Capture.RemoveDish)
			capture.POST("/:id/commit", d.Capture.Commit)
		}

		api.GET("/meals", d.Meals.List)
		api.GET("/meals/warnings", d.Meals.Warnings)
		api.GET("/meals/:id", d.Meals.Get)
		api.DELETE("/meals/:id", d.Meals.Delete)

		api.GET("/activity", d.Activity.Recent)
		api.GET("/activity/meals/:id", d.Activity.ByMeal)

		api.GET("/summary/daily", d.Analytics.GetDailySummary)
		api.GET("/summary/weekly", d.Analytics.GetWeeklyOverview)

		api.GET("/goals", d.Goals.Get)
		api.PUT("/goals", d.Goals.Update)
		api.GET("/goals/progress", d.Goals.Progress)

		api.POST("/devices", d.Devices.Register)
		api.POST("/notifications/toggle", d.Notifications.Toggle)
		api.GET("/alerts", d.Notifications.ListAlerts)

		if d.DevRoutes && d.Dev != nil {
			api.POST("/dev/classifier", d.Dev.SetPredictions)
			api.POST("/dev/push", d.Dev.PushTest)
		}
	}
	return r
}
