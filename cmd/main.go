package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/gin-gonic/gin"

	"nutritrack/capture"
	"nutritrack/classifier"
	"nutritrack/config"
	"nutritrack/controllers"
	"nutritrack/logger"
	"nutritrack/observability"
	"nutritrack/routes"
	"nutritrack/scale"
	"nutritrack/services"
	"nutritrack/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel := observability.InitOTel(ctx, log, observability.Config{
		Enabled:     cfg.OTelEnabled,
		ServiceName: "nutritrack",
		Environment: cfg.AppEnv,
		Endpoint:    cfg.OTelEndpoint,
	})
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(sctx)
	}()

	db, err := config.InitDB(ctx, cfg, log)
	if err != nil {
		log.Fatal("database init failed", "error", err)
	}
	loc := cfg.Location()

	var awsCfg *aws.Config
	if cfg.AWSRegion != "" {
		c, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			log.Fatal("aws config load failed", "error", err)
		}
		awsCfg = &c
	}

	// Catalog, with redis in front when configured.
	var cache services.FoodCache
	if cfg.RedisAddr != "" {
		rc, err := services.NewRedisFoodCache(ctx, cfg.RedisAddr, time.Hour, log)
		if err != nil {
			log.Warn("redis unavailable; food cache disabled", "error", err)
		} else {
			defer rc.Close()
			cache = rc
		}
	}
	foods := services.NewFoodService(db, cache, log)

	model, static, closeModel := buildModel(ctx, cfg, awsCfg, log)
	defer closeModel()

	var archive capture.Archiver
	if awsCfg != nil && cfg.S3Bucket != "" {
		s3cfg := awsCfg.Copy()
		s3cfg.Region = cfg.S3Region
		archive = utils.NewFrameArchive(s3cfg, cfg.S3Bucket, cfg.CloudFrontURL)
	}

	hub := services.NewRealtimeHub(log)
	push := services.NewPushService(db, awsCfg, cfg.SNSFCMArn, log)
	goals := services.NewGoalService(db, loc)
	alerts := services.NewAlertBus(db, goals, hub, push, log)
	meals := services.NewMealService(db, services.NewGormTxRunner(db), loc, log).WithAlerts(alerts)
	captures := services.NewCaptureService(services.CaptureConfig{
		ConfirmFrames: cfg.CaptureConfirm,
		IdleTimeout:   cfg.CaptureIdle,
		Scale: scale.Options{
			Interval: cfg.ScaleTick,
			MinStep:  cfg.ScaleMinStep,
			MaxStep:  cfg.ScaleMaxStep,
		},
	}, foods, classifier.NewAdapter(model), meals, archive, hub, log)
	go captures.Run(ctx, time.Minute)

	secret := []byte(cfg.JWTSecret)
	r := routes.SetupRouter(routes.Deps{
		DB:            db,
		Log:           log,
		JWTSecret:     secret,
		CORSOrigins:   cfg.CORSOrigins,
		DevRoutes:     !cfg.IsProduction(),
		Auth:          controllers.NewAuthController(services.NewAuthService(db, secret)),
		Capture:       controllers.NewCaptureController(captures),
		Meals:         controllers.NewMealController(meals, loc),
		Activity:      controllers.NewActivityController(services.NewActivityService(db), loc),
		Analytics:     controllers.NewAnalyticsController(services.NewAnalyticsService(db, goals, loc), loc),
		Goals:         controllers.NewGoalController(goals),
		Devices:       controllers.NewDeviceController(push),
		Notifications: controllers.NewNotificationController(push, alerts, loc),
		Realtime:      controllers.NewRealtimeController(hub, cfg.CORSOrigins),
		Foods:         controllers.NewFoodController(foods),
		Dev:           controllers.NewDevController(push, static),
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Info("listening", "addr", srv.Addr, "classifier", cfg.ClassifierBackend, "db", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}

// buildModel picks the classifier backend. The static model is also
// returned so the dev routes can script it.
func buildModel(ctx context.Context, cfg *config.Config, awsCfg *aws.Config, log *logger.Logger) (classifier.Model, *classifier.StaticModel, func()) {
	switch cfg.ClassifierBackend {
	case "rekognition":
		return services.NewRekognitionClassifier(*awsCfg, cfg.RekognitionArn), nil, func() {}
	case "vision":
		v, err := services.NewVisionClassifier(ctx)
		if err != nil {
			log.Fatal("vision classifier init failed", "error", err)
		}
		return v, nil, func() { _ = v.Close() }
	default:
		m := classifier.NewStaticModel()
		return m, m, func() {}
	}
}
