package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-class-booking/internal/booking"
	"github.com/iliyamo/gym-class-booking/internal/checkin"
	"github.com/iliyamo/gym-class-booking/internal/config"
	"github.com/iliyamo/gym-class-booking/internal/database"
	"github.com/iliyamo/gym-class-booking/internal/handler"
	"github.com/iliyamo/gym-class-booking/internal/middleware"
	"github.com/iliyamo/gym-class-booking/internal/qrtoken"
	"github.com/iliyamo/gym-class-booking/internal/queue"
	"github.com/iliyamo/gym-class-booking/internal/repository"
	"github.com/iliyamo/gym-class-booking/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer func() { _ = db.Close() }()

	// Redis is optional: without it, rate limiting and schedule caching
	// are disabled and everything else works.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and caching disabled")
	}

	// Repositories.
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	sessions := repository.NewSessionRepo(db)
	bookings := repository.NewBookingRepo(db)
	memberships := repository.NewMembershipRepo(db)
	checkins := repository.NewCheckInRepo(db)
	rewards := repository.NewRewardRepo(db)
	coupons := repository.NewCouponRepo(db)

	// Domain services.
	engine := booking.NewEngine(memberships, sessions, bookings,
		booking.WithCancelWindow(time.Duration(cfg.CancelWindowHours)*time.Hour))
	codec := qrtoken.New(cfg.QRTokenSecret, time.Duration(cfg.QRTokenTTLMS)*time.Millisecond)
	protocol := checkin.NewService(codec, checkins, rewards, bookings,
		checkin.WithTargets(cfg.RewardHoursTarget, cfg.RewardClassesTarget))

	// Handlers.
	authH := handler.NewAuthHandler(cfg, users, tokens)
	bookingH := handler.NewMemberBookingHandler(engine, sessions)
	qrH := handler.NewMemberQRHandler(protocol)
	checkoutH := handler.NewMemberCheckoutHandler(memberships, coupons)
	adminSessionH := handler.NewAdminSessionHandler(engine, sessions, bookings)
	adminScanH := handler.NewAdminScanHandler(protocol)
	adminMembershipH := handler.NewAdminMembershipHandler(memberships, coupons)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.RegisterRoutes(e)
	router.RegisterPublic(e, bookingH, config.LoadCacheConfig(), rdb)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterMember(e, bookingH, qrH, checkoutH, cfg.JWTSecret)
	router.RegisterAdmin(e, adminSessionH, adminScanH, adminMembershipH, cfg.JWTSecret)

	// Notification consumer drains the event queues in the background
	// and reconnects on broker failure.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notify-consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
