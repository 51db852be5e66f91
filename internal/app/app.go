package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	_ "farmmarket/docs"
	"farmmarket/internal/config"
	"farmmarket/internal/events"
	"farmmarket/internal/handlers"
	"farmmarket/internal/repositories"
	"farmmarket/internal/routes"
	"farmmarket/internal/services"
	"farmmarket/internal/utils"
)

// App — собранное приложение: роутер и всё, что нужно закрыть при остановке.
type App struct {
	Router  *gin.Engine
	cfg     *config.Config
	log     *logrus.Logger
	sweeper *services.SessionSweeper
	closers []func(context.Context)
}

func Run() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logrus.Fatalf("[app][config] %v", err)
	}
	logger := NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("[app][init] %v", err)
	}
	if err := a.Serve(ctx); err != nil {
		logger.Fatalf("[app][serve] %v", err)
	}
}

func NewLogger(cfg *config.Config) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	if cfg.IsProduction() {
		l.SetFormatter(&logrus.JSONFormatter{})
		l.SetLevel(logrus.InfoLevel)
		gin.SetMode(gin.ReleaseMode)
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	a := &App{cfg: cfg, log: logger}

	// === Stores ===
	sessions, counter, purgers, err := a.sessionStores(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	userRepo, err := a.userRepository(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	// === Services ===
	issuer, err := services.NewCredentialIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	if err != nil {
		a.Close()
		return nil, err
	}
	gateway := services.NewSMSGateway(a.smsProvider(), cfg.SMS.Fallback != "none", cfg.SMS.Timeout, logger)
	userService := services.NewUserService(userRepo, cfg.Users.EmailDomain)
	publisher := a.publisher()
	otpService := services.NewOTPService(
		sessions,
		counter,
		gateway,
		issuer,
		userService,
		publisher,
		services.OTPOptions{
			TTL:         cfg.OTP.TTL,
			MaxAttempts: cfg.OTP.MaxAttempts,
			SendLimit:   cfg.OTP.SendLimit,
			SendWindow:  cfg.OTP.SendWindow,
			ExposeCode:  cfg.ExposeCode(),
			HashCost:    cfg.OTP.HashCost,
		},
		logger,
	)

	// просроченные сессии в памяти чистим по расписанию, у Redis свой TTL
	if len(purgers) > 0 {
		a.sweeper = services.NewSessionSweeper(logger, purgers...)
		if err := a.sweeper.Start(services.DefaultSweepSchedule); err != nil {
			a.Close()
			return nil, err
		}
	}

	// === Handlers ===
	otpHandler := handlers.NewOTPHandler(otpService, logger)
	authHandler := handlers.NewAuthHandler(userService)
	userHandler := handlers.NewUserHandler(userService)

	// === Gin ===
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	routes.SetupRoutes(router, otpHandler, authHandler, userHandler, issuer)
	a.Router = router

	return a, nil
}

func (a *App) Serve(ctx context.Context) error {
	defer a.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("[app] сервер запущен на %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("[app] остановка сервера")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close освобождает ресурсы в обратном порядке.
func (a *App) Close() {
	if a.sweeper != nil {
		<-a.sweeper.Stop().Done()
		a.sweeper = nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
	a.closers = nil
}

func (a *App) sessionStores(ctx context.Context) (repositories.OTPSessionRepository, repositories.OTPSendCounter, []repositories.ExpiredPurger, error) {
	switch a.cfg.Sessions.Driver {
	case "redis":
		opt, err := redis.ParseURL(a.cfg.Redis.URL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("redis url: %w", err)
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) {
			if err := rdb.Close(); err != nil {
				a.log.Warnf("[app][redis] close: %v", err)
			}
		})
		a.log.Info("[app] OTP-сессии в Redis")
		return repositories.NewRedisOTPSessionRepository(rdb), repositories.NewRedisOTPSendCounter(rdb), nil, nil
	default:
		sessions := repositories.NewMemoryOTPSessionRepository()
		counter := repositories.NewMemoryOTPSendCounter()
		a.log.Info("[app] OTP-сессии в памяти процесса")
		return sessions, counter, []repositories.ExpiredPurger{sessions, counter}, nil
	}
}

func (a *App) userRepository(ctx context.Context) (repositories.UserRepository, error) {
	switch a.cfg.Users.Driver {
	case "postgres":
		db, err := sql.Open("postgres", a.cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres open: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("postgres ping: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) {
			if err := db.Close(); err != nil {
				a.log.Warnf("[app][postgres] close: %v", err)
			}
		})
		if err := repositories.EnsureUsersSchema(ctx, db); err != nil {
			return nil, fmt.Errorf("users schema: %w", err)
		}
		return repositories.NewPostgresUserRepository(db), nil
	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(a.cfg.Mongo.URI))
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		a.closers = append(a.closers, func(ctx context.Context) {
			if err := client.Disconnect(ctx); err != nil {
				a.log.Warnf("[app][mongo] disconnect: %v", err)
			}
		})
		if err := client.Ping(ctx, nil); err != nil {
			return nil, fmt.Errorf("mongo ping: %w", err)
		}
		return repositories.NewMongoUserRepository(ctx, client.Database(a.cfg.Mongo.Database))
	default:
		return repositories.NewMemoryUserRepository(), nil
	}
}

// smsProvider возвращает nil, если ключ не задан: шлюз сразу уйдёт в fallback.
func (a *App) smsProvider() services.SMSProvider {
	c := a.cfg.SMS
	if c.APIKey == "" {
		a.log.Warnf("[app][sms] api key для %s не задан", c.Provider)
		return nil
	}
	httpClient := &http.Client{Timeout: c.Timeout}
	switch c.Provider {
	case "mobizon":
		return utils.NewMobizonClient(c.APIKey, c.SenderID, c.BaseURL, c.CountryCode, httpClient)
	default:
		return utils.NewFast2SMSClient(c.APIKey, c.BaseURL, httpClient)
	}
}

func (a *App) publisher() events.Publisher {
	c := a.cfg.Events
	if c.AMQPURL == "" {
		return &events.LogPublisher{Log: a.log}
	}
	p, err := events.NewAMQPPublisher(c.AMQPURL, c.Exchange)
	if err != nil {
		a.log.Warnf("[app][amqp] publisher disabled: %v", err)
		return &events.LogPublisher{Log: a.log}
	}
	a.closers = append(a.closers, func(context.Context) { p.Close() })
	return p
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
