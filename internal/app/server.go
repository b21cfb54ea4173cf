// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"crm-service/internal/config"
	"crm-service/internal/db"
	authHandler "crm-service/internal/handlers/auth"
	healthHandler "crm-service/internal/handlers/health"
	opportunityHandler "crm-service/internal/handlers/opportunity"
	wsHandler "crm-service/internal/handlers/websocket"
	"crm-service/internal/middleware"
	"crm-service/internal/pkg/captcha"
	"crm-service/internal/pkg/countries"
	"crm-service/internal/pkg/geoip"
	"crm-service/internal/pkg/jwt"
	"crm-service/internal/pkg/session"
	"crm-service/internal/repository/postgres"
	authUsecase "crm-service/internal/service/auth"
	"crm-service/internal/service/email"
	leadUsecase "crm-service/internal/service/lead"
	notifyUsecase "crm-service/internal/service/notification"
	"crm-service/internal/web"
	"crm-service/internal/websocket"
	wsHandlers "crm-service/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const version = "1.0.0"

type Server struct {
	cfg         config.AppConfig
	engine      *gin.Engine
	logger      *zap.Logger
	authService *authUsecase.AuthService

	httpServer *http.Server
	pool       *pgxpool.Pool
	redis      *redis.Client
	geo        *geoip.Reader
	stopHub    context.CancelFunc
}

func NewServer(cfg config.AppConfig, logger *zap.Logger) *Server {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	return &Server{cfg: cfg, engine: gin.New(), logger: logger}
}

// Start wires every dependency and serves HTTP until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, db.PostgresConfig{
		URL:      s.cfg.DatabaseURL,
		MaxConns: s.cfg.DBMaxConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	s.pool = pool

	if err := db.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	s.redis = redisClient
	s.logger.Info("storage connected",
		zap.String("redis", s.cfg.RedisAddr),
		zap.Int32("db_max_conns", s.cfg.DBMaxConns),
	)

	// ----- JWT Manager -----
	jwtManager, err := jwt.LoadAndBuild(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT manager: %w", err)
	}

	// ----- Repositories -----
	dbWrapper := postgres.NewDB(pool)
	authRepo := postgres.NewAuthRepository(pool)
	staffRepo := postgres.NewStaffRepository(pool)
	partyRepo := postgres.NewPartyRepository()
	leadRepo := postgres.NewLeadRepository(pool, partyRepo, dbWrapper)
	commentRepo := postgres.NewCommentRepository(pool)
	saleConfigRepo := postgres.NewSaleConfigRepository(pool)

	// ----- Session Manager & Rate Limiter -----
	sessionManager := session.NewManager(redisClient, authRepo, s.logger)
	rateLimiter := session.NewRateLimiter(redisClient)

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(s.logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	s.stopHub = stopHub
	go hub.Run(hubCtx)

	// ----- Intake collaborators -----
	emailSender := email.NewEmailSender(
		s.cfg.SMTPHost,
		s.cfg.SMTPPort,
		s.cfg.SMTPUser,
		s.cfg.SMTPPass,
		s.cfg.SMTPFrom,
		s.cfg.SMTPFromName,
	)
	dispatcher := notifyUsecase.NewDispatcher(emailSender, saleConfigRepo, emailSender.DefaultFrom(), s.cfg.BaseURL, s.logger)

	var locator geoip.Locator = geoip.Nop{}
	if s.cfg.GeoIPDBPath != "" {
		reader, err := geoip.Open(s.cfg.GeoIPDBPath)
		if err != nil {
			s.logger.Warn("geoip disabled", zap.Error(err))
		} else {
			s.geo = reader
			locator = reader
		}
	}

	var verifier captcha.Verifier = captcha.Disabled{}
	if rc := captcha.NewRecaptcha(s.cfg.RecaptchaSiteKey, s.cfg.RecaptchaSecretKey); rc.IsAvailable() {
		verifier = rc
	}

	// ----- Services (Usecases) -----
	authService := authUsecase.NewAuthService(
		authRepo,
		staffRepo,
		jwtManager,
		sessionManager,
		rateLimiter,
		hub,
		s.logger,
	)
	s.authService = authService

	intakeService := leadUsecase.NewIntakeService(leadUsecase.IntakeDeps{
		Leads:            leadRepo,
		Settings:         saleConfigRepo,
		Notifier:         dispatcher,
		Countries:        countries.MustLoad(),
		Locator:          locator,
		Captcha:          verifier,
		Events:           hub,
		Staff:            staffRepo,
		DefaultCompanyID: s.cfg.CompanyID,
	}, s.logger)
	triageService := leadUsecase.NewTriageService(leadRepo, commentRepo, staffRepo, hub, s.logger)
	workflow := leadUsecase.NewWorkflow(leadRepo, hub, s.logger)

	hub.RegisterHandler(wsHandlers.NewLeadStatsHandler(triageService))

	// ----- Initialize Super Admin -----
	if err := s.initializeSuperAdmin(); err != nil {
		s.logger.Error("failed to initialize super admin", zap.Error(err))
		// Don't fail startup, just log the error
	}

	// ----- Handlers -----
	authMiddleware := middleware.NewAuthMiddleware(authService)
	handlers := &Handlers{
		AuthHandler:        authHandler.NewAuthHandler(authService, s.logger),
		OpportunityHandler: opportunityHandler.NewOpportunityHandler(intakeService, triageService, workflow, s.logger),
		HealthHandler: healthHandler.NewHealthHandler(version, map[string]healthHandler.Check{
			"postgres": pool.Ping,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		}, s.logger),
		WSHandler:      wsHandler.NewWebSocketHandler(hub, s.cfg.AllowedOrigins, s.logger),
		AuthMiddleware: authMiddleware,
		IntakeLimit:    middleware.IntakeRateLimit(rateLimiter, s.cfg.IntakeRateLimit, s.cfg.IntakeRateWindow, s.logger),
	}

	// ----- Middlewares -----
	s.engine.SetHTMLTemplate(web.MustTemplates())
	s.engine.Use(
		middleware.RecoveryMiddleware(s.logger),
		middleware.LoggingMiddleware(s.logger),
		middleware.CORSMiddleware(s.cfg.AllowedOrigins...),
		middleware.MetricsMiddleware(),
	)

	// ----- Router -----
	SetupRouter(s.engine, s.logger, handlers)

	// ----- Start HTTP -----
	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("server running", zap.String("addr", s.cfg.HTTPAddr), zap.String("env", s.cfg.Env))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains HTTP then releases the hub and storage.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.stopHub != nil {
		s.stopHub()
	}
	if s.geo != nil {
		_ = s.geo.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

// initializeSuperAdmin creates super admin if it doesn't exist
func (s *Server) initializeSuperAdmin() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	email := s.cfg.SuperAdminEmail
	password := s.cfg.SuperAdminPassword
	fullName := s.cfg.SuperAdminName

	// Use defaults if not provided (for development only)
	if email == "" {
		email = "admin@crm.local"
		s.logger.Warn("SUPER_ADMIN_EMAIL not set, using default", zap.String("email", email))
	}
	if password == "" {
		password = "QuietHeron42&"
		s.logger.Warn("SUPER_ADMIN_PASSWORD not set, using default password")
	}
	if fullName == "" {
		fullName = "Sales Administrator"
		s.logger.Warn("SUPER_ADMIN_NAME not set, using default", zap.String("name", fullName))
	}

	if len(password) < 8 {
		return fmt.Errorf("super admin password must be at least 8 characters")
	}

	if err := s.authService.EnsureSuperAdminExists(ctx, email, password, fullName); err != nil {
		return fmt.Errorf("failed to ensure super admin exists: %w", err)
	}

	return nil
}
