package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/mhnuk2007/oerms-sub002/config"
	"github.com/mhnuk2007/oerms-sub002/internal/adapters/authroles"
	"github.com/mhnuk2007/oerms-sub002/internal/adapters/devauth"
	"github.com/mhnuk2007/oerms-sub002/internal/adapters/idp"
	"github.com/mhnuk2007/oerms-sub002/internal/adapters/memstore"
	policyadapter "github.com/mhnuk2007/oerms-sub002/internal/adapters/policy"
	postgresadapter "github.com/mhnuk2007/oerms-sub002/internal/adapters/postgres"
	redisadapter "github.com/mhnuk2007/oerms-sub002/internal/adapters/redis"
	"github.com/mhnuk2007/oerms-sub002/internal/observability/statsd"
	"github.com/mhnuk2007/oerms-sub002/internal/ports"
	"github.com/mhnuk2007/oerms-sub002/internal/service"
)

// AuthProvider bundles the three provider-facing ports one identity backend
// implements together.
type AuthProvider interface {
	ports.AuthorizeURLBuilder
	ports.TokenExchanger
	ports.IdentityDecoder
}

// AuthProviderConfig contains configuration for the identity provider.
type AuthProviderConfig struct {
	Auth    config.AuthConfig
	Session config.SessionConfig
	Logger  *slog.Logger
}

// BuildAuthProvider creates the identity provider for the configured auth
// mode: the real IdP adapter for oauth, the local dev provider for mock.
//
//nolint:ireturn // mode selection is the point of this constructor.
func BuildAuthProvider(cfg AuthProviderConfig) (AuthProvider, error) {
	roleMapper := authroles.StaticRoleMapper{
		AdminGroup:   cfg.Auth.AdminGroup,
		TeacherGroup: cfg.Auth.TeacherGroup,
		StudentGroup: cfg.Auth.StudentGroup,
	}

	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		if cfg.Logger != nil {
			cfg.Logger.Warn("mock auth mode enabled; do not use in production",
				"user_id", cfg.Auth.DevAuth.UserID)
		}
		return devauth.NewProvider(devauth.Config{
			UserID:        cfg.Auth.DevAuth.UserID,
			Username:      cfg.Auth.DevAuth.Username,
			Email:         cfg.Auth.DevAuth.Email,
			Roles:         cfg.Auth.DevAuth.Roles,
			TokenDuration: cfg.Auth.DevAuth.TokenDuration,
		})

	case config.AuthModeOAuth:
		oauth := cfg.Auth.OAuth
		if oauth.DiscoveryURL == "" {
			return nil, errors.New("oauth mode requires OAUTH_DISCOVERY_URL")
		}
		return idp.NewProvider(idp.ProviderConfig{
			AuthServerBase:  oauth.AuthServerBase,
			DiscoveryURL:    oauth.DiscoveryURL,
			ClientID:        oauth.ClientID,
			RedirectURL:     oauth.RedirectURL,
			Scope:           oauth.Scope,
			ExchangeTimeout: cfg.Session.ExchangeTimeout,
			Roles:           roleMapper,
		})

	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}
}

// Stores bundles the token and state stores behind one backend choice.
type Stores struct {
	Tokens ports.TokenStore
	States ports.StateStore
}

// StoresConfig contains configuration for the persistence tier.
type StoresConfig struct {
	Backend     config.TokenStoreBackend
	Session     config.SessionConfig
	RedisClient redis.UniversalClient
	DB          *sql.DB
	Logger      *slog.Logger
}

// BuildStores selects the persistence tier for token records. Protocol state
// is short-lived and goes to Redis whenever a client is available, falling
// back to process memory otherwise.
func BuildStores(cfg StoresConfig) (Stores, error) {
	var s Stores

	switch cfg.Backend {
	case config.TokenStoreRedis:
		if cfg.RedisClient == nil {
			return s, errors.New("token store backend redis requires a redis connection")
		}
		s.Tokens = redisadapter.NewTokenStore(cfg.RedisClient, cfg.Session.TokenGrace)

	case config.TokenStorePostgres:
		if cfg.DB == nil {
			return s, errors.New("token store backend postgres requires a database connection")
		}
		s.Tokens = postgresadapter.NewTokenStore(cfg.DB, cfg.Session.TokenGrace)

	case config.TokenStoreMemory:
		if cfg.Logger != nil {
			cfg.Logger.Warn("in-memory token store enabled; sessions will not survive restarts")
		}
		s.Tokens = memstore.NewTokenStore(cfg.Session.TokenGrace)

	default:
		return s, fmt.Errorf("unknown token store backend %q", cfg.Backend)
	}

	if cfg.RedisClient != nil {
		s.States = redisadapter.NewStateStore(cfg.RedisClient, cfg.Session.StateTTL)
	} else {
		s.States = memstore.NewStateStore(cfg.Session.StateTTL)
	}

	return s, nil
}

// ServiceContainer holds the wired application services.
type ServiceContainer struct {
	Login    *service.LoginService
	Sessions *service.SessionService
	Policy   *service.PolicyService
}

// ServicesConfig contains the dependencies for service wiring.
type ServicesConfig struct {
	Config   *config.AppConfig
	Provider AuthProvider
	Stores   Stores
	Metrics  statsd.Sink
	Logger   *slog.Logger
}

// BuildServices wires the login, session, and policy services.
func BuildServices(cfg ServicesConfig) (ServiceContainer, error) {
	var c ServiceContainer

	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	c.Login = service.NewLoginService(service.LoginServiceOptions{
		URLBuilder: cfg.Provider,
		Exchanger:  cfg.Provider,
		Decoder:    cfg.Provider,
		Tokens:     cfg.Stores.Tokens,
		States:     cfg.Stores.States,
		Metrics:    cfg.Metrics,
		Logger:     cfg.Logger,
	})

	c.Sessions = service.NewSessionService(service.SessionServiceOptions{
		Tokens:        cfg.Stores.Tokens,
		States:        cfg.Stores.States,
		Exchanger:     cfg.Provider,
		Decoder:       cfg.Provider,
		RefreshLeeway: appCfg.Session.RefreshLeeway,
		Metrics:       cfg.Metrics,
		Logger:        cfg.Logger,
	})

	var policyClient ports.PolicyClient = policyadapter.Disabled{}
	if appCfg.Policy.IsEnabled() {
		client, err := policyadapter.NewClient(policyadapter.Config{
			EndpointURL:  appCfg.Policy.EndpointURL,
			DecisionPath: appCfg.Policy.DecisionPath,
			Timeout:      appCfg.Policy.Timeout,
		})
		if err != nil {
			return c, fmt.Errorf("build policy client: %w", err)
		}
		policyClient = client
	} else if cfg.Logger != nil {
		cfg.Logger.Warn("no policy endpoint configured; every policy query will deny")
	}

	c.Policy = service.NewPolicyService(service.PolicyServiceOptions{
		Tokens:  cfg.Stores.Tokens,
		Client:  policyClient,
		Metrics: cfg.Metrics,
		Logger:  cfg.Logger,
	})

	return c, nil
}

// BuildMetricsSink dials the configured StatsD endpoint, or returns a
// disabled client.
func BuildMetricsSink(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) (*statsd.Client, error) {
	return statsd.NewClient(statsd.Config{
		Enabled: cfg.IsEnabled(),
		Address: cfg.StatsdAddress,
		Prefix:  "oerms.auth",
		Logger:  logger,
	})
}
