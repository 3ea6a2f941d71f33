package bootstrap

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhnuk2007/oerms-sub002/config"
	domainauth "github.com/mhnuk2007/oerms-sub002/internal/domain/auth"
	"github.com/mhnuk2007/oerms-sub002/internal/observability/statsd"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestBuildAuthProvider_MockMode(t *testing.T) {
	provider, err := BuildAuthProvider(AuthProviderConfig{
		Auth: config.AuthConfig{
			Mode: config.AuthModeMock,
			DevAuth: config.DevAuthConfig{
				UserID:        "dev-user",
				Username:      "dev",
				Email:         "dev@example.com",
				Roles:         []string{"ROLE_ADMIN"},
				TokenDuration: 8 * time.Hour,
			},
		},
		Logger: testLogger(),
	})
	require.NoError(t, err)
	require.NotNil(t, provider)

	// The dev provider issues a working end-to-end flow without a network.
	u, err := provider.BuildAuthorizeURL("challenge-1", "state-1")
	require.NoError(t, err)
	assert.Contains(t, u, "state=state-1")
}

func TestBuildAuthProvider_OAuthRequiresDiscoveryURL(t *testing.T) {
	_, err := BuildAuthProvider(AuthProviderConfig{
		Auth: config.AuthConfig{
			Mode:  config.AuthModeOAuth,
			OAuth: config.OAuthConfig{ClientID: "oerms-ui"},
		},
		Logger: testLogger(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OAUTH_DISCOVERY_URL")
}

func TestBuildAuthProvider_UnknownMode(t *testing.T) {
	_, err := BuildAuthProvider(AuthProviderConfig{
		Auth: config.AuthConfig{Mode: config.AuthMode("saml")},
	})
	require.Error(t, err)
}

func TestBuildStores_MemoryBackend(t *testing.T) {
	stores, err := BuildStores(StoresConfig{
		Backend: config.TokenStoreMemory,
		Session: config.SessionConfig{TokenGrace: 5 * time.Minute, StateTTL: 10 * time.Minute},
		Logger:  testLogger(),
	})
	require.NoError(t, err)
	assert.NotNil(t, stores.Tokens)
	assert.NotNil(t, stores.States)
}

func TestBuildStores_RedisBackendRequiresClient(t *testing.T) {
	_, err := BuildStores(StoresConfig{
		Backend: config.TokenStoreRedis,
		Session: config.SessionConfig{TokenGrace: 5 * time.Minute},
	})
	require.Error(t, err)
}

func TestBuildStores_PostgresBackendRequiresDB(t *testing.T) {
	_, err := BuildStores(StoresConfig{
		Backend: config.TokenStorePostgres,
		Session: config.SessionConfig{TokenGrace: 5 * time.Minute},
	})
	require.Error(t, err)
}

func TestBuildServices_WithoutPolicyEndpoint(t *testing.T) {
	provider, err := BuildAuthProvider(AuthProviderConfig{
		Auth: config.AuthConfig{
			Mode: config.AuthModeMock,
			DevAuth: config.DevAuthConfig{
				UserID:        "dev-user",
				TokenDuration: time.Hour,
			},
		},
		Logger: testLogger(),
	})
	require.NoError(t, err)

	stores, err := BuildStores(StoresConfig{
		Backend: config.TokenStoreMemory,
		Session: config.SessionConfig{TokenGrace: 5 * time.Minute, StateTTL: 10 * time.Minute},
	})
	require.NoError(t, err)

	metrics, err := statsd.NewClient(statsd.Config{Logger: testLogger()})
	require.NoError(t, err)

	cfg := &config.AppConfig{}
	cfg.Sanitize()

	services, err := BuildServices(ServicesConfig{
		Config:   cfg,
		Provider: provider,
		Stores:   stores,
		Metrics:  metrics,
		Logger:   testLogger(),
	})
	require.NoError(t, err)
	require.NotNil(t, services.Login)
	require.NotNil(t, services.Sessions)
	require.NotNil(t, services.Policy)

	// No endpoint configured means every decision denies.
	decision, err := services.Policy.Evaluate(context.Background(), "no-such-sid",
		domainauth.PolicyQuery{Action: "exam:read", Resource: "exam/42"})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestBuildHTTPServer_RequiresAddr(t *testing.T) {
	_, err := BuildHTTPServer(HTTPServerConfig{
		Config: config.HTTPConfig{},
		Logger: testLogger(),
	})
	require.Error(t, err)
}

func TestBuildHTTPServer_Timeouts(t *testing.T) {
	server, err := BuildHTTPServer(HTTPServerConfig{
		Config: config.HTTPConfig{Addr: ":0"},
		Logger: testLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, server.ReadTimeout)
	assert.NotNil(t, server.Handler)
}
