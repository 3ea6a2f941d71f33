// Package mocks provides generated mock implementations for testing.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the auth ports that talk to external systems. The mocks are generated using
// go:generate directives and provide a fluent API for setting up expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	exchanger := mocks.NewMockTokenExchanger(ctrl)
//	exchanger.EXPECT().Exchange(gomock.Any(), "code", "verifier").Return(rec, nil)
package mocks

// Generate mock for TokenExchanger interface from internal/ports.
// This creates MockTokenExchanger with Exchange and Refresh methods.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=token_exchanger_mock.go github.com/mhnuk2007/oerms-sub002/internal/ports TokenExchanger

// Generate mock for PolicyClient interface from internal/ports.
// This creates MockPolicyClient with an Evaluate method.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=policy_client_mock.go github.com/mhnuk2007/oerms-sub002/internal/ports PolicyClient
