// Package variants registers the server variants shipped with storaged.
// Importing it for side effects makes them discoverable by the bootstrap
// selector.
package variants

import (
	"storaged/pkg/bootstrap"
	"storaged/pkg/server"

	"go.uber.org/zap"
)

// Community is the baseline: a plain HTTP server with no authentication
var Community = bootstrap.Variant{
	Name:      "community",
	NewServer: newCommunityServer,
}

// Secure refines Community with API key authentication and AutoTLS,
// each enabled by configuration
var Secure = bootstrap.Variant{
	Name:      "secure",
	Refines:   []string{Community.Name},
	NewServer: newSecureServer,
}

func init() {
	bootstrap.Register(Community)
	bootstrap.Register(Secure)
}

func deps(env bootstrap.Env) server.Deps {
	return server.Deps{
		Config:          env.Config,
		Logging:         env.Logging,
		Metrics:         env.Metrics,
		InstanceID:      env.InstanceID,
		Variant:         env.Variant,
		State:           env.State,
		RequestShutdown: env.RequestShutdown,
	}
}

func newCommunityServer(env bootstrap.Env) (bootstrap.Server, error) {
	if env.Config.EnableAuth || env.Config.EnableTLS {
		env.Logging.Messages("variants").Warn("Authentication and TLS require the secure variant; serving plain HTTP",
			zap.Bool("enable_auth", env.Config.EnableAuth),
			zap.Bool("enable_tls", env.Config.EnableTLS))
	}
	return server.New(deps(env)), nil
}

func newSecureServer(env bootstrap.Env) (bootstrap.Server, error) {
	var opts []server.Option
	if env.Config.EnableAuth {
		opts = append(opts, server.WithAuth())
	}
	if env.Config.EnableTLS {
		opts = append(opts, server.WithAutoTLS())
	}
	return server.New(deps(env), opts...), nil
}
