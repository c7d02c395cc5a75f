package variants

import (
	"testing"
	"time"

	"storaged/pkg/bootstrap"
	"storaged/pkg/config"
	"storaged/pkg/logger"
	"storaged/pkg/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSecureIsMostSpecialized(t *testing.T) {
	assert.True(t, Secure.Specializes(Community))
	assert.False(t, Community.Specializes(Secure))
	assert.Equal(t, "secure", bootstrap.LoadMostSpecialized(Community).Name)
}

func TestRegistered(t *testing.T) {
	var names []string
	for _, v := range bootstrap.Discover() {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"community", "secure"}, names)
}

func TestCommunityWarnsAboutSecureSettings(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	env := bootstrap.Env{
		Config:  &config.Config{EnableAuth: true, APIKey: "k"},
		Logging: logger.NewLoggingFrom(zap.New(core), nil),
	}

	srv, err := Community.NewServer(env)
	require.NoError(t, err)
	assert.IsType(t, &server.HTTPServer{}, srv)
	assert.Equal(t, 1, logs.Len())
}

func TestSecureServerRuns(t *testing.T) {
	cfg := &config.Config{
		Port:            "0",
		Host:            "127.0.0.1",
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		RequestTimeout:  time.Second,
		ShutdownTimeout: time.Second,
		DataDir:         t.TempDir(),
		EnableAuth:      true,
		APIKey:          "secret",
	}
	srv, err := Secure.NewServer(bootstrap.Env{
		Config:  cfg,
		Logging: logger.NewLoggingFrom(nil, nil),
	})
	require.NoError(t, err)

	require.NoError(t, srv.Start())
	assert.NoError(t, srv.Stop())
}
