package cmd

import (
	"context"
	"net/http"
	"os"

	"scrdeskctl/internal/authstate"
	"scrdeskctl/internal/client"
	"scrdeskctl/internal/config"
	"scrdeskctl/internal/oauthflow"
	"scrdeskctl/internal/session"
	"scrdeskctl/pkg/logging"
)

// app bundles the wired auth subsystem for one command invocation.
type app struct {
	cfg         config.Config
	store       *session.FileStore
	api         *client.Client
	flow        *oauthflow.Controller
	broadcaster *authstate.Broadcaster
}

// buildApp loads configuration, initializes logging, and wires the session
// store, auth client, flow controller, and state broadcaster together.
func buildApp() (*app, error) {
	configPath := configPathFlag
	if configPath == "" {
		configPath = config.GetDefaultConfigPathOrPanic()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	levelStr := cfg.LogLevel
	if logLevelFlag != "" {
		levelStr = logLevelFlag
	}
	level, err := logging.ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}
	logging.Init(level, os.Stderr)

	stateDir := cfg.StateDir
	if stateDir == "" {
		stateDir = configPath
	}
	store, err := session.NewFileStore(stateDir)
	if err != nil {
		return nil, err
	}

	api, err := client.New(client.Config{
		BaseURL:    cfg.ServerURL,
		Store:      store,
		HTTPClient: &http.Client{Timeout: cfg.RequestTimeout.Std()},
	})
	if err != nil {
		return nil, err
	}

	flow := oauthflow.NewController(api, store)
	broadcaster := authstate.New(api, store, flow)

	return &app{
		cfg:         cfg,
		store:       store,
		api:         api,
		flow:        flow,
		broadcaster: broadcaster,
	}, nil
}

// initializedApp builds the app and runs the startup identity check.
func initializedApp(ctx context.Context) (*app, authstate.State, error) {
	a, err := buildApp()
	if err != nil {
		return nil, authstate.State{}, err
	}
	state := a.broadcaster.Initialize(ctx)
	return a, state, nil
}
