package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/aria-labs/ariactl/internal/auth"
	"github.com/aria-labs/ariactl/internal/backend"
	"github.com/aria-labs/ariactl/internal/client"
	"github.com/aria-labs/ariactl/internal/logging"
	"github.com/aria-labs/ariactl/internal/observability"
	"github.com/aria-labs/ariactl/internal/state"
)

func main() {
	var (
		configPath string
		sessionID  string
		kindRaw    string
		token      string
		uploadPath string
		query      string
	)
	flag.StringVar(&configPath, "config", "", "path to ariactl config file (toml)")
	flag.StringVar(&sessionID, "session", "", "conversation or job identifier to attach")
	flag.StringVar(&kindRaw, "kind", "stream", "session kind: stream or job")
	flag.StringVar(&token, "token", "", "bearer credential (overrides client_credentials config)")
	flag.StringVar(&uploadPath, "upload", "", "file to submit for analysis; implies -kind job")
	flag.StringVar(&query, "query", "", "analysis question attached to -upload")
	flag.Parse()

	logging.ConfigureRuntime()
	observability.InitLogger("ariactl")

	if err := run(configPath, sessionID, kindRaw, token, uploadPath, query); err != nil {
		fmt.Fprintf(os.Stderr, "ariactl: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, sessionID, kindRaw, token, uploadPath, query string) error {
	cfg := defaultAppConfig()
	if strings.TrimSpace(configPath) != "" {
		loaded, err := loadAppConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	uploadPath = strings.TrimSpace(uploadPath)
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" && uploadPath == "" {
		return fmt.Errorf("-session or -upload is required")
	}
	kind, err := parseKind(kindRaw)
	if err != nil {
		return err
	}
	if uploadPath != "" {
		kind = client.KindJob
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens := tokenSource(cfg, token)
	credential := ""
	if kind == client.KindStream {
		credential, err = tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("acquire credential: %w", err)
		}
	}

	opts := client.Options{
		Channel:      cfg.Channel,
		PollInterval: cfg.PollInterval,
		Logger:       log.Logger,
	}
	var api *backend.Client
	if strings.TrimSpace(cfg.Backend.BaseURL) != "" {
		api, err = backend.NewClient(cfg.Backend, tokens, log.Logger)
		if err != nil {
			return err
		}
		opts.Fetcher = api
	}

	if uploadPath != "" {
		if api == nil {
			return fmt.Errorf("-upload requires backend_url in config")
		}
		handle, err := submitUpload(ctx, api, uploadPath, query)
		if err != nil {
			return err
		}
		fmt.Printf("-- job %s submitted\n", handle.JobID)
		sessionID = handle.JobID
	}

	c, err := client.New(opts)
	if err != nil {
		return err
	}
	defer c.Close()

	updates, cancel := c.Subscribe()
	defer cancel()

	if err := c.Activate(client.Session{ID: sessionID, Kind: kind, Credential: credential}); err != nil {
		return err
	}

	input := make(chan string)
	if kind == client.KindStream {
		go readInput(ctx, input)
	}

	printed := 0
	lastConn := state.ConnectionStatus("")
	for {
		select {
		case <-ctx.Done():
			c.Deactivate()
			return nil
		case line, ok := <-input:
			if !ok {
				c.Deactivate()
				return nil
			}
			if err := c.Send(line); err != nil {
				log.Warn().Err(err).Msg("send rejected")
			}
		case snap := <-updates:
			if snap.Connection != lastConn {
				lastConn = snap.Connection
				fmt.Printf("-- %s\n", snap.Connection)
			}
			if len(snap.Transcript) < printed {
				printed = 0
			}
			for ; printed < len(snap.Transcript); printed++ {
				msg := snap.Transcript[printed]
				label := string(msg.Role)
				if msg.Agent != "" {
					label = fmt.Sprintf("%s/%s", msg.Role, msg.Agent)
				}
				fmt.Printf("[%s] %s\n", label, msg.Content)
			}
			if kind == client.KindJob && snap.Job == nil && len(snap.Transcript) > 0 {
				return nil
			}
		}
	}
}

func submitUpload(ctx context.Context, api *backend.Client, path, query string) (backend.JobHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return backend.JobHandle{}, err
	}
	defer f.Close()
	return api.UploadAnalysis(ctx, filepath.Base(path), f, query)
}

func parseKind(raw string) (client.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "stream":
		return client.KindStream, nil
	case "job":
		return client.KindJob, nil
	default:
		return "", fmt.Errorf("invalid kind %q (expected stream or job)", raw)
	}
}

func tokenSource(cfg appConfig, override string) auth.TokenSource {
	if strings.TrimSpace(override) != "" {
		return auth.StaticToken{Value: strings.TrimSpace(override)}
	}
	return &auth.ClientCredentials{
		AuthURL:      cfg.Auth.AuthURL,
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
	}
}

func readInput(ctx context.Context, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case out <- line:
		case <-ctx.Done():
			return
		}
	}
}
