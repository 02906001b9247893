package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"go-directchat/internal/infrastructure/logger"
	"go-directchat/internal/pkg/chat/client/adapter"
)

// cliEnv supplies flag defaults from the environment.
type cliEnv struct {
	Server   string        `env:"CHAT_SERVER" envDefault:"http://localhost:8080"`
	User     string        `env:"CHAT_USER"`
	Token    string        `env:"CHAT_TOKEN"`
	Timeout  time.Duration `env:"CHAT_TIMEOUT" envDefault:"10s"`
	LogLevel string        `env:"CHAT_LOG_LEVEL" envDefault:"warn"`
}

var (
	defaults cliEnv

	serverURL string
	userID    string
	token     string
	timeout   time.Duration
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:           "chat-cli",
	Short:         "Terminal client for go-directchat",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	if err := env.Parse(&defaults); err != nil {
		fmt.Fprintf(os.Stderr, "chat-cli: %v\n", err)
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&serverURL, "server", defaults.Server, "chat server base URL")
	pf.StringVarP(&userID, "user", "u", defaults.User, "local user id")
	pf.StringVar(&token, "token", defaults.Token, "identity token (defaults to the user id for servers without auth)")
	pf.DurationVar(&timeout, "timeout", defaults.Timeout, "HTTP request timeout")
	pf.StringVar(&logLevel, "log-level", defaults.LogLevel, "log level")
}

// session holds what every networked command needs.
type session struct {
	user string
	tok  string
	http *adapter.HTTPClient
	log  zerolog.Logger
}

func newSession() (*session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("--user (or CHAT_USER) is required")
	}
	log, err := logger.NewWithWriter(os.Stderr, logLevel, "console")
	if err != nil {
		return nil, err
	}
	tok := token
	if tok == "" {
		tok = userID
	}
	return &session{
		user: userID,
		tok:  tok,
		http: adapter.NewHTTPClient(strings.TrimRight(serverURL, "/"), tok, timeout),
		log:  log,
	}, nil
}

// wsURL maps the HTTP base URL to the websocket endpoint.
func wsURL(base string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/api/v1/ws"
}
