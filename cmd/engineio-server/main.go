// Command engineio-server runs a standalone Engine.IO v3 long-polling
// server, wiring the config, dispatcher, and heartbeat packages behind
// net/http.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/xdg"

	"engineio/config"
	"engineio/dispatcher"
	"engineio/middleware"
)

const (
	configDirName  = "engineio"
	configFileName = "config.toml"
)

func main() {
	cmd := &cli.Command{
		Name:  "engineio-server",
		Usage: "Engine.IO v3 long-polling session and transport server",
		Flags: flags(),
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func flags() []cli.Flag {
	path := configFile()

	return []cli.Flag{
		&cli.StringFlag{
			Name:  "listen-addr",
			Usage: "TCP address to listen on",
			Value: ":3000",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("ENGINEIO_LISTEN_ADDR"),
				toml.TOML("server.listen_addr", path),
			),
		},
		&cli.StringFlag{
			Name:  "base-path",
			Usage: "HTTP path the server is mounted on",
			Value: "/engine.io/",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("ENGINEIO_BASE_PATH"),
				toml.TOML("server.base_path", path),
			),
		},
		&cli.DurationFlag{
			Name:  "ping-interval",
			Usage: "how often the server pings an idle session",
			Value: 25 * time.Second,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("ENGINEIO_PING_INTERVAL"),
				toml.TOML("heartbeat.ping_interval", path),
			),
		},
		&cli.DurationFlag{
			Name:  "ping-timeout",
			Usage: "how long a session may go without a pong before eviction",
			Value: 60 * time.Second,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("ENGINEIO_PING_TIMEOUT"),
				toml.TOML("heartbeat.ping_timeout", path),
			),
		},
		&cli.StringFlag{
			Name:  "cookie-name",
			Usage: "name of the session cookie, empty to disable it",
			Value: "io",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("ENGINEIO_COOKIE_NAME"),
				toml.TOML("server.cookie_name", path),
			),
		},
		&cli.StringFlag{
			Name:  "cookie-path",
			Usage: "Path attribute of the session cookie, empty to omit it",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("ENGINEIO_COOKIE_PATH"),
				toml.TOML("server.cookie_path", path),
			),
		},
		&cli.StringFlag{
			Name:  "id-generator",
			Usage: "session id generator: sha256 or shortuuid",
			Value: "sha256",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("ENGINEIO_ID_GENERATOR"),
				toml.TOML("server.id_generator", path),
			),
		},
		&cli.BoolFlag{
			Name:  "pretty-log",
			Usage: "human-readable console logging, instead of JSON",
		},
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	log := newLogger(cmd.Bool("pretty-log"))

	cfg := config.Default()
	cfg.PingInterval = cmd.Duration("ping-interval")
	cfg.PingTimeout = cmd.Duration("ping-timeout")
	cfg.PollTimeout = cfg.PingInterval + cfg.PingTimeout
	cfg.Cookie = cmd.String("cookie-name")
	cfg.CookiePath = cmd.String("cookie-path")
	cfg.BasePath = cmd.String("base-path")

	switch cmd.String("id-generator") {
	case "shortuuid":
		cfg.IDGenerator = config.ShortUUIDGenerator
	case "sha256", "":
		cfg.IDGenerator = config.SHA256Generator
	default:
		return fmt.Errorf("unknown id-generator %q: want sha256 or shortuuid", cmd.String("id-generator"))
	}

	srv := dispatcher.NewServer(cfg, log)
	srv.Use(middleware.Recover(log))
	srv.Use(middleware.Logging(log))
	srv.Use(middleware.Timeout(cfg.PollTimeout + 30*time.Second))

	mux := http.NewServeMux()
	mux.Handle(cfg.BasePath, srv)

	addr := cmd.String("listen-addr")
	log.Info().Str("addr", addr).Str("base_path", cfg.BasePath).Msg("starting engineio-server")
	return http.ListenAndServe(addr, mux)
}

// configFile returns the path to the app's configuration file,
// creating an empty one if it doesn't already exist.
func configFile() altsrc.StringSourcer {
	path, err := xdg.CreateFile(xdg.ConfigHome, configDirName, configFileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create config file: %v\n", err)
		os.Exit(1)
	}
	return altsrc.StringSourcer(path)
}

func newLogger(pretty bool) zerolog.Logger {
	if pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
