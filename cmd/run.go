package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/slotchaser/internal/ack"
	"github.com/example/slotchaser/internal/auth"
	"github.com/example/slotchaser/internal/bot"
	"github.com/example/slotchaser/internal/config"
	"github.com/example/slotchaser/internal/crypto"
	"github.com/example/slotchaser/internal/db"
	"github.com/example/slotchaser/internal/domain/reservation"
	"github.com/example/slotchaser/internal/driver"
	"github.com/example/slotchaser/internal/driver/chromium"
	"github.com/example/slotchaser/internal/fleet"
	"github.com/example/slotchaser/internal/journal"
	"github.com/example/slotchaser/internal/migrate"
	"github.com/example/slotchaser/internal/requests"
	"github.com/example/slotchaser/internal/runner"
	"github.com/example/slotchaser/internal/wait"
	"github.com/example/slotchaser/internal/web"
	"github.com/spf13/cobra"
)

var errBrowserStart = errors.New("start browser")

type browserLauncher interface {
	driver.Launcher
	Stop() error
}

// startBrowser is replaced in tests.
var startBrowser = func(opts chromium.Options) (browserLauncher, error) {
	l, err := chromium.Start(opts)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func newRunCmd() *cobra.Command {
	v := config.NewViper()
	var instances int

	cmd := &cobra.Command{
		Use:   "run <requests-file>",
		Short: "Start one browser per request copy and race for the target date",
		Long: "Start one browser per request copy and race for the target date.\n\n" +
			"Every setting below can also be given as SLOTCHASER_<FLAG> with dashes as underscores.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if instances < 1 {
				return fmt.Errorf("--instances must be at least 1, got %d", instances)
			}
			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}
			overflow, err := fleet.ParseOverflow(cfg.Overflow)
			if err != nil {
				return err
			}

			log := newLogger(cmd.ErrOrStderr(), cfg)
			slog.SetDefault(log)

			reqs, err := loadRequests(args[0], cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			jr, closeJournal, err := openJournal(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer closeJournal()

			hub := ack.NewHub()
			if cfg.ConsoleAck {
				c := &ack.Console{Hub: hub, In: cmd.InOrStdin(), Out: cmd.OutOrStdout(), Log: log}
				go func() {
					if err := c.Run(ctx); err != nil {
						log.Error("console acknowledgments stopped", "err", err)
					}
				}()
			}
			if cfg.ListenAddr != "" {
				ws := &web.Server{
					Auth: auth.NewStore(cfg.CookieHashKey, cfg.CookieBlockKey, cfg.OperatorHash),
					Hub:  hub,
					Log:  log,
				}
				go func() {
					if err := web.Start(ctx, cfg.ListenAddr, ws.Routes(), log); err != nil {
						log.Error("operator console stopped", "err", err)
					}
				}()
			}

			launcher, err := startBrowser(chromium.Options{
				Headless:       cfg.Headless,
				ExecutablePath: cfg.BrowserPath,
				ActionTimeout:  cfg.ElementTimeout,
			})
			if err != nil {
				return fmt.Errorf("%w (check --%s or run `playwright install chromium`): %w",
					errBrowserStart, config.KeyBrowserPath, err)
			}
			defer func() {
				if err := launcher.Stop(); err != nil {
					log.Warn("stop browser driver", "err", err)
				}
			}()

			sup := &fleet.Supervisor{
				Launcher: launcher,
				Runner: runner.Config{
					Profile: bot.RecreationGov(),
					Waiter:  wait.Waiter{Interval: cfg.PollInterval},
					Timing: bot.Timing{
						Element:   cfg.ElementTimeout,
						PostLogin: cfg.PostLogin,
						Settle:    cfg.Settle,
						Race:      cfg.RaceTimeout,
					},
					Cooldowns: runner.Cooldowns{
						Login:   cfg.LoginCooldown,
						Reserve: cfg.ReserveCooldown,
						Error:   cfg.ErrorCooldown,
					},
					Ack:          hub,
					Journal:      jr,
					StopAfterAck: cfg.StopAfterAck,
				},
				MaxSessions: cfg.MaxSessions,
				Overflow:    overflow,
				LaunchRate:  cfg.LaunchRate,
				Log:         log,
			}
			return sup.Launch(ctx, reqs, instances)
		},
	}

	cmd.Flags().IntVarP(&instances, "instances", "n", 1, "concurrent attempts per request")
	addConfigFlags(cmd)
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		panic(err)
	}
	return cmd
}

func addConfigFlags(cmd *cobra.Command) {
	d := config.Defaults
	f := cmd.Flags()
	f.Bool(config.KeyHeadless, d[config.KeyHeadless].(bool), "run Chromium without a window")
	f.String(config.KeyBrowserPath, "", "Chromium executable (also DRIVER_PATH)")
	f.Duration(config.KeyPollInterval, d[config.KeyPollInterval].(time.Duration), "how often waits re-check the page")
	f.Duration(config.KeyElementTimeout, d[config.KeyElementTimeout].(time.Duration), "wait for each form element")
	f.Duration(config.KeyPostLogin, d[config.KeyPostLogin].(time.Duration), "wait for the signed-in marker")
	f.Duration(config.KeySettle, d[config.KeySettle].(time.Duration), "pause after submitting credentials")
	f.Duration(config.KeyRaceTimeout, d[config.KeyRaceTimeout].(time.Duration), "wait for confirm or no-times after entering the date")
	f.Duration(config.KeyLoginCooldown, d[config.KeyLoginCooldown].(time.Duration), "pause after a failed login")
	f.Duration(config.KeyReserveCooldown, d[config.KeyReserveCooldown].(time.Duration), "pause after an unavailable slot")
	f.Duration(config.KeyErrorCooldown, d[config.KeyErrorCooldown].(time.Duration), "pause after any other failure")
	f.Int(config.KeyMaxSessions, d[config.KeyMaxSessions].(int), "cap on live browser sessions (0 = none)")
	f.String(config.KeyOverflow, d[config.KeyOverflow].(string), "queue or fail when max-sessions is reached")
	f.Float64(config.KeyLaunchRate, d[config.KeyLaunchRate].(float64), "session starts per second (0 = unpaced)")
	f.Bool(config.KeyStopAfterAck, d[config.KeyStopAfterAck].(bool), "end an instance once its purchase is acknowledged")
	f.Bool(config.KeyConsoleAck, d[config.KeyConsoleAck].(bool), "acknowledge purchases from stdin")
	f.String(config.KeyListenAddr, "", "operator console address, e.g. :8080 (empty = off)")
	f.String(config.KeyDatabaseURL, "", "postgres URL for the step journal (empty = off)")
	f.String(config.KeyLogLevel, d[config.KeyLogLevel].(string), "debug, info, warn or error")
	f.String(config.KeyLogFormat, d[config.KeyLogFormat].(string), "text or json")
}

func loadRequests(path string, cfg config.Config) ([]reservation.Request, error) {
	var u requests.Unsealer
	if cfg.SecretKey != nil {
		a, err := crypto.New(cfg.SecretKey)
		if err != nil {
			return nil, err
		}
		u = a
	}
	return requests.Load(path, u)
}

// openJournal returns a database-backed journal when a URL is configured and
// a no-op one otherwise. The close func is always safe to call.
func openJournal(ctx context.Context, cfg config.Config, log *slog.Logger) (runner.Journal, func(), error) {
	if cfg.DatabaseURL == "" {
		return journal.Discard{}, func() {}, nil
	}

	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := d.Ping(pingCtx); err != nil {
		d.Close()
		return nil, nil, fmt.Errorf("db ping: %w", err)
	}
	if err := migrate.Up(ctx, d); err != nil {
		d.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("journal enabled")
	return journal.NewRepo(d), d.Close, nil
}
