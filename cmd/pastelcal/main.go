package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"pastelcal/internal/auth"
	"pastelcal/internal/calendar"
	"pastelcal/internal/dateutil"
	"pastelcal/internal/events"
	"pastelcal/internal/holiday"
	"pastelcal/internal/icsexport"
	appLog "pastelcal/internal/log"
	"pastelcal/internal/modal"
	"pastelcal/internal/model"
	"pastelcal/internal/web"
)

const version = "0.3.0"

func main() {
	// Load .env first; a missing file is fine.
	_ = godotenv.Load()

	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		appLog.Error("pastelcal failed", err)
		os.Exit(1)
	}
}

func newApp(w io.Writer) *cli.App {
	return &cli.App{
		Name:    "pastelcal",
		Usage:   "Personal pastel calendar with multi-day events and holidays.",
		Version: version,
		Writer:  w,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "./pastelcal.yaml",
				Usage:   "Path to the YAML config file (created with defaults when missing)",
				EnvVars: []string{"PASTELCAL_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			userCommand(),
			eventCommand(),
			exportCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and the holiday refresh schedule.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "HTTP listen address (overrides config if set)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if c.IsSet("listen") {
				cfg.Listen = c.String("listen")
			}

			appLog.Info("effective config",
				"listen", cfg.Listen,
				"timezone", cfg.Timezone,
				"week_start", cfg.WeekStart,
				"storage", cfg.Storage.Driver,
				"holiday_refresh", cfg.Holidays.Refresh,
				"ics_count", len(cfg.Holidays.ICS),
				"config_users", len(cfg.Auth.Users),
			)

			b, err := openBackend(cfg)
			if err != nil {
				return err
			}
			defer b.close()

			issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.TokenTTL())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			provider := newHolidayProvider(cfg)
			sched, err := holiday.StartScheduler(ctx, provider, cfg.Holidays.Refresh, cfg.Location())
			if err != nil {
				return err
			}
			defer sched.Stop()

			// Warm this year's holidays so the first page view does not wait.
			go func() {
				year := time.Now().In(cfg.Location()).Year()
				if _, err := provider.Refresh(ctx, year); err != nil {
					appLog.Error("initial holiday refresh failed", err, "year", year)
				}
			}()

			srv := web.NewServer(cfg, web.Deps{
				Store:     b.store,
				Issuer:    issuer,
				Directory: b.directory(cfg),
				Holidays:  provider,
				Builder:   newBuilder(cfg),
			})
			if err := srv.Run(ctx); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			appLog.Info("pastelcal exiting")
			return nil
		},
	}
}

func userCommand() *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage accounts.",
		Subcommands: []*cli.Command{
			{
				Name:  "hash",
				Usage: "Print a bcrypt hash for a config file password_hash entry.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"PASTELCAL_PASSWORD"}},
				},
				Action: func(c *cli.Context) error {
					hash, err := auth.HashPassword(c.String("password"))
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, hash)
					return nil
				},
			},
			{
				Name:  "add",
				Usage: "Create or reset an account in the postgres user table.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"PASTELCAL_PASSWORD"}},
					&cli.StringFlag{Name: "name"},
				},
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					b, err := openBackend(cfg)
					if err != nil {
						return err
					}
					defer b.close()
					if b.users == nil {
						return errors.New("user add needs the postgres storage driver; use `user hash` for config users")
					}

					hash, err := auth.HashPassword(c.String("password"))
					if err != nil {
						return err
					}
					u, err := b.users.Put(c.Context, model.User{
						Username:     c.String("username"),
						PasswordHash: hash,
						Name:         c.String("name"),
					})
					if err != nil {
						return fmt.Errorf("save user: %w", err)
					}
					appLog.Info("user saved", "username", u.Username, "id", u.ID)
					return nil
				},
			},
		},
	}
}

func eventCommand() *cli.Command {
	return &cli.Command{
		Name:  "event",
		Usage: "Create and list events without the web UI.",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Create a single-day or multi-day event.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Required: true},
					&cli.StringFlag{Name: "from", Required: true, Usage: "First day (YYYY-MM-DD)"},
					&cli.StringFlag{Name: "to", Usage: "Last day (YYYY-MM-DD); defaults to --from"},
					&cli.StringFlag{Name: "title"},
					&cli.StringFlag{Name: "notes"},
					&cli.StringFlag{Name: "color", Usage: "Palette key such as blue or rose"},
				},
				Action: runEventAdd,
			},
			{
				Name:  "list",
				Usage: "Print folded events, optionally for one month.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Required: true},
					&cli.StringFlag{Name: "month", Usage: "YYYY-MM"},
				},
				Action: runEventList,
			},
		},
	}
}

// runEventAdd drives the same gesture -> dialog -> session path as the
// month page: press on --from, drag to --to, release, save.
func runEventAdd(c *cli.Context) error {
	from, err := dateutil.FromDateKey(c.String("from"))
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	to := from
	if c.IsSet("to") {
		if to, err = dateutil.FromDateKey(c.String("to")); err != nil {
			return fmt.Errorf("--to: %w", err)
		}
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	b, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer b.close()

	user := c.String("user")
	page := calendar.NewPage(auth.Identity{Username: user}, events.NewSession(user, b.store).WithDefaultTitle(cfg.DefaultTitle), newBuilder(cfg))
	if err := page.PointerDown(from); err != nil {
		return err
	}
	if !to.Equal(from) {
		page.PointerEnter(to)
	}
	if err := page.PointerUp(); err != nil {
		return err
	}
	created, err := page.Submit(c.Context, modal.Input{
		Title: c.String("title"),
		Notes: c.String("notes"),
		Color: c.String("color"),
	})
	if err != nil {
		return err
	}
	for _, it := range created {
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", it.ID, it.Date, it.Title)
	}
	return nil
}

func runEventList(c *cli.Context) error {
	month := c.String("month")
	if month != "" {
		if _, _, err := dateutil.MonthBounds(month); err != nil {
			return fmt.Errorf("--month: %w", err)
		}
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	b, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer b.close()

	sess := events.NewSession(c.String("user"), b.store).WithDefaultTitle(cfg.DefaultTitle)
	if err := sess.Load(c.Context, month); err != nil {
		return err
	}
	for _, ev := range sess.Folded() {
		span := ev.StartDate
		if ev.MultiDay() {
			span += ".." + ev.EndDate
		}
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\t%s\n", span, ev.Title, ev.Color, ev.ID)
	}
	return nil
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write a user's events as an iCalendar file.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Required: true},
			&cli.StringFlag{Name: "out", Required: true, Usage: "Output .ics path"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			b, err := openBackend(cfg)
			if err != nil {
				return err
			}
			defer b.close()

			user := c.String("user")
			sess := events.NewSession(user, b.store).WithDefaultTitle(cfg.DefaultTitle)
			if err := sess.Load(c.Context, ""); err != nil {
				return err
			}

			f, err := os.Create(c.String("out"))
			if err != nil {
				return err
			}
			if err := icsexport.Write(f, sess.Folded(), "pastelcal "+user, time.Now()); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			appLog.Info("calendar exported", "user", user, "events", len(sess.Folded()), "out", c.String("out"))
			return nil
		},
	}
}
