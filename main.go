package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/customeros/mailnotify/config"
	"github.com/customeros/mailnotify/internal/database"
	"github.com/customeros/mailnotify/internal/enum"
	mailnotify_errors "github.com/customeros/mailnotify/internal/errors"
	"github.com/customeros/mailnotify/internal/repository"
	"github.com/customeros/mailnotify/server"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	app := &cli.App{
		Name:  "mailnotify",
		Usage: "send a Discord direct message for every new mail in a Gmail inbox",
		Action: func(c *cli.Context) error {
			return runServer()
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Start polling the mailbox",
				Action: func(c *cli.Context) error {
					return runServer()
				},
			},
			{
				Name:  "migrate",
				Usage: "Create the mailbox cursor table in postgres",
				Action: func(c *cli.Context) error {
					return migrate()
				},
			},
			{
				Name:  "check-config",
				Usage: "Validate the environment and exit",
				Action: func(c *cli.Context) error {
					if _, err := loadConfig(); err != nil {
						return err
					}
					fmt.Println("Configuration is valid")
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		if mailnotify_errors.IsConfigurationError(err) {
			printConfigHelp(err)
		} else {
			log.Printf("mailnotify failed: %v", err)
		}
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, mailnotify_errors.NewConfigurationError("", mailnotify_errors.ErrMissingValue)
	}
	return cfg, nil
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var cursorDB *gorm.DB
	if enum.GetCursorStore(cfg.Notifier.CursorStore) == enum.CursorStorePostgres {
		cursorDB, err = database.InitCursorDatabase(cfg.CursorDatabaseConfig)
		if err != nil {
			return fmt.Errorf("cursor database initialization failed: %w", err)
		}
		if err := repository.MigrateCursorDB(cursorDB); err != nil {
			return fmt.Errorf("cursor database migration failed: %w", err)
		}
	}

	srv, err := server.NewServer(cfg, cursorDB)
	if err != nil {
		return fmt.Errorf("server setup failed: %w", err)
	}

	if err := srv.Run(); err != nil {
		return err
	}

	log.Println("Shutdown complete")
	return nil
}

func migrate() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cursorDB, err := database.InitCursorDatabase(cfg.CursorDatabaseConfig)
	if err != nil {
		return fmt.Errorf("cursor database initialization failed: %w", err)
	}
	if err := repository.MigrateCursorDB(cursorDB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}

	log.Println("Database migration completed successfully")
	return nil
}

func printConfigHelp(err error) {
	fmt.Fprintf(os.Stderr, "%v\n\n", err)
	fmt.Fprintln(os.Stderr, "mailnotify needs these environment variables (a .env file is also read):")
	fmt.Fprintf(os.Stderr, "  %s\n\n", strings.Join(config.RequiredVariables, "\n  "))
	fmt.Fprintln(os.Stderr, "DISCORD_USER_ID is the numeric id of the user to message.")
	fmt.Fprintln(os.Stderr, "GMAIL_APP_PASSWORD must be a Google app password, not the regular account password.")
}
