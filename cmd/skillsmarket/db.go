package main

import (
	"fmt"
	"os"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/emergent/skillsmarket/pkg/config"
	"github.com/emergent/skillsmarket/pkg/db"
	"github.com/emergent/skillsmarket/pkg/db/migrations"
	"github.com/emergent/skillsmarket/pkg/presenter"
	"github.com/emergent/skillsmarket/pkg/store"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management commands",
	Long:  `Commands for managing the marketplace index database (migrations, seed data).`,
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database migration status",
	Long:  `Shows the current database migration status, including applied and pending migrations.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}

		conn, err := db.Open(ctx, cfg.DB)
		if err != nil {
			return err
		}
		defer conn.Close()

		statuses, err := db.NewMigrationRunner(conn).Status(ctx, migrations.All())
		if err != nil {
			return errors.Wrap(err, "failed to get migration status")
		}

		presenter.Section("Database Migration Status")
		presenter.Info(fmt.Sprintf("Database: %s (%s)\n", databaseLocation(cfg.DB), driverName(cfg.DB)))

		applied := 0
		rows := make([][]string, 0, len(statuses))
		for _, s := range statuses {
			mark, when := "[ ]", ""
			if s.Applied() {
				mark, when = "[✓]", s.AppliedAt.Format("2006-01-02 15:04:05")
				applied++
			}
			rows = append(rows, []string{mark, fmt.Sprint(s.Version), s.Description, when})
		}
		presenter.Table([]string{"", "VERSION", "DESCRIPTION", "APPLIED AT"}, rows)
		presenter.Info(fmt.Sprintf("\nApplied: %d/%d migrations", applied, len(statuses)))
		return nil
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		if err := db.RunMigrations(cmd.Context(), cfg.DB, migrations.All()); err != nil {
			return err
		}
		presenter.Success("Database is up to date")
		return nil
	},
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Rollback the last database migration",
	Long:  `Rolls back the most recently applied database migration.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}

		conn, err := db.Open(ctx, cfg.DB)
		if err != nil {
			return err
		}
		defer conn.Close()

		version, err := db.NewMigrationRunner(conn).Rollback(ctx, migrations.All())
		if err != nil {
			return errors.Wrap(err, "failed to rollback migration")
		}
		if version == 0 {
			presenter.Warning("No migrations to rollback")
			return nil
		}

		presenter.Success(fmt.Sprintf("Successfully rolled back migration %d", version))
		return nil
	},
}

var dbSeedCmd = &cobra.Command{
	Use:   "seed [file.yaml]",
	Short: "Replace clients, projects and skills with seed data",
	Long: `Loads clients, projects and skills from a YAML file into the index database,
replacing the existing ones. The built-in demo catalog is used when no file
is given. Only index rows are written; no files are committed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}

		var content []byte
		if len(args) == 1 {
			if content, err = os.ReadFile(args[0]); err != nil {
				return errors.Wrapf(err, "failed to read %s", args[0])
			}
		}
		data, err := store.ParseSeed(content)
		if err != nil {
			return err
		}

		conn, err := openDatabase(ctx, cfg.DB)
		if err != nil {
			return err
		}
		defer conn.Close()

		result, err := store.New(conn).Seed(ctx, data)
		if err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("Seeded %d clients, %d projects, %d skills and %d project skills",
			result.Clients, result.Projects, result.Skills, result.ProjectSkills))
		return nil
	},
}

func databaseLocation(cfg db.Config) string {
	if cfg.Driver == db.DriverMySQL {
		parsed, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return "invalid dsn"
		}
		if parsed.Passwd != "" {
			parsed.Passwd = "****"
		}
		return parsed.FormatDSN()
	}
	if cfg.DSN != "" {
		return cfg.DSN
	}
	path, err := db.DefaultDBPath()
	if err != nil {
		return "unknown"
	}
	return path
}

func driverName(cfg db.Config) string {
	if cfg.Driver == "" {
		return db.DriverSQLite
	}
	return cfg.Driver
}

func init() {
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbRollbackCmd)
	dbCmd.AddCommand(dbSeedCmd)
}
