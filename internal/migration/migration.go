package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	ledgerdomain "github.com/smallbiznis/vindesk/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/vindesk/internal/payment/domain"
	ticketdomain "github.com/smallbiznis/vindesk/internal/ticket/domain"
	"github.com/smallbiznis/vindesk/pkg/db"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models lists every table the desk owns, for dialects migrated by gorm.
func Models() []any {
	return []any{
		&ticketdomain.Ticket{},
		&ticketdomain.Event{},
		&ledgerdomain.Balance{},
		&ledgerdomain.Entry{},
		&paymentdomain.Payment{},
	}
}

// Run brings the schema up to date. Postgres uses the versioned SQL files;
// sqlite and mysql are migrated from the gorm models.
func Run(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() == db.TypePostgres {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := ensureOpenTicketIndex(conn); err != nil {
		return fmt.Errorf("open ticket index: %w", err)
	}
	return nil
}

const openTicketIndex = "uq_tickets_open"

// ensureOpenTicketIndex allows at most one NEW or TAKEN ticket per identifier
// and requester. gorm tags cannot express a partial index, and mysql has no
// partial indexes at all, so it indexes a generated column that is NULL once
// the ticket is DONE.
func ensureOpenTicketIndex(conn *gorm.DB) error {
	m := conn.Migrator()
	if m.HasIndex(&ticketdomain.Ticket{}, openTicketIndex) {
		return nil
	}
	if conn.Dialector.Name() == db.TypeMySQL {
		if !m.HasColumn(&ticketdomain.Ticket{}, "open_key") {
			err := conn.Exec("ALTER TABLE tickets ADD COLUMN open_key VARCHAR(64) " +
				"AS (IF(status <> 'DONE', CONCAT(identifier, ':', requester_id), NULL)) VIRTUAL").Error
			if err != nil {
				return err
			}
		}
		return conn.Exec("CREATE UNIQUE INDEX " + openTicketIndex + " ON tickets (open_key)").Error
	}
	return conn.Exec("CREATE UNIQUE INDEX IF NOT EXISTS " + openTicketIndex +
		" ON tickets (identifier, requester_id) WHERE status IN ('NEW', 'TAKEN')").Error
}

func RunMigrations(sqlDB *sql.DB) error {
	if sqlDB == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB.
	return nil
}
