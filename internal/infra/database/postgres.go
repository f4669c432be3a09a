package database

import (
	"log"
	"os"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cityflow/cityflow/internal/infra/database/models"
)

func NewPostgres(dsn string) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             300 * time.Millisecond, // Slow SQL threshold
			LogLevel:                  logger.Warn,            // Log level
			IgnoreRecordNotFoundError: true,                   // Ignore ErrRecordNotFound error for logger
			Colorful:                  true,                   // Enable color
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger,
	})
	return db, err
}

// ActiveAssignmentIndex enforces at most one active assignment per complaint.
const ActiveAssignmentIndex = "uniq_active_assignment"

func MigratePostgres(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Complaint{},
		&models.ComplaintPhoto{},
		&models.Assignment{},
		&models.ComplaintSupport{},
		&models.ComplaintRating{},
		&models.AuditLog{},
	)
	if err != nil {
		return errors.Wrap(err, "automigrate")
	}

	err = db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS " + ActiveAssignmentIndex +
			" ON assignments (complaint_id) WHERE status IN ('assigned', 'in_progress')",
	).Error
	if err != nil {
		return errors.Wrap(err, "create active assignment index")
	}

	return nil
}
