package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/webhook-relay/internal/repository"
	"gorm.io/gorm"
)

func createWebhookDestinationsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_webhook_destinations",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DestinationModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_destinations_subject_active ON webhook_destinations (subject_id, created_at DESC) WHERE active = TRUE`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DestinationModel{})
		},
	}
}
