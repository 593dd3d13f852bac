package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/webhook-relay/internal/repository"
	"gorm.io/gorm"
)

func createWebhookDeliveriesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_webhook_deliveries",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DeliveryModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_deliveries_subject_created ON webhook_deliveries (subject_id, created_at DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_deliveries_retry_due ON webhook_deliveries (next_retry_at) WHERE status = 'RETRYING'`,
				`CREATE INDEX IF NOT EXISTS idx_deliveries_pending_created ON webhook_deliveries (created_at) WHERE status = 'PENDING'`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DeliveryModel{})
		},
	}
}
