package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/walkweek/walkweek/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_users",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.UserModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_phone_e164 ON users (phone_e164) WHERE phone_e164 IS NOT NULL`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.UserModel{})
			},
		},
		{
			ID: "000002_create_sms_outbound_audit",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.OutboundAuditModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_sms_outbound_audit_to_number ON sms_outbound_audit (to_number)`,
					`CREATE INDEX IF NOT EXISTS idx_sms_outbound_audit_sid ON sms_outbound_audit (sid)`,
					`CREATE INDEX IF NOT EXISTS idx_sms_outbound_audit_created_at ON sms_outbound_audit (created_at)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.OutboundAuditModel{})
			},
		},
		{
			ID: "000003_create_reminders_log",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.ReminderLogModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_reminders_log_user_id ON reminders_log (user_id)`,
					`CREATE INDEX IF NOT EXISTS idx_reminders_log_sent_on_date ON reminders_log (sent_on_date)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.ReminderLogModel{})
			},
		},
		{
			ID: "000004_create_sms_consent_log",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.ConsentLogModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_sms_consent_log_user_id ON sms_consent_log (user_id)`,
					`CREATE INDEX IF NOT EXISTS idx_sms_consent_log_action ON sms_consent_log (action)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.ConsentLogModel{})
			},
		},
		{
			ID: "000005_create_message_status",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.MessageStatusModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_message_status_message_sid ON message_status (message_sid)`,
					`CREATE INDEX IF NOT EXISTS idx_message_status_message_status ON message_status (message_status)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.MessageStatusModel{})
			},
		},
		{
			ID: "000006_create_settings",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.SettingModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.SettingModel{})
			},
		},
	})

	return m.Migrate()
}
