package database

import (
	"github.com/yeremiapane/agrimarket/models"
	"github.com/yeremiapane/agrimarket/utils"
	"gorm.io/gorm"
)

// Models lists every table the service owns, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Product{},
		&models.Bid{},
		&models.Payment{},
		&models.Notification{},
		&models.ChatMessage{},
		&models.Vehicle{},
		&models.VehicleBooking{},
	}
}

// Migrate creates or updates the schema and the constraints gorm tags cannot
// express.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}

	// Composite lookup used by the per-merchant and per-product bid lists.
	if !db.Migrator().HasIndex(&models.Bid{}, "idx_bids_product_status") {
		if err := db.Exec("CREATE INDEX idx_bids_product_status ON bids (product_id, status)").Error; err != nil {
			utils.ErrorLogger.Printf("Error creating index idx_bids_product_status: %v", err)
		}
	}
	if !db.Migrator().HasIndex(&models.ChatMessage{}, "idx_chat_pair") {
		if err := db.Exec("CREATE INDEX idx_chat_pair ON chat_messages (sender_id, recipient_id, created_at)").Error; err != nil {
			utils.ErrorLogger.Printf("Error creating index idx_chat_pair: %v", err)
		}
	}

	utils.InfoLogger.Println("AutoMigrate completed.")
	return nil
}
