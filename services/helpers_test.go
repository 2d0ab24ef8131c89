package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeremiapane/agrimarket/database"
	"github.com/yeremiapane/agrimarket/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

var userSeq int

func createUser(t *testing.T, db *gorm.DB, name, role string) models.User {
	t.Helper()
	userSeq++
	u := models.User{
		Name:     name,
		Email:    fmt.Sprintf("%s-%d@example.com", role, userSeq),
		Phone:    "+91-98450-00000",
		Password: "hashed",
		Role:     role,
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func createProduct(t *testing.T, db *gorm.DB, farmerID uint, name string, price, qty float64) models.Product {
	t.Helper()
	p := models.Product{FarmerID: farmerID, Name: name, Unit: "kg", Price: price, Quantity: qty}
	require.NoError(t, db.Create(&p).Error)
	return p
}

type dispatched struct {
	UserID uint
	Event  string
	Data   interface{}
}

// recordingDispatcher keeps every dispatched event in order.
type recordingDispatcher struct {
	mu         sync.Mutex
	events     []dispatched
	broadcasts []broadcast
	online     map[uint]bool
}

type broadcast struct {
	Role  string
	Event string
	Data  interface{}
}

func (r *recordingDispatcher) Dispatch(userID uint, event string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, dispatched{UserID: userID, Event: event, Data: data})
}

// Broadcast is kept apart from per-user events.
func (r *recordingDispatcher) Broadcast(role, event string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, broadcast{Role: role, Event: event, Data: data})
}

func (r *recordingDispatcher) Online(ids []uint) map[uint]bool {
	out := make(map[uint]bool, len(ids))
	for _, id := range ids {
		out[id] = r.online[id]
	}
	return out
}

// notifications returns the notifications pushed to userID, in order.
func (r *recordingDispatcher) notifications(userID uint) []NotificationView {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []NotificationView
	for _, e := range r.events {
		if e.UserID == userID && e.Event == EventNotification {
			out = append(out, e.Data.(NotificationView))
		}
	}
	return out
}

func storedNotifications(t *testing.T, db *gorm.DB, userID uint) []models.Notification {
	t.Helper()
	var notes []models.Notification
	require.NoError(t, db.Where("user_id = ?", userID).Order("id ASC").Find(&notes).Error)
	return notes
}
