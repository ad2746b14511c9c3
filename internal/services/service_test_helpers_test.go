package services

import (
	"fmt"
	"testing"

	"talktime/internal/hub"
	"talktime/internal/models"
	"talktime/internal/repository"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a per-test in-memory database and migrates all
// models. The database name is derived from the test name so tests do
// not share state.
func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.Transaction{},
		&models.Call{},
		&models.PresenceStatus{},
		&models.Badge{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	events []hub.Event
}

func (p *recordingPublisher) Publish(event hub.Event) {
	p.events = append(p.events, event)
}

func (p *recordingPublisher) kinds() []hub.EventKind {
	kinds := make([]hub.EventKind, 0, len(p.events))
	for _, e := range p.events {
		kinds = append(kinds, e.Kind())
	}
	return kinds
}

// testStack wires the full service graph over one test database.
type testStack struct {
	db        *gorm.DB
	repo      *repository.Repository
	ledger    *LedgerService
	badges    *BadgeService
	presence  *PresenceService
	calls     *CallService
	publisher *recordingPublisher
}

func newTestStack(t *testing.T) *testStack {
	db := setupTestDB(t)
	repo := repository.NewRepository(db)
	ledger := NewLedgerService(repo)
	badges := NewBadgeService(repo)
	presence := NewPresenceService(repo)
	publisher := &recordingPublisher{}
	calls := NewCallService(repo, ledger, badges, presence, publisher)

	return &testStack{
		db:        db,
		repo:      repo,
		ledger:    ledger,
		badges:    badges,
		presence:  presence,
		calls:     calls,
		publisher: publisher,
	}
}

// fundWallet creates a wallet with the given balance.
func (ts *testStack) fundWallet(t *testing.T, userID uint, coins int64) {
	wallet := models.Wallet{UserID: userID, BalanceCoins: coins}
	if err := ts.db.Create(&wallet).Error; err != nil {
		t.Fatalf("failed to create wallet: %v", err)
	}
}

// walletOf reloads a user's wallet.
func (ts *testStack) walletOf(t *testing.T, userID uint) *models.Wallet {
	var wallet models.Wallet
	if err := ts.db.Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		t.Fatalf("failed to load wallet for user %d: %v", userID, err)
	}
	return &wallet
}

// transactionCount counts audit rows for a user.
func (ts *testStack) transactionCount(t *testing.T, userID uint) int64 {
	var count int64
	if err := ts.db.Model(&models.Transaction{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("failed to count transactions: %v", err)
	}
	return count
}

// presenceOf reloads a user's presence row.
func (ts *testStack) presenceOf(t *testing.T, userID uint) *models.PresenceStatus {
	var presence models.PresenceStatus
	if err := ts.db.Where("user_id = ?", userID).First(&presence).Error; err != nil {
		t.Fatalf("failed to load presence for user %d: %v", userID, err)
	}
	return &presence
}
