package persistence

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nexira/nexira/internal/domain/entity"
	domainErrors "github.com/nexira/nexira/pkg/errors"
)

// testDB opens a private in-memory database and runs the migrations.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := autoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestMessageRepository_SaveAndFind(t *testing.T) {
	repo := NewGormMessageRepository(testDB(t))
	ctx := context.Background()

	msg := &entity.Message{
		Timestamp:   time.Now(),
		Role:        entity.RoleUser,
		Content:     "hello there",
		Importance:  0.5,
		ContextTags: []string{"greeting"},
		Platform:    "web",
	}
	if err := repo.Save(ctx, msg); err != nil {
		t.Fatalf("save: %v", err)
	}
	if msg.ID == 0 {
		t.Fatal("save should backfill the ID")
	}

	got, err := repo.FindByID(ctx, msg.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Content != "hello there" || got.Role != entity.RoleUser {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if len(got.ContextTags) != 1 || got.ContextTags[0] != "greeting" {
		t.Errorf("tags lost: %v", got.ContextTags)
	}
}

func TestMessageRepository_FindByIDNotFound(t *testing.T) {
	repo := NewGormMessageRepository(testDB(t))
	_, err := repo.FindByID(context.Background(), 999)
	if !domainErrors.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestMessageRepository_FindRecentOrder(t *testing.T) {
	repo := NewGormMessageRepository(testDB(t))
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		repo.Save(ctx, &entity.Message{
			Timestamp: time.Now(),
			Role:      entity.RoleUser,
			Content:   fmt.Sprintf("message %d", i),
			Platform:  "web",
		})
	}

	recent, err := repo.FindRecent(ctx, 3)
	if err != nil {
		t.Fatalf("find recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(recent))
	}
	// Most recent N, returned oldest first.
	if recent[0].Content != "message 3" || recent[2].Content != "message 5" {
		t.Errorf("wrong order: %q .. %q", recent[0].Content, recent[2].Content)
	}
}

func TestMessageRepository_Counts(t *testing.T) {
	repo := NewGormMessageRepository(testDB(t))
	ctx := context.Background()

	repo.Save(ctx, &entity.Message{Timestamp: time.Now(), Role: entity.RoleUser, Content: "q", Platform: "web"})
	repo.Save(ctx, &entity.Message{Timestamp: time.Now(), Role: entity.RoleAssistant, Content: "a", Platform: "web"})
	repo.Save(ctx, &entity.Message{Timestamp: time.Now(), Role: entity.RoleUser, Content: "q2", Platform: "web"})

	if n, _ := repo.Count(ctx); n != 3 {
		t.Errorf("count = %d", n)
	}
	if n, _ := repo.CountByRole(ctx, entity.RoleUser); n != 2 {
		t.Errorf("user count = %d", n)
	}
	if maxID, _ := repo.MaxID(ctx); maxID != 3 {
		t.Errorf("max id = %d", maxID)
	}
}

func TestMessageRepository_SetFeedback(t *testing.T) {
	repo := NewGormMessageRepository(testDB(t))
	ctx := context.Background()

	msg := &entity.Message{Timestamp: time.Now(), Role: entity.RoleAssistant, Content: "a", Platform: "web"}
	repo.Save(ctx, msg)

	if err := repo.SetFeedback(ctx, msg.ID, entity.FeedbackPositive); err != nil {
		t.Fatalf("set feedback: %v", err)
	}
	got, _ := repo.FindByID(ctx, msg.ID)
	if got.UserFeedback != entity.FeedbackPositive {
		t.Errorf("feedback = %q", got.UserFeedback)
	}

	if err := repo.SetFeedback(ctx, 999, entity.FeedbackPositive); !domainErrors.IsNotFound(err) {
		t.Errorf("expected not-found for missing message, got %v", err)
	}
}

func TestStateRepository_GetSet(t *testing.T) {
	repo := NewGormStateRepository(testDB(t))
	ctx := context.Background()

	// Missing keys read back as empty, not as an error.
	if v, err := repo.Get(ctx, "ai_name"); err != nil || v != "" {
		t.Fatalf("missing key: v=%q err=%v", v, err)
	}

	if err := repo.Set(ctx, "ai_name", "Aurora"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, _ := repo.Get(ctx, "ai_name"); v != "Aurora" {
		t.Errorf("get = %q", v)
	}

	// Overwrite in place.
	repo.Set(ctx, "ai_name", "Lumen")
	if v, _ := repo.Get(ctx, "ai_name"); v != "Lumen" {
		t.Errorf("after overwrite = %q", v)
	}
}

func TestActivityRepository_LogAndQuery(t *testing.T) {
	repo := NewGormActivityRepository(testDB(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	repo.Log(ctx, &entity.ActivityEvent{Timestamp: base, Type: entity.ActivitySystem, Label: "boot"})
	repo.Log(ctx, &entity.ActivityEvent{Timestamp: base.Add(time.Minute), Type: entity.ActivityImage, Label: "drew"})
	repo.Log(ctx, &entity.ActivityEvent{Timestamp: base.Add(2 * time.Minute), Type: entity.ActivitySystem, Label: "backup"})

	recent, err := repo.FindRecent(ctx, 10)
	if err != nil {
		t.Fatalf("find recent: %v", err)
	}
	if len(recent) != 3 || recent[0].Label != "backup" {
		t.Errorf("recent = %+v", recent)
	}

	system, _ := repo.FindRecentByType(ctx, entity.ActivitySystem, 10)
	if len(system) != 2 {
		t.Errorf("system events = %d", len(system))
	}

	last, err := repo.LastOfType(ctx, entity.ActivitySystem)
	if err != nil || last.Label != "backup" {
		t.Errorf("last of type: %+v (%v)", last, err)
	}
	if _, err := repo.LastOfType(ctx, "no_such_type"); !domainErrors.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestErrorLogRepository_LogAndResolve(t *testing.T) {
	repo := NewGormErrorLogRepository(testDB(t))
	ctx := context.Background()

	entry := &entity.ErrorEntry{
		Timestamp: time.Now(),
		Level:     entity.ErrorLevelError,
		Source:    "scheduler/backup",
		Message:   "disk full",
	}
	if err := repo.Log(ctx, entry); err != nil {
		t.Fatalf("log: %v", err)
	}
	if entry.ID == 0 {
		t.Fatal("log should backfill the ID")
	}

	recent, err := repo.FindRecent(ctx, 10)
	if err != nil {
		t.Fatalf("find recent: %v", err)
	}
	if len(recent) != 1 || recent[0].Source != "scheduler/backup" || recent[0].Resolved {
		t.Errorf("recent = %+v", recent)
	}

	if err := repo.Resolve(ctx, entry.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	recent, _ = repo.FindRecent(ctx, 10)
	if !recent[0].Resolved {
		t.Error("entry should be marked resolved")
	}

	if err := repo.Resolve(ctx, 999); !domainErrors.IsNotFound(err) {
		t.Errorf("expected not-found for missing entry, got %v", err)
	}
}

func TestThreadRepository_RoundTrip(t *testing.T) {
	repo := NewGormThreadRepository(testDB(t))
	ctx := context.Background()

	thread := &entity.Thread{
		Name:         "Garden · Planting",
		Keywords:     []string{"garden", "planting"},
		MessageCount: 1,
		StartedAt:    time.Now(),
		LastActivity: time.Now(),
	}
	if err := repo.Save(ctx, thread); err != nil {
		t.Fatalf("save: %v", err)
	}
	if thread.ID == 0 {
		t.Fatal("save should backfill the ID")
	}

	repo.AddMessage(ctx, thread.ID, 1)
	repo.AddMessage(ctx, thread.ID, 2)
	ids, err := repo.FindMessageIDs(ctx, thread.ID)
	if err != nil || len(ids) != 2 {
		t.Fatalf("message ids = %v (%v)", ids, err)
	}

	got, err := repo.FindByID(ctx, thread.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got.Keywords) != 2 || got.Name != "Garden · Planting" {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if err := repo.DeleteAll(ctx); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	all, _ := repo.FindAll(ctx)
	if len(all) != 0 {
		t.Errorf("threads should be gone, got %d", len(all))
	}
}
