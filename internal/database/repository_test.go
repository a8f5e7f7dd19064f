package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"focusguard/internal/models"
)

func newTestRepository(t *testing.T, backupLimit int) *Repository {
	t.Helper()

	db, err := Connect(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return NewRepository(db, backupLimit)
}

func TestLoadMissingKey(t *testing.T) {
	repo := newTestRepository(t, 5)

	blob, err := repo.Load(context.Background(), "usage-data")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if blob != nil {
		t.Errorf("Load() = %q, want nil", blob)
	}
}

func TestSaveReplaces(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, 5)

	if err := repo.Save(ctx, "usage-data", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := repo.Save(ctx, "usage-data", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	blob, err := repo.Load(ctx, "usage-data")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(blob) != `{"v":2}` {
		t.Errorf("Load() = %s, want {\"v\":2}", blob)
	}

	backups, err := repo.Backups(ctx, "usage-data")
	if err != nil {
		t.Fatalf("Backups() error = %v", err)
	}
	if len(backups) != 1 || string(backups[0].Data) != `{"v":1}` {
		t.Errorf("Backups() = %+v", backups)
	}
}

func TestBackupsAreBounded(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, 3)

	for i := 0; i < 8; i++ {
		if err := repo.Save(ctx, "usage-data", []byte{byte('a' + i)}); err != nil {
			t.Fatalf("Save(%d) error = %v", i, err)
		}
	}

	backups, err := repo.Backups(ctx, "usage-data")
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 3 {
		t.Fatalf("len(Backups) = %d, want 3", len(backups))
	}
	// Newest backup is the value before the current one
	if string(backups[0].Data) != "g" || string(backups[2].Data) != "e" {
		t.Errorf("backups = %q, %q, %q", backups[0].Data, backups[1].Data, backups[2].Data)
	}

	// Other keys are unaffected
	if err := repo.Save(ctx, "custom-category-map", []byte("{}")); err != nil {
		t.Fatal(err)
	}
	other, _ := repo.Backups(ctx, "custom-category-map")
	if len(other) != 0 {
		t.Errorf("first save of a key created %d backups", len(other))
	}
}

func TestRestoreLatestBackup(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, 5)

	if err := repo.RestoreLatestBackup(ctx, "usage-data"); err == nil {
		t.Error("expected error without backups")
	}

	repo.Save(ctx, "usage-data", []byte("good"))
	repo.Save(ctx, "usage-data", []byte("corrupt"))

	if err := repo.RestoreLatestBackup(ctx, "usage-data"); err != nil {
		t.Fatalf("RestoreLatestBackup() error = %v", err)
	}
	blob, _ := repo.Load(ctx, "usage-data")
	if string(blob) != "good" {
		t.Errorf("Load() = %q, want good", blob)
	}
}

func TestFocusSessions(t *testing.T) {
	repo := newTestRepository(t, 5)
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	sessions := []*models.FocusSession{
		{ID: "a", StartedAt: base, EndedAt: base.Add(25 * time.Minute), ElapsedSeconds: 1500, Reason: "distraction"},
		{ID: "b", StartedAt: base.Add(time.Hour), EndedAt: base.Add(70 * time.Minute), ElapsedSeconds: 600, Reason: "user"},
		{ID: "c", StartedAt: base.Add(-48 * time.Hour), EndedAt: base.Add(-47 * time.Hour), ElapsedSeconds: 3600, Reason: "shutdown"},
	}
	for _, s := range sessions {
		if err := repo.CreateFocusSession(s); err != nil {
			t.Fatalf("CreateFocusSession() error = %v", err)
		}
	}

	got, err := repo.GetSessionsSince(base)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "a" {
		t.Errorf("GetSessionsSince() = %+v", got)
	}

	summary, err := repo.GetSessionSummarySince(base)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Count != 2 || summary.TotalSeconds != 2100 || summary.LongestSecs != 1500 {
		t.Errorf("GetSessionSummarySince() = %+v", summary)
	}

	deleted, err := repo.DeleteOldSessions(base)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("DeleteOldSessions() = %d, want 1", deleted)
	}
}

func TestErrorLogs(t *testing.T) {
	repo := newTestRepository(t, 5)

	for i, msg := range []string{"first", "second"} {
		err := repo.CreateErrorLog(&models.ErrorLog{
			Timestamp: time.Date(2024, 3, 1, 9, i, 0, 0, time.UTC),
			Source:    "tracker",
			ErrorMsg:  msg,
		})
		if err != nil {
			t.Fatalf("CreateErrorLog() error = %v", err)
		}
	}

	logs, err := repo.RecentErrors(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].ErrorMsg != "second" {
		t.Errorf("RecentErrors() = %+v", logs)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, 5)

	repo.Save(ctx, "usage-data", []byte("1"))
	repo.Save(ctx, "usage-data", []byte("2"))
	repo.Save(ctx, "custom-category-map", []byte("{}"))
	repo.CreateFocusSession(&models.FocusSession{ID: "a", StartedAt: time.Now(), EndedAt: time.Now(), Reason: "user"})

	if err := repo.Clear(ctx, "usage-data"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if blob, _ := repo.Load(ctx, "usage-data"); blob != nil {
		t.Errorf("usage-data survived Clear: %q", blob)
	}
	if backups, _ := repo.Backups(ctx, "usage-data"); len(backups) != 0 {
		t.Errorf("%d backups survived Clear", len(backups))
	}
	if blob, _ := repo.Load(ctx, "custom-category-map"); blob == nil {
		t.Error("unrelated key was cleared")
	}
	if sessions, _ := repo.GetSessionsSince(time.Time{}); len(sessions) != 0 {
		t.Errorf("%d sessions survived Clear", len(sessions))
	}
}

func TestConnectUsesWAL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	db, err := Connect(path)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer db.Close()

	mode, err := db.JournalMode()
	if err != nil {
		t.Fatalf("JournalMode() error = %v", err)
	}
	if mode != "wal" {
		t.Errorf("JournalMode() = %q, want wal", mode)
	}

	var timeout int
	if err := db.Raw("PRAGMA busy_timeout").Scan(&timeout).Error; err != nil {
		t.Fatalf("busy_timeout: %v", err)
	}
	if timeout != busyTimeoutMs {
		t.Errorf("busy_timeout = %d, want %d", timeout, busyTimeoutMs)
	}
}
