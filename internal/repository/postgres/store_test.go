package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/leaddesk/internal/db"
	"github.com/lalith-99/leaddesk/internal/models"
	"github.com/lalith-99/leaddesk/internal/repository/postgres"
	"go.uber.org/zap"
)

// openDB connects to TEST_DATABASE_URL and migrates it. Tests are skipped
// when the variable is unset.
func openDB(t *testing.T) *db.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	logger := zap.NewNop()
	if err := db.Migrate(url, logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	database, err := db.New(ctx, url, logger)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(database.Close)
	return database
}

func uniqueID(prefix string) string {
	return prefix + uuid.NewString()[:8]
}

func TestUserStore(t *testing.T) {
	database := openDB(t)
	store := postgres.NewUserStore(database.Pool())
	ctx := context.Background()
	id := uniqueID("U")

	got, err := store.FindUser(ctx, id)
	if err != nil || got != nil {
		t.Fatalf("FindUser on unknown id = %v, %v; want nil, nil", got, err)
	}

	created, err := store.EnsureUser(ctx, id, "Bea")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if created.Preferences != models.DefaultPreferences() || created.Name != "Bea" {
		t.Fatalf("unexpected new profile: %+v", created)
	}

	again, err := store.EnsureUser(ctx, id, "Other")
	if err != nil {
		t.Fatalf("EnsureUser again: %v", err)
	}
	if again.Name != "Bea" {
		t.Errorf("EnsureUser overwrote name: %q", again.Name)
	}

	prefs := models.Preferences{Applications: true}
	updated, err := store.UpsertUserPreferences(ctx, id, prefs)
	if err != nil {
		t.Fatalf("UpsertUserPreferences: %v", err)
	}
	if updated.Preferences != prefs {
		t.Errorf("preferences = %+v", updated.Preferences)
	}

	users, err := store.FindUsersByEnabledCategory(ctx, models.CategoryApplications)
	if err != nil {
		t.Fatalf("FindUsersByEnabledCategory: %v", err)
	}
	var found bool
	for _, u := range users {
		found = found || u.SlackID == id
	}
	if !found {
		t.Errorf("user %s not listed for applications", id)
	}

	if _, err := store.FindUsersByEnabledCategory(ctx, "bogus"); err == nil {
		t.Error("expected an error for an unknown category")
	}
}

func TestAssignmentStoreIsIdempotent(t *testing.T) {
	database := openDB(t)
	store := postgres.NewAssignmentStore(database.Pool())
	ctx := context.Background()
	ref := models.MessageRef{Channel: uniqueID("C"), TS: "1700000000.000100"}
	assignee := uniqueID("U")

	first := models.Assignment{Channel: ref.Channel, MessageTS: ref.TS, Category: models.CategoryChatLeads, AssignedTo: assignee, AssignedBy: "UADMIN"}
	created, err := store.CreateAssignment(ctx, first)
	if err != nil || !created {
		t.Fatalf("first CreateAssignment = %v, %v", created, err)
	}

	second := first
	second.AssignedTo = uniqueID("U")
	created, err = store.CreateAssignment(ctx, second)
	if err != nil || created {
		t.Fatalf("second CreateAssignment = %v, %v; want false, nil", created, err)
	}

	rec, err := store.FindAssignmentByMessage(ctx, ref)
	if err != nil || rec == nil {
		t.Fatalf("FindAssignmentByMessage = %v, %v", rec, err)
	}
	if rec.AssignedTo != assignee {
		t.Errorf("first writer should win, got %s", rec.AssignedTo)
	}

	list, err := store.FindAssignmentsByAssignee(ctx, assignee)
	if err != nil || len(list) != 1 {
		t.Fatalf("FindAssignmentsByAssignee = %v, %v", list, err)
	}
	if list[0].Category != models.CategoryChatLeads {
		t.Errorf("category = %q", list[0].Category)
	}
}

func TestLeadStore(t *testing.T) {
	database := openDB(t)
	store := postgres.NewLeadStore(database.Pool())
	ctx := context.Background()

	lead, err := store.CreateLead(ctx, models.Lead{
		Channel:  "C1",
		SlackTS:  "1.1",
		Category: models.CategoryScheduleTour,
		Name:     uniqueID("lead-"),
		Email:    "x@y.z",
		Body:     "tour please",
	})
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}
	if lead.ID == uuid.Nil || lead.CreatedAt.IsZero() {
		t.Fatalf("lead not populated: %+v", lead)
	}

	none, err := store.ListLeadsByCategories(ctx, nil, 10)
	if err != nil || len(none) != 0 {
		t.Fatalf("empty categories = %v, %v", none, err)
	}

	leads, err := store.ListLeadsByCategories(ctx, []models.Category{models.CategoryScheduleTour}, 500)
	if err != nil {
		t.Fatalf("ListLeadsByCategories: %v", err)
	}
	var found bool
	for _, l := range leads {
		found = found || l.ID == lead.ID
	}
	if !found {
		t.Error("created lead not listed")
	}
}
