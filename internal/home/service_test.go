package home_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lalith-99/leaddesk/internal/home"
	"github.com/lalith-99/leaddesk/internal/models"
	"github.com/lalith-99/leaddesk/internal/notify"
	"github.com/lalith-99/leaddesk/internal/notify/notifytest"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

type fakeUsers struct {
	mu       sync.Mutex
	profiles map[string]models.UserProfile
	names    map[string]string
}

func (f *fakeUsers) EnsureUser(_ context.Context, id, name string) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.names == nil {
		f.names = map[string]string{}
	}
	f.names[id] = name
	p, ok := f.profiles[id]
	if !ok {
		p = models.UserProfile{SlackID: id, Name: name, Preferences: models.DefaultPreferences()}
		if f.profiles == nil {
			f.profiles = map[string]models.UserProfile{}
		}
		f.profiles[id] = p
	}
	return &p, nil
}

type fakeAssignments struct {
	list []models.Assignment
	err  error
}

func (f fakeAssignments) FindAssignmentsByAssignee(_ context.Context, id string) ([]models.Assignment, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Assignment, 0)
	for _, a := range f.list {
		if a.AssignedTo == id {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeGuard map[string]bool

func (g fakeGuard) IsAdmin(_ context.Context, id string) (bool, error) { return g[id], nil }

func assignment(category models.Category, ts string) models.Assignment {
	return models.Assignment{
		Channel:    "C1",
		MessageTS:  ts,
		Category:   category,
		AssignedTo: "U2",
		AssignedBy: "UA",
		AssignedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestDataFiltersAssignmentsByPreferences(t *testing.T) {
	t.Parallel()

	users := &fakeUsers{}
	rec := notifytest.New()
	rec.Users["U2"] = slack.User{ID: "U2", RealName: "Two Person"}
	svc := home.NewService(users, fakeAssignments{list: []models.Assignment{
		assignment(models.CategoryChatLeads, "1.1"),
		assignment(models.CategoryApplications, "1.2"),
		assignment(models.CategoryScheduleTour, "1.3"),
	}}, fakeGuard{}, notify.NewDispatcher(rec, zap.NewNop()), zap.NewNop())

	data, err := svc.Data(context.Background(), "U2")
	if err != nil {
		t.Fatal(err)
	}
	if data.IsAdmin {
		t.Error("U2 reported as admin")
	}
	if data.Preferences != models.DefaultPreferences() {
		t.Errorf("preferences = %+v, want defaults", data.Preferences)
	}
	// Defaults exclude applications.
	if len(data.Assignments) != 2 {
		t.Fatalf("got %d assignments, want 2", len(data.Assignments))
	}
	for _, a := range data.Assignments {
		if a.Category == models.CategoryApplications {
			t.Errorf("application assignment shown with applications disabled")
		}
	}
	if got := users.names["U2"]; got != "Two Person" {
		t.Errorf("profile created with name %q", got)
	}
}

func TestDataSurvivesNameLookupFailure(t *testing.T) {
	t.Parallel()

	users := &fakeUsers{}
	rec := notifytest.New()
	rec.Fail["users.info"] = errors.New("rate limited")
	svc := home.NewService(users, fakeAssignments{}, fakeGuard{"UA": true}, notify.NewDispatcher(rec, zap.NewNop()), zap.NewNop())

	data, err := svc.Data(context.Background(), "UA")
	if err != nil {
		t.Fatal(err)
	}
	if !data.IsAdmin {
		t.Error("UA not reported as admin")
	}
	if _, ok := users.profiles["UA"]; !ok {
		t.Error("profile not created")
	}
}

func TestDataFailsOnAssignmentError(t *testing.T) {
	t.Parallel()

	svc := home.NewService(&fakeUsers{}, fakeAssignments{err: errors.New("db down")}, fakeGuard{},
		notify.NewDispatcher(notifytest.New(), zap.NewNop()), zap.NewNop())
	if _, err := svc.Data(context.Background(), "U2"); err == nil {
		t.Fatal("expected error")
	}
}

func TestPublish(t *testing.T) {
	t.Parallel()

	rec := notifytest.New()
	svc := home.NewService(&fakeUsers{}, fakeAssignments{list: []models.Assignment{
		assignment(models.CategoryChatLeads, "1700000000.000100"),
	}}, fakeGuard{}, notify.NewDispatcher(rec, zap.NewNop()), zap.NewNop())

	if err := svc.Publish(context.Background(), "U2"); err != nil {
		t.Fatal(err)
	}
	published := rec.Find("views.publish")
	if len(published) != 1 || published[0].User != "U2" {
		t.Fatalf("calls = %v", rec.Methods())
	}
	raw, err := json.Marshal(published[0].Home)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "https://slack.com/archives/C1/p1700000000000100") {
		t.Errorf("assignment link missing: %s", raw)
	}
}
