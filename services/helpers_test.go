package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"crystaltides-web/mcping"
	"crystaltides-web/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory sqlite database with the content tables.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Poll{},
		&models.PollOption{},
		&models.News{},
		&models.Comment{},
		&models.WikiArticle{},
		&models.Ticket{},
		&models.TicketMessage{},
		&models.Suggestion{},
		&models.SystemLog{},
		&models.ForumThread{},
		&models.ForumPost{},
	))
	require.NoError(t, db.AutoMigrate(models.PluginTables...))
	return db
}

var (
	admin = &models.Caller{ID: "admin-1", Username: "Killu", Role: "admin"}
	owner = &models.Caller{ID: "owner-1", Username: "UltraXn", Role: "neroferno"}
	alice = &models.Caller{ID: "user-1", Username: "Alice", Role: "user"}
	bob   = &models.Caller{ID: "user-2", Username: "Bob", Role: "user"}
)

type fakeProbe struct {
	status *mcping.Status
	err    error
	calls  int
}

func (f *fakeProbe) Probe(ctx context.Context) (*mcping.Status, error) {
	f.calls++
	return f.status, f.err
}

// fakePlugins records calls so tests can assert which sources were consulted.
type fakePlugins struct {
	mu sync.Mutex

	online    []string
	onlineErr error
	rows      []models.PlayerGroupRow
	rowsErr   error
	skins     map[string]string
	skinsErr  error
	starts    map[string]int64
	staff     []StaffGroupMember
	names     map[string]string
	stats     *PlanStats
	statsErr  error

	calls    map[string]int
	gotNames []string
}

func (f *fakePlugins) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
}

func (f *fakePlugins) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakePlugins) OnlinePlayerNames(ctx context.Context) ([]string, error) {
	f.hit("OnlinePlayerNames")
	return f.online, f.onlineErr
}

func (f *fakePlugins) PlayerGroups(ctx context.Context, names []string) ([]models.PlayerGroupRow, error) {
	f.hit("PlayerGroups")
	f.gotNames = names
	return f.rows, f.rowsErr
}

func (f *fakePlugins) Skins(ctx context.Context, uuids []string) (map[string]string, error) {
	f.hit("Skins")
	return f.skins, f.skinsErr
}

func (f *fakePlugins) OpenSessionStarts(ctx context.Context, uuids []string) (map[string]int64, error) {
	f.hit("OpenSessionStarts")
	return f.starts, nil
}

func (f *fakePlugins) StaffByGroups(ctx context.Context, groups []string) ([]StaffGroupMember, error) {
	f.hit("StaffByGroups")
	return f.staff, nil
}

func (f *fakePlugins) NamesByUUID(ctx context.Context, uuids []string) (map[string]string, error) {
	f.hit("NamesByUUID")
	return f.names, nil
}

func (f *fakePlugins) GlobalStats(ctx context.Context, since time.Time) (*PlanStats, error) {
	f.hit("GlobalStats")
	return f.stats, f.statsErr
}

type fakeIdentity struct {
	mu      sync.Mutex
	users   []models.IdentityUser
	listErr error
	updates    []map[string]interface{}
	appUpdates []map[string]interface{}
}

func (f *fakeIdentity) ListUsers(ctx context.Context) ([]models.IdentityUser, error) {
	return f.users, f.listErr
}

func (f *fakeIdentity) GetUser(ctx context.Context, id string) (*models.IdentityUser, error) {
	for i := range f.users {
		if f.users[i].ID == id {
			u := f.users[i]
			return &u, nil
		}
	}
	return nil, notFound("user")
}

func (f *fakeIdentity) UpdateUserMetadata(ctx context.Context, id string, metadata map[string]interface{}) (*models.IdentityUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.users {
		if f.users[i].ID != id {
			continue
		}
		if f.users[i].UserMetadata == nil {
			f.users[i].UserMetadata = map[string]interface{}{}
		}
		for k, v := range metadata {
			f.users[i].UserMetadata[k] = v
		}
		f.updates = append(f.updates, metadata)
		u := f.users[i]
		return &u, nil
	}
	return nil, notFound("user")
}

func (f *fakeIdentity) UpdateAppMetadata(ctx context.Context, id string, metadata map[string]interface{}) (*models.IdentityUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.users {
		if f.users[i].ID != id {
			continue
		}
		if f.users[i].AppMetadata == nil {
			f.users[i].AppMetadata = map[string]interface{}{}
		}
		for k, v := range metadata {
			f.users[i].AppMetadata[k] = v
		}
		f.appUpdates = append(f.appUpdates, metadata)
		u := f.users[i]
		return &u, nil
	}
	return nil, notFound("user")
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

type fakePanel struct {
	mu         sync.Mutex
	resources  *PanelResources
	resErr     error
	details    *PanelDetails
	detailsErr error
	cmdErr     error
	commands   []string
	calls      int
}

func (f *fakePanel) Resources(ctx context.Context) (*PanelResources, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.resources, f.resErr
}

func (f *fakePanel) Details(ctx context.Context) (*PanelDetails, error) {
	return f.details, f.detailsErr
}

func (f *fakePanel) SendCommand(ctx context.Context, command string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, command)
	return f.cmdErr
}
