package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/guildops-backend/internal/data/db"
	types "github.com/yungbote/guildops-backend/internal/domain"
	"github.com/yungbote/guildops-backend/internal/domain/guild"
	"github.com/yungbote/guildops-backend/internal/platform/dbctx"
	"github.com/yungbote/guildops-backend/internal/platform/logger"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	clearConfigEnv(t)

	cfg := defaultConfig()
	cfg.JWTSecret = "app-test-secret"
	cfg.DB = db.Config{Driver: db.DriverSQLite, SQLitePath: "file::memory:"}

	a, err := New(context.Background(), logger.Nop(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestNewRequiresSecret(t *testing.T) {
	clearConfigEnv(t)
	cfg := defaultConfig()
	cfg.DB = db.Config{Driver: db.DriverSQLite, SQLitePath: "file::memory:"}
	_, err := New(context.Background(), logger.Nop(), cfg)
	assert.Error(t, err)
}

func TestAppServesQuestRoutes(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	guildID := uuid.New()
	officer := uuid.New()
	require.NoError(t, a.Repos.Member.Upsert(dbctx.Context{Ctx: ctx}, &types.GuildMember{
		GuildID: guildID, UserID: officer, Role: guild.RoleOfficer, DisplayName: "Varian", JoinedAt: time.Now(),
	}))

	call := func(userID uuid.UUID, method, path string, body any) *httptest.ResponseRecorder {
		token, err := a.Services.Auth.IssueToken(userID, "", time.Hour)
		require.NoError(t, err)
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, "/api/guilds/"+guildID.String()+path, &buf)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		a.Server.Engine.ServeHTTP(rec, req)
		return rec
	}

	rec := call(officer, http.MethodPost, "/quest-blueprints", map[string]any{"title": "Molten Core Attunement"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Blueprint struct {
			ID uuid.UUID `json:"id"`
		} `json:"blueprint"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEqual(t, uuid.Nil, created.Blueprint.ID)

	res, err := a.ImportBlueprintGraph(ctx, guildID, created.Blueprint.ID, officer, strings.NewReader(attunementYAML))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, res.InsertedNodeIDs)

	rec = call(officer, http.MethodGet, "/quest-blueprints", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Molten Core Attunement")
	assert.Contains(t, rec.Body.String(), `"nodeCount":3`)

	rec = call(uuid.New(), http.MethodGet, "/quest-blueprints", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
