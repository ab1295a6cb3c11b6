package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/guildops-backend/internal/domain"
	domainagg "github.com/yungbote/guildops-backend/internal/domain/aggregates"
	"github.com/yungbote/guildops-backend/internal/domain/quest"
	httpH "github.com/yungbote/guildops-backend/internal/http/handlers"
	httpMW "github.com/yungbote/guildops-backend/internal/http/middleware"
	"github.com/yungbote/guildops-backend/internal/modules/quest/progress"
	"github.com/yungbote/guildops-backend/internal/observability"
	"github.com/yungbote/guildops-backend/internal/platform/logger"
	"github.com/yungbote/guildops-backend/internal/services"
)

type stubQuestService struct {
	services.QuestService

	err         error
	guildID     uuid.UUID
	actor       services.Actor
	includeAll  bool
	created     services.CreateBlueprintRequest
	updates     []progress.Update
	override    bool
	nextStatus  string
	characterID uuid.UUID
}

func (s *stubQuestService) ListBlueprintSummaries(_ context.Context, guildID uuid.UUID, viewer services.Actor) ([]services.BlueprintSummary, error) {
	s.guildID, s.actor = guildID, viewer
	return []services.BlueprintSummary{}, s.err
}

func (s *stubQuestService) CreateBlueprint(_ context.Context, guildID uuid.UUID, creator services.Actor, in services.CreateBlueprintRequest) (*quest.Blueprint, error) {
	s.guildID, s.actor, s.created = guildID, creator, in
	if s.err != nil {
		return nil, s.err
	}
	return &quest.Blueprint{ID: uuid.New(), GuildID: guildID, Title: in.Title}, nil
}

func (s *stubQuestService) GetBlueprintDetail(_ context.Context, guildID, _ uuid.UUID, viewer services.Actor, includeAll bool) (*services.BlueprintDetail, error) {
	s.guildID, s.actor, s.includeAll = guildID, viewer, includeAll
	if s.err != nil {
		return nil, s.err
	}
	return &services.BlueprintDetail{Blueprint: &quest.Blueprint{GuildID: guildID}}, nil
}

func (s *stubQuestService) StartAssignment(_ context.Context, guildID, _ uuid.UUID, actor services.Actor, characterID uuid.UUID) (*services.AssignmentView, error) {
	s.guildID, s.actor, s.characterID = guildID, actor, characterID
	return &services.AssignmentView{}, s.err
}

func (s *stubQuestService) UpdateAssignmentStatus(_ context.Context, guildID, _ uuid.UUID, actor services.Actor, next string, override bool) (*services.AssignmentView, error) {
	s.guildID, s.actor, s.nextStatus, s.override = guildID, actor, next, override
	return &services.AssignmentView{}, s.err
}

func (s *stubQuestService) ApplyAssignmentProgressUpdates(_ context.Context, guildID, _ uuid.UUID, actor services.Actor, updates []progress.Update, override bool) (*services.ProgressResult, error) {
	s.guildID, s.actor, s.updates, s.override = guildID, actor, updates, override
	if s.err != nil {
		return nil, s.err
	}
	return &services.ProgressResult{AutoCompleted: true}, nil
}

func (s *stubQuestService) ListMyCharacters(_ context.Context, guildID uuid.UUID, viewer services.Actor) ([]*types.Character, error) {
	s.guildID, s.actor = guildID, viewer
	return []*types.Character{{Name: "Thrall"}}, s.err
}

type routerFixture struct {
	engine *gin.Engine
	svc    *stubQuestService
	token  string
	userID uuid.UUID
	guild  uuid.UUID
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	auth := services.NewAuthService(log, "test-secret", "guildops")
	userID := uuid.New()
	token, err := auth.IssueToken(userID, "Jaina", time.Hour)
	require.NoError(t, err)

	svc := &stubQuestService{}
	engine := NewRouter(RouterConfig{
		Log:            log,
		Metrics:        observability.New(),
		AuthMiddleware: httpMW.NewAuthMiddleware(log, auth),
		QuestHandler:   httpH.NewQuestHandler(log, svc),
		HealthHandler:  httpH.NewHealthHandler(nil),
	})
	return &routerFixture{engine: engine, svc: svc, token: token, userID: userID, guild: uuid.New()}
}

func (f *routerFixture) do(method, path string, body any, authed bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func (f *routerFixture) url(suffix string) string {
	return "/api/guilds/" + f.guild.String() + suffix
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var env struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error.Code, env.Error.Message
}

func TestRouterRequiresBearerToken(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(http.MethodGet, f.url("/quest-blueprints"), nil, false)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, "unauthorized", code)

	req := httptest.NewRequest(http.MethodGet, f.url("/quest-blueprints"), nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterRejectsBadGuildID(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.do(http.MethodGet, "/api/guilds/not-a-uuid/quest-blueprints", nil, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, "invalid_guild_id", code)
}

func TestRouterPassesActorAndGuild(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(http.MethodPost, f.url("/quest-blueprints"), map[string]any{"title": "Onyxia Attunement"}, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, f.guild, f.svc.guildID)
	assert.Equal(t, f.userID, f.svc.actor.UserID)
	assert.Equal(t, "Jaina", f.svc.actor.DisplayName)
	assert.Equal(t, "Onyxia Attunement", f.svc.created.Title)

	rec = f.do(http.MethodGet, f.url("/quest-blueprints/"+uuid.NewString()+"?includeGuildAssignments=true"), nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.svc.includeAll)

	rec = f.do(http.MethodGet, f.url("/characters"), nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Thrall")
}

func TestRouterDecodesAssignmentBodies(t *testing.T) {
	f := newRouterFixture(t)
	asID := uuid.NewString()

	charID := uuid.New()
	rec := f.do(http.MethodPost, f.url("/quest-blueprints/"+uuid.NewString()+"/assignments"), map[string]any{"characterId": charID}, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, charID, f.svc.characterID)

	rec = f.do(http.MethodPost, f.url("/quest-blueprints/"+uuid.NewString()+"/assignments"), map[string]any{}, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, "invalid_character_id", code)

	rec = f.do(http.MethodPatch, f.url("/quest-assignments/"+asID+"/status"), map[string]any{"status": "PAUSED", "allowManagerOverride": true}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PAUSED", f.svc.nextStatus)
	assert.True(t, f.svc.override)

	rec = f.do(http.MethodPost, f.url("/quest-assignments/"+asID+"/progress"), map[string]any{
		"updates": []map[string]any{{"nodeId": "A", "status": "COMPLETED", "progressCount": 2}},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.svc.updates, 1)
	assert.Equal(t, "A", f.svc.updates[0].NodeID)
	require.NotNil(t, f.svc.updates[0].ProgressCount)
	assert.Equal(t, 2, *f.svc.updates[0].ProgressCount)
	assert.False(t, f.svc.override)
	assert.Contains(t, rec.Body.String(), `"autoCompleted":true`)

	rec = f.do(http.MethodPost, f.url("/quest-assignments/nope/progress"), map[string]any{}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterMapsAggregateErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
		msg    string
	}{
		{domainagg.NewError(domainagg.CodeValidation, "op", "title is required", nil), http.StatusBadRequest, "validation", "title is required"},
		{domainagg.NewError(domainagg.CodeNotFound, "op", "blueprint not found", nil), http.StatusNotFound, "not_found", "blueprint not found"},
		{domainagg.NewError(domainagg.CodePermissionDenied, "op", "not a guild member", nil), http.StatusForbidden, "permission_denied", "not a guild member"},
		{domainagg.NewError(domainagg.CodeUnknownReference, "op", "unknown node B", nil), http.StatusUnprocessableEntity, "unknown_reference", "unknown node B"},
		{domainagg.NewError(domainagg.CodeConflict, "op", "assignment already active", nil), http.StatusConflict, "conflict", "assignment already active"},
		{domainagg.NewError(domainagg.CodeInternal, "op", "db exploded", nil), http.StatusInternalServerError, "internal", "internal error"},
		{errors.New("raw failure"), http.StatusInternalServerError, "internal", "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.code+"/"+tc.msg, func(t *testing.T) {
			f := newRouterFixture(t)
			f.svc.err = tc.err
			rec := f.do(http.MethodGet, f.url("/quest-blueprints/"+uuid.NewString()), nil, true)
			require.Equal(t, tc.status, rec.Code)
			code, msg := decodeError(t, rec)
			assert.Equal(t, tc.code, code)
			assert.Equal(t, tc.msg, msg)
		})
	}
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(http.MethodGet, "/healthcheck", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	_ = f.do(http.MethodGet, f.url("/quest-blueprints"), nil, true)
	rec = f.do(http.MethodGet, "/metrics", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/guilds/:guildID/quest-blueprints"`)
}
