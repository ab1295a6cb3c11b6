package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainagg "github.com/yungbote/guildops-backend/internal/domain/aggregates"
	"github.com/yungbote/guildops-backend/internal/http/middleware"
	"github.com/yungbote/guildops-backend/internal/http/response"
	"github.com/yungbote/guildops-backend/internal/modules/quest/progress"
	"github.com/yungbote/guildops-backend/internal/platform/ctxutil"
	"github.com/yungbote/guildops-backend/internal/platform/logger"
	"github.com/yungbote/guildops-backend/internal/services"
)

type QuestHandler struct {
	log   *logger.Logger
	quest services.QuestService
}

func NewQuestHandler(log *logger.Logger, quest services.QuestService) *QuestHandler {
	return &QuestHandler{log: log.With("handler", "QuestHandler"), quest: quest}
}

var errMissingCharacter = errors.New("characterId is required")

type startAssignmentBody struct {
	CharacterID uuid.UUID `json:"characterId"`
}

type statusBody struct {
	Status               string `json:"status"`
	AllowManagerOverride bool   `json:"allowManagerOverride"`
}

type progressBody struct {
	Updates              []progress.Update `json:"updates"`
	AllowManagerOverride bool              `json:"allowManagerOverride"`
}

// GET /api/guilds/:guildID/quest-blueprints
func (h *QuestHandler) ListBlueprints(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	out, err := h.quest.ListBlueprintSummaries(c.Request.Context(), middleware.GuildID(c), actor)
	if err != nil {
		h.fail(c, "ListBlueprints", err)
		return
	}
	response.RespondOK(c, gin.H{"blueprints": out})
}

// POST /api/guilds/:guildID/quest-blueprints
func (h *QuestHandler) CreateBlueprint(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req services.CreateBlueprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	bp, err := h.quest.CreateBlueprint(c.Request.Context(), middleware.GuildID(c), actor, req)
	if err != nil {
		h.fail(c, "CreateBlueprint", err)
		return
	}
	response.RespondCreated(c, gin.H{"blueprint": bp})
}

// GET /api/guilds/:guildID/quest-blueprints/:id
func (h *QuestHandler) GetBlueprint(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	bpID, ok := pathID(c, "invalid_blueprint_id")
	if !ok {
		return
	}
	detail, err := h.quest.GetBlueprintDetail(c.Request.Context(), middleware.GuildID(c), bpID, actor, queryBool(c, "includeGuildAssignments"))
	if err != nil {
		h.fail(c, "GetBlueprint", err)
		return
	}
	response.RespondOK(c, detail)
}

// PATCH /api/guilds/:guildID/quest-blueprints/:id
func (h *QuestHandler) UpdateBlueprint(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	bpID, ok := pathID(c, "invalid_blueprint_id")
	if !ok {
		return
	}
	var patch domainagg.BlueprintMetadataPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	bp, err := h.quest.UpdateBlueprintMetadata(c.Request.Context(), middleware.GuildID(c), bpID, actor, patch)
	if err != nil {
		h.fail(c, "UpdateBlueprint", err)
		return
	}
	response.RespondOK(c, gin.H{"blueprint": bp})
}

// PUT /api/guilds/:guildID/quest-blueprints/:id/graph
func (h *QuestHandler) UpsertGraph(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	bpID, ok := pathID(c, "invalid_blueprint_id")
	if !ok {
		return
	}
	var in services.GraphInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.quest.UpsertBlueprintGraph(c.Request.Context(), middleware.GuildID(c), bpID, actor, in)
	if err != nil {
		h.fail(c, "UpsertGraph", err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/guilds/:guildID/quest-blueprints/:id/assignments
func (h *QuestHandler) StartAssignment(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	bpID, ok := pathID(c, "invalid_blueprint_id")
	if !ok {
		return
	}
	var body startAssignmentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if body.CharacterID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_character_id", errMissingCharacter)
		return
	}
	view, err := h.quest.StartAssignment(c.Request.Context(), middleware.GuildID(c), bpID, actor, body.CharacterID)
	if err != nil {
		h.fail(c, "StartAssignment", err)
		return
	}
	response.RespondCreated(c, view)
}

// PATCH /api/guilds/:guildID/quest-assignments/:id/status
func (h *QuestHandler) UpdateAssignmentStatus(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	asID, ok := pathID(c, "invalid_assignment_id")
	if !ok {
		return
	}
	var body statusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	view, err := h.quest.UpdateAssignmentStatus(c.Request.Context(), middleware.GuildID(c), asID, actor, body.Status, body.AllowManagerOverride)
	if err != nil {
		h.fail(c, "UpdateAssignmentStatus", err)
		return
	}
	response.RespondOK(c, view)
}

// POST /api/guilds/:guildID/quest-assignments/:id/progress
func (h *QuestHandler) ApplyProgress(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	asID, ok := pathID(c, "invalid_assignment_id")
	if !ok {
		return
	}
	var body progressBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.quest.ApplyAssignmentProgressUpdates(c.Request.Context(), middleware.GuildID(c), asID, actor, body.Updates, body.AllowManagerOverride)
	if err != nil {
		h.fail(c, "ApplyProgress", err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/guilds/:guildID/characters
func (h *QuestHandler) ListMyCharacters(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	chars, err := h.quest.ListMyCharacters(c.Request.Context(), middleware.GuildID(c), actor)
	if err != nil {
		h.fail(c, "ListMyCharacters", err)
		return
	}
	response.RespondOK(c, gin.H{"characters": chars})
}

func (h *QuestHandler) fail(c *gin.Context, op string, err error) {
	if status := response.StatusForCode(domainagg.CodeOf(err)); status >= http.StatusInternalServerError {
		h.log.Error(op+" failed", "error", err, "guild_id", middleware.GuildID(c))
	}
	response.Error(c, err)
}

func actorFrom(c *gin.Context) (services.Actor, bool) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return services.Actor{}, false
	}
	return services.Actor{UserID: rd.UserID, DisplayName: rd.DisplayName}, true
}

func pathID(c *gin.Context, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, code, err)
		return uuid.Nil, false
	}
	return id, true
}

func queryBool(c *gin.Context, key string) bool {
	switch strings.ToLower(strings.TrimSpace(c.Query(key))) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}
