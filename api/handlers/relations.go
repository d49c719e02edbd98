package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/sceneflow/api"
	"github.com/BaSui01/sceneflow/narrative/engine"
	"github.com/BaSui01/sceneflow/narrative/relation"
)

// =============================================================================
// 🤝 Relation Handler
// =============================================================================

// RelationHandler 查询 AI 之间的关系
type RelationHandler struct {
	relations *relation.Tracker
	logger    *zap.Logger
}

// NewRelationHandler 创建关系处理器
func NewRelationHandler(relations *relation.Tracker, logger *zap.Logger) *RelationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelationHandler{
		relations: relations,
		logger:    logger.With(zap.String("component", "relation_handler")),
	}
}

// HandleList 列出群组内的关系，可限定某个 AI
// @Summary 列出关系
// @Tags relations
// @Produce json
// @Param group path string true "Group ID"
// @Param agent query string false "Agent ID"
// @Success 200 {object} Response{data=[]relation.Relation} "关系列表"
// @Security ApiKeyAuth
// @Router /api/v1/groups/{group}/relations [get]
func (h *RelationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	groupID, ok := groupParam(w, r, h.logger)
	if !ok {
		return
	}

	var (
		rels []*relation.Relation
		err  error
	)
	if agentID := r.URL.Query().Get("agent"); agentID != "" {
		rels, err = h.relations.ForAgent(r.Context(), groupID, agentID)
	} else {
		rels, err = h.relations.ForGroup(r.Context(), groupID)
	}
	if err != nil {
		WriteFailure(w, err, h.logger)
		return
	}
	WriteSuccess(w, rels)
}

// =============================================================================
// 🧹 Maintenance Handler
// =============================================================================

// MaintenanceHandler 暴露供外部定时器调用的维护入口
type MaintenanceHandler struct {
	engine *engine.Engine
	logger *zap.Logger
}

// NewMaintenanceHandler 创建维护处理器
func NewMaintenanceHandler(e *engine.Engine, logger *zap.Logger) *MaintenanceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceHandler{
		engine: e,
		logger: logger.With(zap.String("component", "maintenance_handler")),
	}
}

// HandleDecay 对所有关系执行一次张力衰减
// @Summary 张力衰减
// @Tags maintenance
// @Produce json
// @Success 200 {object} Response{data=api.MaintenanceResponse} "受影响的关系数"
// @Security ApiKeyAuth
// @Router /api/v1/maintenance/decay [post]
func (h *MaintenanceHandler) HandleDecay(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "decay", h.engine.DecayTension)
}

// HandleCleanup 清除超过保留期的过期种子
// @Summary 清理过期种子
// @Tags maintenance
// @Produce json
// @Success 200 {object} Response{data=api.MaintenanceResponse} "删除的种子数"
// @Security ApiKeyAuth
// @Router /api/v1/maintenance/cleanup [post]
func (h *MaintenanceHandler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "cleanup", h.engine.CleanupSeeds)
}

func (h *MaintenanceHandler) run(w http.ResponseWriter, r *http.Request, task string, fn func(context.Context) (int, error)) {
	start := time.Now()
	n, err := fn(r.Context())
	if err != nil {
		h.logger.Warn("maintenance task failed", zap.String("task", task), zap.Int("affected", n), zap.Error(err))
		WriteFailure(w, err, h.logger)
		return
	}
	h.logger.Info("maintenance task completed", zap.String("task", task), zap.Int("affected", n))
	WriteSuccess(w, api.MaintenanceResponse{
		Task:        task,
		Affected:    n,
		Duration:    time.Since(start).String(),
		CompletedAt: time.Now(),
	})
}
