package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/sceneflow/api"
	"github.com/BaSui01/sceneflow/narrative/seed"
	"github.com/BaSui01/sceneflow/types"
)

// =============================================================================
// 🌱 Tension Seed Handler
// =============================================================================

// SeedHandler 管理群组的张力种子
type SeedHandler struct {
	seeds  *seed.Manager
	logger *zap.Logger
}

// NewSeedHandler 创建种子处理器
func NewSeedHandler(seeds *seed.Manager, logger *zap.Logger) *SeedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeedHandler{
		seeds:  seeds,
		logger: logger.With(zap.String("component", "seed_handler")),
	}
}

// HandleList 列出种子，可按状态过滤（逗号分隔）
// @Summary 列出种子
// @Tags seeds
// @Produce json
// @Param group path string true "Group ID"
// @Param status query string false "状态过滤，例如 ACTIVE,ESCALATING"
// @Success 200 {object} Response{data=[]seed.Seed} "种子列表"
// @Security ApiKeyAuth
// @Router /api/v1/groups/{group}/seeds [get]
func (h *SeedHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	groupID, ok := groupParam(w, r, h.logger)
	if !ok {
		return
	}

	var statuses []seed.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st := seed.Status(strings.ToUpper(strings.TrimSpace(part)))
			if st == "" {
				continue
			}
			if !st.IsValid() {
				WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "unknown seed status: "+part, h.logger)
				return
			}
			statuses = append(statuses, st)
		}
	}

	seeds, err := h.seeds.List(r.Context(), groupID, statuses...)
	if err != nil {
		WriteFailure(w, err, h.logger)
		return
	}
	WriteSuccess(w, seeds)
}

// HandleCreate 手动创建种子
// @Summary 创建种子
// @Tags seeds
// @Accept json
// @Produce json
// @Param group path string true "Group ID"
// @Param request body api.CreateSeedRequest true "种子"
// @Success 201 {object} Response{data=seed.Seed} "新种子"
// @Failure 409 {object} Response "群组种子预算已满"
// @Security ApiKeyAuth
// @Router /api/v1/groups/{group}/seeds [post]
func (h *SeedHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	groupID, ok := groupParam(w, r, h.logger)
	if !ok {
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.CreateSeedRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Type) == "" || len(req.InvolvedAgents) == 0 {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "type and involved_agents are required", h.logger)
		return
	}
	if req.LatencyTurns < 0 || req.MaxTurns < 0 {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "turn counts must be non-negative", h.logger)
		return
	}

	s, err := h.seeds.Create(r.Context(), seed.CreateInput{
		GroupID:        groupID,
		Type:           req.Type,
		Title:          req.Title,
		Content:        req.Content,
		InvolvedAgents: req.InvolvedAgents,
		OriginAgentID:  req.OriginAgentID,
		LatencyTurns:   req.LatencyTurns,
		MaxTurns:       req.MaxTurns,
	})
	if err != nil {
		WriteFailure(w, err, h.logger)
		return
	}
	WriteCreated(w, s)
}

// HandleEscalate 升级种子
// @Summary 升级种子
// @Tags seeds
// @Accept json
// @Produce json
// @Param group path string true "Group ID"
// @Param id path string true "Seed ID"
// @Param request body api.EscalateSeedRequest false "升级原因"
// @Success 200 {object} Response{data=seed.Seed} "升级后的种子"
// @Failure 404 {object} Response "种子不存在"
// @Failure 409 {object} Response "种子已终结"
// @Security ApiKeyAuth
// @Router /api/v1/groups/{group}/seeds/{id}/escalate [post]
func (h *SeedHandler) HandleEscalate(w http.ResponseWriter, r *http.Request) {
	groupID, ok := groupParam(w, r, h.logger)
	if !ok {
		return
	}
	var req api.EscalateSeedRequest
	if err := DecodeOptionalJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	id := r.PathValue("id")
	if !h.ownedBy(w, r.Context(), groupID, id) {
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "manual"
	}

	s, err := h.seeds.Escalate(r.Context(), id, reason)
	if err != nil {
		WriteFailure(w, err, h.logger)
		return
	}
	WriteSuccess(w, s)
}

// HandleResolve 解决种子
// @Summary 解决种子
// @Tags seeds
// @Accept json
// @Produce json
// @Param group path string true "Group ID"
// @Param id path string true "Seed ID"
// @Param request body api.ResolveSeedRequest true "解决方式"
// @Success 200 {object} Response{data=seed.Seed} "已解决的种子"
// @Failure 404 {object} Response "种子不存在"
// @Failure 409 {object} Response "种子已终结"
// @Security ApiKeyAuth
// @Router /api/v1/groups/{group}/seeds/{id}/resolve [post]
func (h *SeedHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	groupID, ok := groupParam(w, r, h.logger)
	if !ok {
		return
	}
	var req api.ResolveSeedRequest
	if err := DecodeOptionalJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	kind := seed.ResolutionKind(strings.ToLower(req.Kind))
	if kind == "" {
		kind = seed.ResolutionForced
	}
	if !kind.IsValid() {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "unknown resolution kind: "+req.Kind, h.logger)
		return
	}
	id := r.PathValue("id")
	if !h.ownedBy(w, r.Context(), groupID, id) {
		return
	}

	s, err := h.seeds.Resolve(r.Context(), id, req.Resolution, kind)
	if err != nil {
		WriteFailure(w, err, h.logger)
		return
	}
	WriteSuccess(w, s)
}

// HandleStartResolving 将种子标记为 RESOLVING（正在化解，尚未终结）
// @Summary 开始化解种子
// @Tags seeds
// @Produce json
// @Param group path string true "Group ID"
// @Param id path string true "Seed ID"
// @Success 200 {object} Response{data=seed.Seed} "RESOLVING 状态的种子"
// @Failure 404 {object} Response "种子不存在"
// @Failure 409 {object} Response "种子已终结"
// @Security ApiKeyAuth
// @Router /api/v1/groups/{group}/seeds/{id}/resolving [post]
func (h *SeedHandler) HandleStartResolving(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.seeds.StartResolving)
}

// HandleRecordReference 记录对话提及了该种子
// @Summary 记录种子引用
// @Tags seeds
// @Produce json
// @Param group path string true "Group ID"
// @Param id path string true "Seed ID"
// @Success 200 {object} Response{data=seed.Seed} "引用计数已递增的种子"
// @Failure 404 {object} Response "种子不存在"
// @Failure 409 {object} Response "种子已终结"
// @Security ApiKeyAuth
// @Router /api/v1/groups/{group}/seeds/{id}/reference [post]
func (h *SeedHandler) HandleRecordReference(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.seeds.RecordReference)
}

// mutate 校验群组归属后对种子执行无参数的状态变更
func (h *SeedHandler) mutate(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (*seed.Seed, error)) {
	groupID, ok := groupParam(w, r, h.logger)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if !h.ownedBy(w, r.Context(), groupID, id) {
		return
	}

	s, err := fn(r.Context(), id)
	if err != nil {
		WriteFailure(w, err, h.logger)
		return
	}
	WriteSuccess(w, s)
}

// ownedBy 确认种子存在且属于该群组，否则写入 404
func (h *SeedHandler) ownedBy(w http.ResponseWriter, ctx context.Context, groupID, id string) bool {
	s, err := h.seeds.Get(ctx, id)
	if err != nil {
		WriteFailure(w, err, h.logger)
		return false
	}
	if s.GroupID != groupID {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrSeedNotFound, "seed not found in group", h.logger)
		return false
	}
	return true
}
