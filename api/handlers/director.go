package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/sceneflow/api"
	"github.com/BaSui01/sceneflow/narrative/engine"
	"github.com/BaSui01/sceneflow/types"
)

// =============================================================================
// 🎬 Director Handler
// =============================================================================

// DirectorHandler 处理回合调度、场景推进与群组状态查询
type DirectorHandler struct {
	engine *engine.Engine
	logger *zap.Logger
}

// NewDirectorHandler 创建 Director 处理器
func NewDirectorHandler(e *engine.Engine, logger *zap.Logger) *DirectorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectorHandler{
		engine: e,
		logger: logger.With(zap.String("component", "director_handler")),
	}
}

// HandleTurn 执行一次回合调度
// @Summary 处理回合
// @Description 推进种子并在没有进行中的场景时让 Director 选择场景
// @Tags director
// @Accept json
// @Produce json
// @Param group path string true "Group ID"
// @Param request body api.TurnRequest true "回合请求"
// @Success 200 {object} Response{data=engine.TurnResult} "调度结果"
// @Failure 400 {object} Response "请求无效"
// @Failure 503 {object} Response "存储不可用"
// @Security ApiKeyAuth
// @Router /api/v1/groups/{group}/turns [post]
func (h *DirectorHandler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	groupID, ok := groupParam(w, r, h.logger)
	if !ok {
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.TurnRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if len(req.Roster) == 0 {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "roster is required", h.logger)
		return
	}
	for _, a := range req.Roster {
		if a.ID == "" {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "every roster agent needs an id", h.logger)
			return
		}
	}

	ctx := types.WithGroupID(r.Context(), groupID)
	res, err := h.engine.HandleTurn(ctx, engine.TurnInput{
		GroupID:       groupID,
		Roster:        req.Roster,
		Messages:      req.Messages,
		EnergyBand:    req.EnergyBand,
		TensionBand:   req.TensionBand,
		RequiredRoles: req.RequiredRoles,
	})
	if err != nil {
		WriteFailure(w, err, h.logger)
		return
	}
	WriteSuccess(w, res)
}

// HandleCompleteStep 标记当前步骤已投递
// @Summary 完成步骤
// @Tags director
// @Produce json
// @Param group path string true "Group ID"
// @Success 200 {object} Response{data=engine.StepResult} "步骤结果"
// @Failure 409 {object} Response "没有进行中的场景"
// @Security ApiKeyAuth
// @Router /api/v1/groups/{group}/steps/complete [post]
func (h *DirectorHandler) HandleCompleteStep(w http.ResponseWriter, r *http.Request) {
	groupID, ok := groupParam(w, r, h.logger)
	if !ok {
		return
	}
	res, err := h.engine.CompleteStep(types.WithGroupID(r.Context(), groupID), groupID)
	if err != nil {
		WriteFailure(w, err, h.logger)
		return
	}
	WriteSuccess(w, res)
}

// HandleCancelScene 取消进行中的场景，不应用后果
// @Summary 取消场景
// @Tags director
// @Produce json
// @Param group path string true "Group ID"
// @Success 200 {object} Response{data=executor.Execution} "执行记录"
// @Failure 409 {object} Response "没有进行中的场景"
// @Security ApiKeyAuth
// @Router /api/v1/groups/{group}/scene/cancel [post]
func (h *DirectorHandler) HandleCancelScene(w http.ResponseWriter, r *http.Request) {
	groupID, ok := groupParam(w, r, h.logger)
	if !ok {
		return
	}
	ex, err := h.engine.CancelScene(types.WithGroupID(r.Context(), groupID), groupID)
	if err != nil {
		WriteFailure(w, err, h.logger)
		return
	}
	WriteSuccess(w, ex)
}

// HandleStatus 返回群组的调度状态
// @Summary 群组状态
// @Tags director
// @Produce json
// @Param group path string true "Group ID"
// @Success 200 {object} Response{data=engine.Status} "群组状态"
// @Security ApiKeyAuth
// @Router /api/v1/groups/{group}/director [get]
func (h *DirectorHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	groupID, ok := groupParam(w, r, h.logger)
	if !ok {
		return
	}
	st, err := h.engine.Status(r.Context(), groupID)
	if err != nil {
		WriteFailure(w, err, h.logger)
		return
	}
	WriteSuccess(w, st)
}

// HandleHistory 返回最近的场景执行记录（最新在前）
// @Summary 执行历史
// @Tags director
// @Produce json
// @Param group path string true "Group ID"
// @Param limit query int false "最大条数"
// @Success 200 {object} Response{data=[]executor.Execution} "执行历史"
// @Security ApiKeyAuth
// @Router /api/v1/groups/{group}/history [get]
func (h *DirectorHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	groupID, ok := groupParam(w, r, h.logger)
	if !ok {
		return
	}
	limit, ok := intQuery(w, r, "limit", 20, h.logger)
	if !ok {
		return
	}
	hist, err := h.engine.Components().Executor.History(r.Context(), groupID, limit)
	if err != nil {
		WriteFailure(w, err, h.logger)
		return
	}
	WriteSuccess(w, hist)
}

// =============================================================================
// 🔧 参数辅助
// =============================================================================

func groupParam(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	groupID := r.PathValue("group")
	if groupID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "group ID is required", logger)
		return "", false
	}
	return groupID, true
}

func intQuery(w http.ResponseWriter, r *http.Request, name string, def int, logger *zap.Logger) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, name+" must be a non-negative integer", logger)
		return 0, false
	}
	return v, true
}
