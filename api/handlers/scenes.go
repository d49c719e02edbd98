package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/sceneflow/api"
	"github.com/BaSui01/sceneflow/narrative/scene"
)

// =============================================================================
// 📚 Scene Catalog Handler
// =============================================================================

// ReloadHook 在每次目录重载后调用
type ReloadHook func(trigger string, err error)

// SceneHandler 提供场景目录查询与缓存失效
type SceneHandler struct {
	catalog  *scene.Catalog
	onReload ReloadHook
	logger   *zap.Logger
}

// NewSceneHandler 创建场景处理器；onReload 可为 nil
func NewSceneHandler(catalog *scene.Catalog, onReload ReloadHook, logger *zap.Logger) *SceneHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if onReload == nil {
		onReload = func(string, error) {}
	}
	return &SceneHandler{
		catalog:  catalog,
		onReload: onReload,
		logger:   logger.With(zap.String("component", "scene_handler")),
	}
}

// HandleList 列出激活的场景，可按分类过滤
// @Summary 列出场景
// @Tags scenes
// @Produce json
// @Param category query string false "分类，例如 TENSION"
// @Success 200 {object} Response{data=api.SceneListResponse} "场景列表"
// @Failure 503 {object} Response "目录不可用"
// @Security ApiKeyAuth
// @Router /api/v1/scenes [get]
func (h *SceneHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var (
		scenes []*scene.Scene
		err    error
	)
	if cat := strings.TrimSpace(r.URL.Query().Get("category")); cat != "" {
		scenes, err = h.catalog.GetByCategory(r.Context(), scene.Category(strings.ToUpper(cat)))
	} else {
		scenes, err = h.catalog.All(r.Context())
	}
	if err != nil {
		WriteFailure(w, err, h.logger)
		return
	}

	out := make([]api.SceneSummary, len(scenes))
	for i, s := range scenes {
		out[i] = api.NewSceneSummary(s)
	}
	WriteSuccess(w, api.SceneListResponse{Scenes: out, Stats: h.catalog.Stats()})
}

// HandleInvalidate 丢弃目录缓存并立即重新加载
// @Summary 刷新场景目录
// @Tags scenes
// @Produce json
// @Success 200 {object} Response{data=scene.Stats} "重新加载后的统计"
// @Failure 503 {object} Response "重新加载失败，缓存保持为空"
// @Security ApiKeyAuth
// @Router /api/v1/scenes/invalidate [post]
func (h *SceneHandler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	err := h.catalog.Reload(r.Context())
	h.onReload("api", err)
	if err != nil {
		WriteFailure(w, err, h.logger)
		return
	}
	h.logger.Info("scene catalog reloaded", zap.Int("scenes", h.catalog.Stats().Total))
	WriteSuccess(w, h.catalog.Stats())
}
