package api

import (
	"time"

	"github.com/BaSui01/sceneflow/narrative/scene"
	"github.com/BaSui01/sceneflow/types"
)

// =============================================================================
// 回合类型
// =============================================================================

// TurnRequest 表示一次群聊回合的调度请求。
// @Description 回合请求结构
type TurnRequest struct {
	// 参与的 AI 角色名单
	Roster types.Roster `json:"roster" binding:"required"`
	// 最近的消息窗口（按时间升序）
	Messages []types.Message `json:"messages"`
	// 调用方要求的能量区间（缺省时由对话分析得出）
	EnergyBand *scene.Band `json:"energy_band,omitempty"`
	// 调用方要求的张力区间（缺省时由关系与种子得出）
	TensionBand *scene.Band `json:"tension_band,omitempty"`
	// 场景必须包含的角色名或标签
	RequiredRoles []string `json:"required_roles,omitempty" example:"protagonist"`
}

// =============================================================================
// 种子类型
// =============================================================================

// CreateSeedRequest 表示手动创建张力种子的请求。
// @Description 创建种子请求
type CreateSeedRequest struct {
	// 种子类型（例如 jealousy、secret）
	Type string `json:"type" example:"jealousy" binding:"required"`
	// 标题
	Title string `json:"title" example:"Rencor pendiente"`
	// 内容
	Content string `json:"content"`
	// 参与的 AI ID
	InvolvedAgents []string `json:"involved_agents" binding:"required"`
	// 发起者 AI ID
	OriginAgentID string `json:"origin_agent_id,omitempty"`
	// 潜伏回合数（0 表示默认值）
	LatencyTurns int `json:"latency_turns,omitempty" example:"5"`
	// 最大存活回合数（0 表示默认值）
	MaxTurns int `json:"max_turns,omitempty" example:"20"`
}

// EscalateSeedRequest 表示升级种子的请求。
// @Description 升级种子请求
type EscalateSeedRequest struct {
	// 升级原因
	Reason string `json:"reason,omitempty" example:"manual"`
}

// ResolveSeedRequest 表示解决种子的请求。
// @Description 解决种子请求
type ResolveSeedRequest struct {
	// 解决描述
	Resolution string `json:"resolution" example:"Se reconciliaron"`
	// 解决方式（natural、forced、abandoned）
	Kind string `json:"kind,omitempty" example:"forced"`
}

// =============================================================================
// 场景类型
// =============================================================================

// SceneSummary 表示场景目录中的一条记录。
// @Description 场景摘要
type SceneSummary struct {
	Code        string           `json:"code" example:"TENSION_RIVALRY"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Category    scene.Category   `json:"category" example:"TENSION"`
	MinAIs      int              `json:"min_ais"`
	MaxAIs      int              `json:"max_ais"`
	Roles       []string         `json:"roles"`
	Steps       int              `json:"steps"`
	Usage       scene.UsageStats `json:"usage"`
}

// NewSceneSummary 从场景构建摘要
func NewSceneSummary(s *scene.Scene) SceneSummary {
	return SceneSummary{
		Code:        s.Code,
		Name:        s.Name,
		Description: s.Description,
		Category:    s.Category,
		MinAIs:      s.MinAIs,
		MaxAIs:      s.MaxAIs,
		Roles:       s.RoleNames(),
		Steps:       len(s.Interventions),
		Usage:       s.Usage,
	}
}

// SceneListResponse 表示场景列表。
// @Description 场景列表响应
type SceneListResponse struct {
	Scenes []SceneSummary `json:"scenes"`
	Stats  scene.Stats    `json:"stats"`
}

// =============================================================================
// 维护类型
// =============================================================================

// MaintenanceResponse 表示维护任务的结果。
// @Description 维护任务结果
type MaintenanceResponse struct {
	// 任务名称（decay、cleanup）
	Task string `json:"task" example:"decay"`
	// 受影响的记录数
	Affected int `json:"affected" example:"3"`
	// 执行耗时
	Duration string `json:"duration" example:"2ms"`
	// 完成时间
	CompletedAt time.Time `json:"completed_at"`
}
