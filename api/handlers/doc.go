// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 handlers 提供 SceneFlow HTTP API 的请求处理器实现。

# 概述

handlers 包把叙事引擎的操作暴露为 HTTP 端点：回合调度、步骤推进、
场景取消、种子管理、关系查询、场景目录刷新与维护任务，另外包含
健康检查以及统一的响应/错误处理。所有 Handler 均遵循标准 net/http
接口，路径参数通过 r.PathValue 读取，并带有 Swagger 注解。

# 核心类型

  - DirectorHandler     — 回合调度、完成步骤、取消场景、群组状态与执行历史
  - SeedHandler         — 张力种子的列出、创建、升级与解决
  - SceneHandler        — 场景目录查询与缓存失效（ReloadHook 上报结果）
  - RelationHandler     — 群组内 AI 关系查询
  - MaintenanceHandler  — 张力衰减与过期种子清理
  - HealthHandler       — /health、/ready、/version；PingCheck 适配任意 ping 函数
  - Response            — 统一 JSON 响应结构（success + data + error + timestamp + request_id）

# 主要能力

  - 统一响应格式：WriteSuccess / WriteCreated / WriteError / WriteFailure
  - 错误映射：types.ErrorCode 与存储层哨兵错误自动转换为 4xx/5xx
  - 请求验证：DecodeJSONBody（1 MB 限制 + 拒绝未知字段）、ValidateContentType
  - 种子归属校验：其他群组的种子按 404 处理
*/
package handlers
