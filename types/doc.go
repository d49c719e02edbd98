// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 SceneFlow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 narrative、llm、persistence、
api 等上层模块提供统一的类型契约。群组成员、消息窗口、结构化错误码
均定义于此，以避免循环依赖。

# 核心类型

  - Agent / Roster    — 群组中的 AI 角色（人格特质分数 + 近期参与度）
  - Message           — 近期消息窗口中的一条消息（发言者类型、内容、时间）
  - Trait             — 大五人格特质（0-100 分）
  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码与 Retryable 标记

# 主要能力

  - Context 传播：WithTraceID / WithGroupID / WithRequestID
  - 错误工具链：GetErrorCode / IsRetryable / IsErrorCode
*/
package types
