// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 SceneFlow 服务端程序入口。

# 概述

cmd/sceneflow 是叙事调度服务的可执行入口，提供 HTTP API、数据库迁移、
场景文件校验与导入、健康检查和版本查询等子命令。程序加载 YAML 配置，
使用 zap 结构化日志，并通过 Prometheus 与 OpenTelemetry 暴露运行指标。

# 核心类型

  - Server      — 按配置装配存储、场景目录、Director、执行器与引擎，管理 API 与 Metrics 服务器
  - Middleware  — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、migrate、scenes validate|import、version、health
  - 存储选择：memory、sql（postgres / mysql / sqlite），群组状态可放在 redis
  - 中间件链：Recovery、RequestID、SecurityHeaders、OTelTracing、RequestLogger、
    CORS、RateLimiter（基于 IP）、APIKeyAuth、MetricsMiddleware
  - 场景文件监听：文件变更后重新导入并刷新目录，redis 可用时广播给其他副本
  - 优雅关闭：signal.NotifyContext → 关闭 HTTP → 停止监听 → 关闭存储 → 刷新遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
