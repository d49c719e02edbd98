// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 persistence 定义叙事调度核心使用的存储契约与公共错误。

# 概述

核心从不决定数据如何存储：场景、张力种子、AI 关系、执行历史与群组场景状态
均通过各自包中声明的窄接口访问（create/update/find-by-filter）。本包提供
公共错误（ErrNotFound、ErrStoreClosed、ErrInvalidInput）与后端选择配置。

# 后端

  - memory: 各叙事包自带的内存实现，适用于开发与测试。
  - sqlstore: 基于 GORM 的持久化实现（postgres / mysql / sqlite）。
  - redisstore: 基于 Redis 的群组场景状态实现，适用于多实例部署。
*/
package persistence
