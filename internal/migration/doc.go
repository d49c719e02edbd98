// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 提供数据库 Schema 迁移管理能力，支持 PostgreSQL、
MySQL 与 SQLite 三种数据库，基于 golang-migrate 实现。

# 概述

本包通过 embed.FS 内嵌各数据库方言的 SQL 迁移文件，结合
golang-migrate 引擎实现版本化的 Schema 变更管理。支持正向迁移、
回滚、按步执行、跳转到指定版本以及强制设置版本号等操作。

迁移文件创建 SceneFlow 的五张表：scenes、tension_seeds、ai_relations、
scene_executions 与 group_scene_states。SQLite 使用纯 Go 驱动，
无需 CGO。

# 核心接口与类型

  - Migrator：Up/Down/DownAll/Steps/Goto/Force/Version/Status/Info/
    Verify/Close。
  - DefaultMigrator：按方言表（sql 驱动名、golang-migrate 驱动、
    查表语句）连接数据库；所有变更操作经 run 执行，ctx 取消时通过
    GracefulStop 在当前迁移结束后停下，并用 zap 记录起止版本与耗时。
  - NarrativeTables / TablesAt：每张叙事表由哪个版本创建。Status
    为每个迁移列出它创建的表，Verify 检查当前版本应有的表是否都在，
    版本 dirty 或缺表时返回 ErrSchemaMismatch。
  - CLI：Run 按子命令分发（up/down/reset/status/info/version/verify/
    steps/goto/force）。

# 接入点

  - sceneflow migrate <子命令>：运维命令行。
  - database.auto_migrate：serve 启动时执行 Up 后再 Verify，
    schema 与版本不符时拒绝启动。
  - 工厂函数 NewMigratorFromConfig / NewMigratorFromDatabaseConfig /
    NewMigratorFromURL 从配置或命令行参数构造迁移器。
*/
package migration
