// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 为 SceneFlow 的 SQL 叙事存储（persistence/sqlstore）打开
GORM 连接并管理连接池。

# 方言

Open 按 database.driver 选择方言：postgres、mysql 或纯 Go 的
glebarez/sqlite（无需 cgo）。GORM 日志经 zap 输出，时间统一为 UTC。
sqlite 只保留一个连接，写操作由数据库自身串行化。

# 连接池

PoolManager 持有 GORM DB 与底层 sql.DB：

  - DB() / SQLDB() / Dialect()：供场景、种子、关系与群组状态存储使用
  - Ping()：注册为 /ready 的 database 就绪检查
  - Stats()：cmd/sceneflow 每 15 秒采样一次，写入
    db_connections_{open,idle,in_use} 指标
  - 后台健康检查按 PoolConfig.HealthCheckInterval 探活并记录日志

# 事务

  - WithTransaction：种子 Create/Save 在同一事务内先检查 id 是否存在，
    再插入或覆盖，避免重复创建与更新不存在的行。
  - WithTransactionRetry：场景使用统计（IncrementUsage）先以
    SELECT ... FOR UPDATE 锁住场景行，再写回滑动平均；死锁、序列化
    失败等可重试错误按指数退避重试。sqlite 不支持行锁，跳过 FOR UPDATE。
  - IsRetryableError 判断驱动错误是否值得重试。
*/
package database
