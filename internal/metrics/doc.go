// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP、选场、
选场器（LLM）与数据库四个维度。

# 核心类型

  - Collector：持有独立 Registry 的指标收集器，同时实现
    engine.Observer，由选场引擎直接回调。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 选场指标：按原因统计的决策数与耗时、循环模式检测、
    种子状态转换、场景完成/取消、后果失败与目录重新加载。
  - 选场器指标：请求数、耗时与 prompt/completion token 用量。
  - 数据库指标：打开、空闲与使用中的连接数。
  - Handler 暴露 /metrics，包含 Go 运行时与进程指标。
*/
package metrics
