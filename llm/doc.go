// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供由大模型驱动的场景选择器（director.Chooser 实现）。

# 概述

Director 完成确定性筛选后，把候选场景交给外部决策函数做最终选择。
本包通过 OpenAI 兼容的 Chat Completions 接口（sashabaranov/go-openai）
实现该决策函数，也可指向任意兼容端点（自建网关、本地模型服务）。

# 核心组件

  - PromptBuilder: 渲染角色名单、最近对话、循环纠正提示与候选列表；
    按 Token 预算从最旧的消息开始裁剪，名单与候选永不裁剪
  - ParseChoice: 宽松解析模型答复，接受裸代码、带引号/反引号的代码、
    JSON 对象 {"scene": "..."}，以及 none
  - Chooser: 单次请求，不重试；截止时间由调用方（Director）控制；
    x/time/rate 限流；OpenTelemetry span 与 Prometheus 指标
  - FirstCandidate: 离线选择器，总是选择排名第一的候选

# 错误码

  - CHOOSER_TIMEOUT: 截止时间到达
  - CHOOSER_FAILED: 传输或接口错误（429 与 5xx 标记为可重试）
  - CHOOSER_OUTPUT: 答复无法解析为场景代码

# 子包

  - llm/tokenizer: tiktoken 计数，编码数据不可用时回退到估算器
*/
package llm
