// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 relation 维护群组内 AI 之间的成对关系状态（亲密度与张力）。

# 概述

一对 AI 的关系以 (群组, 较小 ID, 较大 ID) 规范化存储，(A,B) 与 (B,A)
永远指向同一条记录。关系在首次交互时惰性创建，永不删除。

# 不变量

  - 亲密度限制在 [-10, 10]，张力限制在 [0, 1]。
  - 关系类型每次更新时都由亲密度完整重新计算（≥7 friends，≥4 allies，
    ≤-7 rivals，≤-4 tense，其余 neutral），不会与亲密度失去同步。
  - 动态标签的增删是幂等的；共享时刻只保留最近 10 条。
  - 张力衰减由外部周期任务调用 DecayTension 触发，本包不启动后台协程。
*/
package relation
