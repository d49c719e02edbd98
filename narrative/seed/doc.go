// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 seed 实现张力种子（Tension Seed）的有界状态机。

# 概述

张力种子是群组中尚未解决的叙事线索，由场景后果或显式触发创建，
每个群组回合推进一次，最终通过解决、强制过期或定期清理结束。

# 状态流转

	LATENT → ACTIVE → ESCALATING → RESOLVING → RESOLVED | EXPIRED

  - currentTurn ≥ latencyTurns 时 LATENT 变为 ACTIVE。
  - currentTurn ≥ 0.7 × maxTurns 时进入 ESCALATING（升级等级 +1，最高 3），
    与先前状态无关。
  - currentTurn ≥ maxTurns 时强制 EXPIRED。
  - RESOLVED 与 EXPIRED 为终态，不可再变更。

# 预算

每个群组同时最多持有 5 个非终态种子，超出时 Create 返回 ErrBudgetExhausted
且不写入任何记录。回合推进与过期清理由外部调用方驱动，本包不启动后台协程。
*/
package seed
