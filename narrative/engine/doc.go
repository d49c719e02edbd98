// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package engine 是每个群组的回合驱动器。

群组是串行化的单位：Engine 为每个群组持有一把互斥锁，保证同一群组的
决策周期、种子推进与状态写入不会交错。HandleTurn 推进种子并在无场景运行时
请求 Director 选择场景；CompleteStep 推进步骤并在最后一步应用后果、
更新使用统计与执行历史；CancelScene 放弃当前场景。DecayTension 与
CleanupSeeds 供外部定时调用。
*/
package engine
