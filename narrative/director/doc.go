// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package director 是场景调度的编排者。

每一轮它先扫描循环模式，再结合群组状态（戏剧冷却、最近场景、种子预算、
关系张力）构建候选过滤条件，从场景目录取出候选后交给外部选择函数做最终
决定，校验答案并完成角色绑定。任何外部失败都安全降级为"本轮不注入场景"，
并附带机器可读的原因码。
*/
package director
