// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package roles 将场景声明的角色贪心地分配给群组中的 AI。

每个 (AI, 角色) 组合按五个因素打分：主角轮换、近期参与度、
人格特质契合度、与主角的关系以及最近消息中的点名。角色按声明顺序
依次绑定，同分时取名单中靠前者。
*/
package roles
