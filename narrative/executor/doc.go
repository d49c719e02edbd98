// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package executor 将选中的场景解析为逐步执行计划，并在场景结束后应用其后果。

计划只是描述性的：每一步给出发言 AI、已替换 {{ROLE}} 变量的指令、
目标 AI、延迟与语气，实际生成由调用方驱动。后果按顺序应用：
先创建张力种子，再更新关系，最后分派临时效果；单条记录失败只记录日志，
不会中断整批处理。
*/
package executor
