// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 loop 在近期消息窗口中检测对话循环（重复模式）。

# 概述

Detector 只扫描 AI 发出的消息（至少 3 条），六个相互独立的检测器各自拥有
短语表或阈值：附和、恭维、道歉（子串匹配）、过多提问（问句占比 ≥ 70%
的消息才计数）、话题重复（去停用词后的关键词频次）、主角霸屏
（某个发言者的消息数超过人均两倍）。

每个命中产生一个 Pattern。CorrectiveAction 将模式映射到固定的纠正表
（建议类别、纠正指令、优先级 1-10）；MonotonyScore 将所有命中的归一化
超出量取平均，得到 0-1 的单调度信号。
*/
package loop
