// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 testutil 提供 SceneFlow 测试的共享工具和辅助函数。

# 概述

testutil 包为整个项目的单元测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext，自动注册 Cleanup 防止泄漏
  - 断言工具: AssertSceneCodes / AssertErrorCode
  - 数据工具: SceneCodes

# 子包

  - testutil/mocks: MockChooser（director.Chooser，支持固定答案、
    首个候选、自定义函数、延迟、错误与 panic 注入，并记录请求）
    与 MockObserver（engine.Observer）
  - testutil/fixtures: 测试数据工厂，提供预置角色名单、对话窗口、
    场景目录与 YAML 创作文件样例

# 使用示例

	ctx := testutil.TestContext(t)
	chooser := mocks.NewMockChooser().WithFirstCandidate()
	code, err := chooser.ChooseScene(ctx, director.Request{Candidates: fixtures.Catalog()})
*/
package testutil
