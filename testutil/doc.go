// Copyright (c) frogteam Authors.
// Licensed under the MIT License.

/*
Package testutil 提供 frogteam 测试共享的辅助函数.

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout, 自动注册 Cleanup
  - 异步断言: AssertEventuallyTrue / WaitFor / WaitForChannel
  - 数据工具: MustJSON

# 子包

  - testutil/mocks: MockProvider, 按脚本逐轮返回模型响应, 记录每次请求
  - testutil/fixtures: 预置成员 (setups)、提示词与模型响应样例

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewMockProvider().WithScript(
		mocks.ToolCallStep(mocks.ToolCall("call_1", "saveContentToFileApi", map[string]string{"fileName": "a.txt", "content": "hi"})),
		mocks.TextStep("done"),
	)
*/
package testutil
