// Copyright (c) frogteam Authors.
// Licensed under the MIT License.

/*
Package assignment 驱动一次成员任务: 系统提示词 → 模型 → 工具循环 → 总结.

# 状态机

	Init → AwaitingModel → (ToolsPending → ExecutingTools → AwaitingModel)* → Summarizing → Done
	任意状态出错 → Errored

每一步都写入历史账本:
  - 首次响应: MemberTask (lead 为 ProjectDescription), 其 id 作为本次运行的父条目
  - 每个工具调用: ToolOutput
  - 总结: MemberResponse (lead 为 ProjectResponse)
  - 错误: Error

工具失败不会终止运行, 失败原因以 "tool failed: <reason>" 返回给模型;
未知工具和模型调用失败是致命的. 工具循环在 MaxDuration (默认 120s) 后结束.
*/
package assignment
