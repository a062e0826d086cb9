// 版权所有 2024 frogteam Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供统一的大语言模型接入层：Provider 抽象、消息与工具调用类型。

# 概述

成员（member）绑定到具体模型，编排器只依赖 [Provider] 接口，
从而可以在测试中注入脚本化的模型，而在运行时使用 OpenAI 兼容协议的
HTTP 实现（见 llm/providers/openaicompat 与 llm/factory）。

# 核心类型

  - [Provider]：Completion / HealthCheck / Name / SupportsNativeFunctionCalling
  - [ChatRequest] / [ChatResponse]：请求与响应模型
  - [Message] / [ToolCall] / [ToolSchema]：对话消息与工具调用
  - [Error]：带 HTTP 状态与重试标记的 Provider 错误
*/
package llm
