// Copyright (c) frogteam Authors.
// Licensed under the MIT License.

/*
Package types 提供 frogteam 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 llm、agent、api 等上层
模块提供统一的错误契约，以避免循环依赖。

# 核心类型

  - Error / ErrorCode — 结构化错误，含 HTTP 状态码、Retryable 标记与 Cause
  - NoProject         — 未关联项目时使用的哨兵项目名

# 错误分类

  - ErrConfigurationMissing  — 缺少匹配的 prompt/setup，跳过并通知，非致命
  - ErrToolInvocationFailure — 单次工具调用失败，记录后循环继续
  - ErrModelInvocationFailure — 模型调用失败，运行中止
  - ErrQueueFull             — 队列已满，提交立即被拒绝
  - ErrUnknownTool           — 模型请求了未注册的工具，运行中止
*/
package types
