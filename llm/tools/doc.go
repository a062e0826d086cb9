// Copyright (c) frogteam Authors.
// Licensed under the MIT License.

/*
Package tools 提供工具注册、顺序执行以及工作区文件工具。

# 核心类型

  - Registry  — 按注册顺序保存工具函数与 JSON Schema
  - Executor  — 逐个执行模型请求的工具调用，失败转为文本输出
  - Workspace — 工作区根目录，提供文件读写、代码搜索与文件清单

未注册的工具名返回 UNKNOWN_TOOL 错误，由调用方终止运行；
其余工具失败不会中断循环，输出为 "tool failed: <reason>"。
*/
package tools
