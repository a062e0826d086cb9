// Copyright (c) frogteam Authors.
// Licensed under the MIT License.

/*
Package main 提供 frogteam 服务端程序入口。

# 概述

cmd/frogteam 把团队编排核心组装成一个可执行程序: 历史账本、速率窗口、
作业队列、任务编排器与 lead-architect 委派协调器, 并通过 HTTP API 暴露。

# 子命令

  - serve: 启动 API 与 Metrics 服务, 监听团队文件变化, 收到信号后排空队列
  - migrate: 历史数据库迁移 (up/down/steps/goto/force/version/status/info)
  - history: 在终端中渲染历史账本, markdown 回答经 glamour 渲染
  - version, health

# 中间件链

Recovery、RequestID、SecurityHeaders、RequestLogger、OTelTracing、
Metrics、RateLimiter (基于 IP)、JWTAuth (配置了密钥时启用)。
*/
package main
