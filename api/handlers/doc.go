// Copyright (c) frogteam Authors.
// Licensed under the MIT License.

/*
包 handlers 提供 frogteam HTTP API 的处理器。

# 路由

  - AssignmentHandler: POST /api/v1/assignments 向成员提交任务并阻塞到结果返回;
    GET/POST /api/v1/projects 列出项目或交给 lead-architect 运行;
    POST /api/v1/projects/register 注册项目。
  - HistoryHandler: /api/v1/history 下的查询接口、按日期/项目分组、
    /api/v1/conversations/{id} 以及基于 websocket 的 /api/v1/history/stream。
  - QueueHandler: GET /api/v1/queue/metrics 返回准入窗口与队列统计。
  - RosterHandler: GET /api/v1/roster 与 POST /api/v1/roster/reload。
  - HealthHandler: /health、/healthz、/ready、/version。

所有 JSON 响应使用统一的 Response 包装, 错误通过 WriteError 从 types.Error
映射到 HTTP 状态码。
*/
package handlers
