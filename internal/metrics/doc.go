// Copyright (c) frogteam Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP、模型调用、
工具调用、编排状态机、作业队列与速率窗口。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 向量。
    它同时实现 queue.Recorder 与 assignment.Recorder，
    并通过 ObserveWindow 作为 budget.Observer 接收窗口负载。

# 指标

  - HTTP：请求总数与耗时，状态码归类为 2xx/3xx/4xx/5xx。
  - LLM：请求总数、耗时、Token 用量（prompt/completion），按 provider/model 分组。
  - 工具：调用总数与耗时，按 tool/status 分组。
  - 编排：状态转换计数，按 member/from/to 分组。
  - 队列：作业总数与耗时，待处理作业数。
  - 窗口：当前窗口内的请求数与 Token 数。
*/
package metrics
