// Copyright (c) frogteam Authors.
// Licensed under the MIT License.

// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 frogteam 提供 TracerProvider、MeterProvider 以及队列与速率窗口的可观测指标。
// 当遥测功能禁用时，使用 noop 实现，不连接任何外部服务。
package telemetry
