// Copyright (c) frogteam Authors.
// Licensed under the MIT License.

// Package server 管理 HTTP 监听器的生命周期。API 服务和独立的 /metrics
// 服务各自持有一个 Manager, 由 cmd/frogteam 通过 errgroup 统一启停。
package server
