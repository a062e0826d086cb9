// Copyright (c) frogteam Authors.
// Licensed under the MIT License.

// Package config 提供 frogteam 服务的配置加载。
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量(前缀 FROGTEAM)。
// 工作区内的团队文件(setups.json, prompts.json, projects.json)
// 不属于本包, 由 agent/roster 加载并热重载。
package config
