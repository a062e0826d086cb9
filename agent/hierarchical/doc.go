// Copyright (c) frogteam Authors.
// Licensed under the MIT License.

// Package hierarchical 提供 lead-architect 到成员的两级任务委派。
//
// Coordinator 选出唯一的 lead-architect，以 lead 身份运行编排器，
// 并通过 getQueueMemberAssignmentApi 工具把子任务作为 member-assignment
// 作业提交到队列，等待结果后交还给 lead 的模型。lead 本身不占用队列的
// 单一 worker。
package hierarchical
