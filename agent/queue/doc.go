// Copyright (c) frogteam Authors.
// Licensed under the MIT License.

/*
Package queue 实现成员作业队列: 有界 FIFO, 单个 worker 串行执行.

每个作业分为两部分:
  - JobSpec: 可序列化, 写入快照存储 (queue-backup.json)
  - RuntimeContext: 历史账本、成员/提示词/项目注册表、模型与工具工厂, 从不序列化

worker 在出队前轮询 budget.MetricsWindow, 在 RPM/TPM 低于上限之前整个队列暂停.
作业完成后按 token 估算记录用量. 激活作业时若待处理数超过阈值, 写快照;
Restore 在启动时读回快照并重新提交.
*/
package queue
