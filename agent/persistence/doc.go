// Copyright (c) frogteam Authors.
// Licensed under the MIT License.

/*
Package persistence 保存作业队列的快照, 以便进程重启后恢复待处理作业.

队列只持久化 JobSpec (可序列化部分); 运行时依赖在恢复时由队列重新挂载.

支持的后端:
  - Memory: 开发和测试 (默认)
  - File: 单节点部署, 写入 queue-backup.json (原子替换 + 文件锁)
  - Redis: 多实例共享快照
*/
package persistence
