// Copyright (c) frogteam Authors.
// Licensed under the MIT License.

/*
Package history 实现对话历史账本（History Ledger）。

# 概述

账本是只追加的日志：每条 Entry 写入一次且不再修改。Entry 通过
ConversationID 归属到一次编排运行，通过 ParentID 指向派生它的条目。
父条目从不直接引用子条目，子条目列表由索引重建。

# 核心类型

  - Entry / LookupTag — 历史条目及其在线程中的角色
  - Ledger            — 内存日志、按 ID/父 ID/会话 ID 建立的索引、订阅者
  - Store             — 持久化后端（文件、GORM、Redis、内存）

# 读侧投影

  - BuildConversationThreads — 按 MemberResponse 在前、ProjectResponse
    在后的顺序重建 {Human, AI} 对，用于后续任务的上下文回放
  - GroupByDate / GroupByProject — 按日期或项目分组
  - FetchLatestResponse — 某目录或项目下最近的一条响应
*/
package history
