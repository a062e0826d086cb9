// Copyright (c) frogteam Authors.
// Licensed under the MIT License.

/*
包 migration 管理 history_entries 表的 Schema 版本。

当历史账本使用 database 存储时, GormStore 默认依赖 AutoMigrate 建表;
生产环境可以关闭 auto_migrate, 改为由 `frogteam migrate up` 执行本包内嵌
的版本化 SQL。两种方式生成的表结构与索引名一致, 可以交替使用。

支持 postgres、mysql 与 sqlite 三种方言, 迁移文件位于 migrations/<dialect>/
并通过 embed.FS 打包进二进制。CLI 类型把 Migrator 的结果格式化输出到终端。
*/
package migration
