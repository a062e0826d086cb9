// Copyright (c) frogteam Authors.
// Licensed under the MIT License.

/*
包 database 打开历史账本使用的关系型数据库并管理连接池。

Open 根据 config.DatabaseConfig.Driver 选择 GORM 方言:

  - postgres: gorm.io/driver/postgres
  - mysql: gorm.io/driver/mysql
  - sqlite: github.com/glebarez/sqlite, 纯 Go 实现, 默认选项
  - sqlite3: gorm.io/driver/sqlite, 依赖 cgo

PoolManager 负责连接池参数、后台健康检查与统计信息, 健康检查结果
同时供 /health 接口使用。
*/
package database
