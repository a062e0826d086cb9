// Copyright (c) frogteam Authors.
// Licensed under the MIT License.

/*
Package roster 管理团队成员（Setup）、系统提示词（Prompt）与项目（Project）
三个注册表，以及提示词模板引擎。

# 生命周期

注册表在启动时显式 Load，文件变更时由 Watcher 触发 Reload；编排器在调用时
注入注册表，不依赖进程级单例。

# 模板

提示词使用 ${name} 占位符，仅允许 members、name、file_list、question、
project、caller 六个变量。未知或格式错误的占位符会被拒绝，\${ 表示字面量。

# 领导者选择

SelectLead 返回唯一 purpose 为 lead-architect 的成员；没有或存在多个时返回
*SelectionError（NotFound / Ambiguous），不会默认选择第一个。
*/
package roster
