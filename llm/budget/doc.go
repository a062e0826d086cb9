// Copyright (c) frogteam Authors.
// Licensed under the MIT License.

/*
Package budget 提供基于滑动窗口的请求/Token 准入控制。

MetricsWindow 记录每次处理完成的时间戳与 Token 数，读取时惰性剪除
窗口外的样本。当窗口内请求数小于 MaxRPM 且 Token 总和小于 MaxTPM 时
允许准入新作业。时钟可注入，便于测试。
*/
package budget
