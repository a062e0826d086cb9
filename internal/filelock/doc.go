// Copyright (c) frogteam Authors.
// Licensed under the MIT License.

/*
Package filelock 提供基于 flock 的进程间文件锁。

读操作持有共享锁，写操作持有排他锁。锁竞争时按指数退避重试，
超过最大等待时间后返回 ErrLockTimeout。锁在回调返回后总会释放。
*/
package filelock
