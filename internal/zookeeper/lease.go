package zookeeper

import (
	"fmt"

	"github.com/go-zookeeper/zk"
)

const (
	leaseRoot = "/automation_leases" // 所有自动化租约的根节点
)

// PassLease 是自动化批处理的进程级租约。
// 定时触发器在发起一趟 pass 前必须先拿到租约，
// 保证同一时刻整个集群最多只有一趟 pass 在跑；
// 租约节点是临时节点，持有者崩溃后会话过期自动释放。
type PassLease struct {
	conn      *Conn
	path      string // 租约节点路径，例如 /automation_leases/order-pass
	holderTag string // 写入节点的数据，便于排查是谁持有
	held      bool
}

// NewPassLease 创建一个命名租约实例
func NewPassLease(conn *Conn, name, holderTag string) *PassLease {
	// 确保根节点存在。在生产环境中，这个操作通常由初始化脚本完成。
	if exists, _, err := conn.Exists(leaseRoot); err == nil && !exists {
		_, createErr := conn.Create(leaseRoot, []byte(""), 0, zk.WorldACL(zk.PermAll))
		if createErr != nil && createErr != zk.ErrNodeExists {
			panic(fmt.Sprintf("Failed to create lease root node: %v", createErr))
		}
	}

	return &PassLease{
		conn:      conn,
		path:      leaseRoot + "/" + name,
		holderTag: holderTag,
	}
}

// TryAcquire 非阻塞地尝试获取租约。
// 返回 false 表示别的实例正持有租约，这一趟应该直接放弃而不是排队：
// 排队等一个批处理锁只会让错过的 tick 挤在一起重复跑。
func (l *PassLease) TryAcquire() (bool, error) {
	_, err := l.conn.Create(l.path, []byte(l.holderTag), zk.FlagEphemeral, zk.WorldACL(zk.PermAll))
	if err == zk.ErrNodeExists {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create lease node: %w", err)
	}
	l.held = true
	return true, nil
}

// Release 释放租约。幂等：重复释放或未持有时直接返回。
func (l *PassLease) Release() error {
	if !l.held {
		return nil
	}
	err := l.conn.Delete(l.path, -1)
	if err != nil && err != zk.ErrNoNode {
		return fmt.Errorf("failed to delete lease node: %w", err)
	}
	l.held = false
	return nil
}
