package util

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	snowflakeNode *snowflake.Node
	snowflakeMu   sync.Mutex
)

// InitSnowflake 以指定节点号初始化 ID 生成器，多实例部署时节点号必须唯一。
func InitSnowflake(nodeID int64) error {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return err
	}
	snowflakeMu.Lock()
	snowflakeNode = node
	snowflakeMu.Unlock()
	return nil
}

// NextID 生成单调递增的 int64 ID，未初始化时使用节点 1。
func NextID() int64 {
	snowflakeMu.Lock()
	if snowflakeNode == nil {
		snowflakeNode, _ = snowflake.NewNode(1)
	}
	node := snowflakeNode
	snowflakeMu.Unlock()
	return node.Generate().Int64()
}
