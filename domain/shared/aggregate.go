package shared

// AggregateRoot 聚合根接口
// 聚合根是一致性边界的入口，拥有全局唯一且创建后不可变的标识。
// 版本号、时间戳等簿记字段由持久化适配器维护，不属于该接口。
type AggregateRoot interface {
	// ID 返回聚合根的全局唯一标识
	ID() string

	// AggregateType 返回聚合类型名（如 "user", "file"），用于事件路由
	AggregateType() string
}

// Snapshotter is implemented by aggregates that can describe their public
// state for event payloads. Secrets (password hashes, raw codes) stay out.
type Snapshotter interface {
	Snapshot() map[string]any
}

// SameIdentity reports whether two aggregates denote the same record.
// Equality is identity-based so aggregates can be mutated in place while
// held in maps or slices.
func SameIdentity(a, b AggregateRoot) bool {
	if a == nil || b == nil {
		return false
	}
	return a.AggregateType() == b.AggregateType() && a.ID() == b.ID()
}

// Entity 实体接口
// 通过标识判断相等性（即使属性相同，ID不同就是不同的实体）
type Entity interface {
	ID() string
}
