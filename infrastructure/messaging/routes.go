package messaging

import (
	"fmt"
	"sort"

	"recordhub/config"
	"recordhub/domain/file"
	"recordhub/domain/shared"
	"recordhub/domain/user"

	"go.uber.org/zap"
)

// AggregateTypes every aggregate type that emits events
var AggregateTypes = []string{user.EntityName, user.AuthCodeEntityName, file.EntityName}

// SenderDeps 构建路由所需的外部依赖；未启用的留空
type SenderDeps struct {
	Log   *zap.Logger
	Mail  *MailSender
	Queue ListPusher
}

// BuildRouter 按配置注册每个 (聚合类型, 事件类型) 的发送端
// 配置里缺失的路由使用 log。
func BuildRouter(cfg config.EventsConfig, deps SenderDeps) (*shared.EventRouter, error) {
	router := shared.NewEventRouter()

	types := append([]string(nil), AggregateTypes...)
	for aggregate := range cfg.Routes {
		if !contains(types, aggregate) {
			types = append(types, aggregate)
		}
	}
	sort.Strings(types)

	for _, aggregate := range types {
		route := cfg.Routes[aggregate]
		for kind, variant := range map[shared.EventKind]string{
			shared.EventCreated: route.Created,
			shared.EventUpdated: route.Updated,
		} {
			sender, err := newSender(variant, kind, cfg, deps)
			if err != nil {
				return nil, fmt.Errorf("route %s.%s: %w", aggregate, kind, err)
			}
			router.Register(aggregate, kind, sender)
		}
	}
	return router, nil
}

func newSender(variant string, kind shared.EventKind, cfg config.EventsConfig, deps SenderDeps) (shared.EventSender, error) {
	switch variant {
	case "", VariantLog:
		return NewLogSender(deps.Log, kind), nil
	case VariantNoop:
		return NoOpSender{}, nil
	case VariantMail:
		if deps.Mail == nil {
			return nil, fmt.Errorf("mail sender is not configured")
		}
		return deps.Mail.ForKind(kind), nil
	case VariantQueue:
		if deps.Queue == nil {
			return nil, fmt.Errorf("queue sender is not configured")
		}
		return NewQueueSender(deps.Queue, cfg, kind, deps.Log), nil
	default:
		return nil, fmt.Errorf("unknown sender %q", variant)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
