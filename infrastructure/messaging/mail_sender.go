package messaging

import (
	"context"
	"fmt"
	"time"

	"recordhub/domain/shared"
	"recordhub/domain/user"
	"recordhub/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Message 一封待发送的邮件
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers one message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// maxThrottleDelay 超过这个等待时间的邮件直接判为失败，由 redelivery worker 补发
const maxThrottleDelay = 100 * time.Millisecond

// MailSender 把验证码和用户事件渲染成邮件，按速率限制发送
type MailSender struct {
	mailer  Mailer
	limiter *rate.Limiter
	kind    shared.EventKind
	log     *zap.Logger
}

// NewMailSender perSecond <= 0 disables throttling.
func NewMailSender(mailer Mailer, perSecond float64, burst int, kind shared.EventKind, log *zap.Logger) *MailSender {
	if log == nil {
		log = logger.Get()
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &MailSender{
		mailer:  mailer,
		limiter: rate.NewLimiter(limit, burst),
		kind:    kind,
		log:     log.Named("mail"),
	}
}

// ForKind returns a sender sharing the same mailer and limiter.
func (s *MailSender) ForKind(kind shared.EventKind) *MailSender {
	cp := *s
	cp.kind = kind
	return &cp
}

func (s *MailSender) Send(ctx context.Context, agg shared.AggregateRoot) bool {
	log := logger.WithRequestIDFrom(s.log, ctx)
	msg, err := render(agg, s.kind)
	if err != nil {
		log.Warn("Cannot render mail", zap.String("aggregate_id", agg.ID()), zap.Error(err))
		return false
	}
	if err := s.throttle(ctx); err != nil {
		log.Warn("Mail throttled", zap.String("to", msg.To), zap.Error(err))
		return false
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		log.Error("Failed to send mail",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
		return false
	}
	log.Debug("Mail sent", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return true
}

// throttle 只等待很短的时间；提交后的发送在 WithoutCancel 的 ctx 上，不能阻塞调用方
func (s *MailSender) throttle(ctx context.Context) error {
	r := s.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("mail rate limit burst exceeded")
	}
	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	if delay > maxThrottleDelay {
		r.Cancel()
		return fmt.Errorf("mail rate limit exceeded, next slot in %s", delay.Round(time.Millisecond))
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

func render(agg shared.AggregateRoot, kind shared.EventKind) (Message, error) {
	switch a := agg.(type) {
	case *user.AuthCode:
		if kind != shared.EventCreated {
			return Message{}, fmt.Errorf("no mail for %s %s", a.AggregateType(), kind)
		}
		minutes := int(time.Until(a.ExpiredAt()).Round(time.Minute) / time.Minute)
		if minutes < 1 {
			minutes = 1
		}
		return Message{
			To:      a.Email().Value(),
			Subject: "Your verification code",
			Body: fmt.Sprintf("Your verification code is %s.\r\nIt expires in %d minute(s), at %s UTC.\r\n",
				a.Code(), minutes, a.ExpiredAt().UTC().Format("2006-01-02 15:04:05")),
		}, nil
	case *user.User:
		subject := "Welcome to RecordHub"
		body := fmt.Sprintf("Hello %s,\r\nyour account has been created and is currently %s.\r\n", name(a), a.Status())
		if kind == shared.EventUpdated {
			subject = "Your account was updated"
			body = fmt.Sprintf("Hello %s,\r\nyour account is now %s.\r\n", name(a), a.Status())
		}
		return Message{To: a.Email().Value(), Subject: subject, Body: body}, nil
	default:
		return Message{}, fmt.Errorf("no mail template for %s", agg.AggregateType())
	}
}

func name(u *user.User) string {
	if u.Username() != "" {
		return u.Username()
	}
	return u.Email().Value()
}

var _ shared.EventSender = (*MailSender)(nil)
