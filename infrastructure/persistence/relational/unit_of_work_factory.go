package relational

import (
	"recordhub/domain/file"
	"recordhub/domain/shared"
	"recordhub/domain/user"
)

// FactoryConfig 三个 Unit of Work 工厂的公共参数
type FactoryConfig struct {
	Opener        shared.SessionOpener
	Dispatcher    shared.EventDispatcher
	QueueCapacity int
	Options       []shared.FactoryOption
}

// NewUserFactory binds users then files; that is also the drain order.
func NewUserFactory(c FactoryConfig) *shared.Factory[user.Repos] {
	return shared.NewFactory[user.Repos](c.Opener, c.Dispatcher, func(s shared.Session) (user.Repos, []shared.EventSource, error) {
		rs, err := sessionOf(s)
		if err != nil {
			return user.Repos{}, nil, err
		}
		users := NewUserRepository(rs, c.QueueCapacity)
		files := NewFileRepository(rs, c.QueueCapacity)
		return user.Repos{Users: users, Files: files}, []shared.EventSource{users, files}, nil
	}, c.Options...)
}

func NewAuthCodeFactory(c FactoryConfig) *shared.Factory[user.AuthCodeRepos] {
	return shared.NewFactory[user.AuthCodeRepos](c.Opener, c.Dispatcher, func(s shared.Session) (user.AuthCodeRepos, []shared.EventSource, error) {
		rs, err := sessionOf(s)
		if err != nil {
			return user.AuthCodeRepos{}, nil, err
		}
		codes := NewAuthCodeRepository(rs, c.QueueCapacity)
		return user.AuthCodeRepos{AuthCodes: codes}, []shared.EventSource{codes}, nil
	}, c.Options...)
}

func NewFileFactory(c FactoryConfig) *shared.Factory[file.Repos] {
	return shared.NewFactory[file.Repos](c.Opener, c.Dispatcher, func(s shared.Session) (file.Repos, []shared.EventSource, error) {
		rs, err := sessionOf(s)
		if err != nil {
			return file.Repos{}, nil, err
		}
		files := NewFileRepository(rs, c.QueueCapacity)
		return file.Repos{Files: files}, []shared.EventSource{files}, nil
	}, c.Options...)
}
