package memory

import (
	"recordhub/domain/file"
	"recordhub/domain/shared"
	"recordhub/domain/user"
)

// FactoryConfig Opener 通常是 *Store，也可以是包装它的装饰器
type FactoryConfig struct {
	Opener        shared.SessionOpener
	Dispatcher    shared.EventDispatcher
	QueueCapacity int
	Options       []shared.FactoryOption
}

func NewUserFactory(c FactoryConfig) *shared.Factory[user.Repos] {
	return shared.NewFactory[user.Repos](c.Opener, c.Dispatcher, func(s shared.Session) (user.Repos, []shared.EventSource, error) {
		ms, err := sessionOf(s)
		if err != nil {
			return user.Repos{}, nil, err
		}
		users := NewUserRepository(ms, c.QueueCapacity)
		files := NewFileRepository(ms, c.QueueCapacity)
		return user.Repos{Users: users, Files: files}, []shared.EventSource{users, files}, nil
	}, c.Options...)
}

func NewAuthCodeFactory(c FactoryConfig) *shared.Factory[user.AuthCodeRepos] {
	return shared.NewFactory[user.AuthCodeRepos](c.Opener, c.Dispatcher, func(s shared.Session) (user.AuthCodeRepos, []shared.EventSource, error) {
		ms, err := sessionOf(s)
		if err != nil {
			return user.AuthCodeRepos{}, nil, err
		}
		codes := NewAuthCodeRepository(ms, c.QueueCapacity)
		return user.AuthCodeRepos{AuthCodes: codes}, []shared.EventSource{codes}, nil
	}, c.Options...)
}

func NewFileFactory(c FactoryConfig) *shared.Factory[file.Repos] {
	return shared.NewFactory[file.Repos](c.Opener, c.Dispatcher, func(s shared.Session) (file.Repos, []shared.EventSource, error) {
		ms, err := sessionOf(s)
		if err != nil {
			return file.Repos{}, nil, err
		}
		files := NewFileRepository(ms, c.QueueCapacity)
		return file.Repos{Files: files}, []shared.EventSource{files}, nil
	}, c.Options...)
}
