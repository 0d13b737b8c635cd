package performance

import "time"

type Service struct {
	store StoreAPI
	now   func() time.Time
}

type Option func(*Service)

// WithClock overrides the clock that defines "today" for submissions and trend windows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(store StoreAPI, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) today() time.Time {
	return dateOnly(s.now())
}
