package scheduler

import "github.com/samber/do/v2"

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(_ do.Injector) (*Scheduler, error) {
		return New(), nil
	})
}
