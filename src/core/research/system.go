package research

import (
	"context"
	"sort"
)

type systemService struct {
	components map[string]Pinger
}

// NewSystemService reports the health of the named components.
func NewSystemService(components map[string]Pinger) SystemService {
	return &systemService{
		components: components,
	}
}

func (s *systemService) CheckHealth(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{
		Status:     "healthy",
		Components: make(map[string]ComponentStatus, len(s.components)),
	}

	names := make([]string, 0, len(s.components))
	for name := range s.components {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		status.Components[name] = StatusUp
		if err := s.components[name].Ping(ctx); err != nil {
			status.Components[name] = StatusDown
			// If any component is down, mark system as unhealthy
			status.Status = "unhealthy"
		}
	}

	return status, nil
}

// PingFunc adapts a function to the Pinger interface.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}
