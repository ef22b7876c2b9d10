package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Open builds a driver for the given URI, verifies connectivity, opens
// a session, and wraps it in a Store with its uniqueness constraints in
// place. The returned closer releases the session and the driver.
func Open(ctx context.Context, uri, username, password string, opts ...Option) (*Store, func(context.Context) error, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, nil, fmt.Errorf("neo4j connectivity: %w", err)
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{})
	s := New(session, opts...)
	closer := func(ctx context.Context) error {
		err := session.Close(ctx)
		if driverErr := driver.Close(ctx); err == nil {
			err = driverErr
		}
		return err
	}

	if err := s.EnsureConstraints(ctx); err != nil {
		_ = closer(ctx)
		return nil, nil, err
	}
	return s, closer, nil
}
