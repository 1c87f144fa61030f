//go:build integration

package freeze

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"dividend/pkg/testutil/containers"
)

func TestRedisGuardSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	suite.Run(t, &GuardSuite{newGuard: func() Guard {
		_ = rc.FlushAll(context.Background())
		return NewRedisGuard(rc.Client.Client)
	}})
}
