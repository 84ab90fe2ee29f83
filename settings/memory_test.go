package settings_test

import (
	"context"
	"testing"

	"github.com/zephyrtronium/tilde/settings"
	"github.com/zephyrtronium/tilde/settings/settingstest"
)

func TestMemoryIntegration(t *testing.T) {
	settingstest.Test(context.Background(), t, func(ctx context.Context) settings.Store {
		return settings.NewMemory()
	})
}
