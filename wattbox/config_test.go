package wattbox_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/bballdavis/wattbox-go/wattbox"
)

func TestConfigBuilder(t *testing.T) {
	t.Run("Dialer is required", func(t *testing.T) {
		_, err := wattbox.NewConfigBuilder().Build()
		if !errors.Is(err, wattbox.ErrNoDialer) {
			t.Errorf("expected ErrNoDialer, got: %v", err)
		}
	})

	t.Run("Full configuration builds", func(t *testing.T) {
		tt := wattbox.NewTestTransport()
		defer tt.Close()

		_, err := wattbox.NewConfigBuilder().
			WithDialer(tt.Dialer()).
			WithCredentials("admin", "secret").
			WithCommandTimeout(5 * time.Second).
			WithLoginTimeout(20 * time.Second).
			WithUsernamePrompts("login:").
			WithPasswordPrompts("password:").
			WithEventBuffer(32).
			WithLogger(slog.Default()).
			Build()
		if err != nil {
			t.Errorf("unexpected error from Build(): %v", err)
		}
	})

	t.Run("Dialer alone suffices", func(t *testing.T) {
		tt := wattbox.NewTestTransport()
		defer tt.Close()

		if _, err := wattbox.NewConfigBuilder().WithDialer(tt.Dialer()).Build(); err != nil {
			t.Errorf("unexpected error from Build(): %v", err)
		}
	})
}
