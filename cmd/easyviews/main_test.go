package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/djlord-it/easy-views/internal/api"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()
	want := []string{"serve", "pruner", "prune", "count", "token", "validate", "config", "version"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered (err=%v)", name, err)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "easyviews version dev") {
		t.Errorf("output = %q", out.String())
	}
}

func TestValidateCommand_InvalidConfigExitCode(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "oracle")

	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"validate"})

	err := root.Execute()
	var ee *exitError
	if !errors.As(err, &ee) || ee.code != exitInvalidConfig {
		t.Fatalf("err = %v, want exitError with code %d", err, exitInvalidConfig)
	}
}

func TestMintAdminToken(t *testing.T) {
	key := []byte("k")
	now := time.Now()

	signed, err := mintAdminToken(key, now, time.Hour)
	if err != nil {
		t.Fatalf("mintAdminToken: %v", err)
	}

	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(signed, &claims, func(token *jwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != api.AdminAudience {
		t.Errorf("audience = %v", claims.Audience)
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Sub(now) > time.Hour+time.Second {
		t.Errorf("expires = %v", claims.ExpiresAt)
	}
}
