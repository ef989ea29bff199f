// Package dbtest starts a throwaway Postgres container for integration tests
// and hands out freshly migrated databases.
package dbtest

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lmshub/coursepay/config"
	"github.com/lmshub/coursepay/database"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
)

const (
	user     = "postgres"
	password = "postgres"
)

var host string

// Main wraps testing.M: it starts the container, runs the tests and purges
// the container afterwards. Use it from TestMain.
func Main(m *testing.M) int {
	pool, err := dockertest.NewPool("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "connecting to docker: %v\n", err)
		return 1
	}
	pool.MaxWait = 2 * time.Minute

	opts := dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "15-alpine",
		Env: []string{
			"POSTGRES_USER=" + user,
			"POSTGRES_PASSWORD=" + password,
			"POSTGRES_DB=postgres",
		},
	}

	resource, err := pool.RunWithOptions(&opts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "starting postgres: %v\n", err)
		return 1
	}
	_ = resource.Expire(600)

	host = resource.GetHostPort("5432/tcp")

	err = pool.Retry(func() error {
		db, err := database.Open(cfg("postgres"))
		if err != nil {
			return err
		}
		defer db.Close()
		return database.StatusCheck(context.Background(), db)
	})
	if err != nil {
		pool.Purge(resource)
		fmt.Fprintf(os.Stderr, "waiting for postgres: %v\n", err)
		return 1
	}

	code := m.Run()

	if err := pool.Purge(resource); err != nil {
		fmt.Fprintf(os.Stderr, "purging postgres: %v\n", err)
	}
	return code
}

// NewDatabase creates the database name, migrates it and drops it when the
// test finishes.
func NewDatabase(t *testing.T, name string) *sqlx.DB {
	t.Helper()

	if host == "" {
		t.Fatal("dbtest.Main was not called from TestMain")
	}

	admin, err := database.Open(cfg("postgres"))
	if err != nil {
		t.Fatalf("opening admin connection: %v", err)
	}
	defer admin.Close()

	if _, err := admin.Exec(fmt.Sprintf(`CREATE DATABASE %q`, name)); err != nil {
		t.Fatalf("creating database %s: %v", name, err)
	}

	db, err := database.Open(cfg(name))
	if err != nil {
		t.Fatalf("opening database %s: %v", name, err)
	}

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating database %s: %v", name, err)
	}

	t.Cleanup(func() {
		db.Close()

		admin, err := database.Open(cfg("postgres"))
		if err != nil {
			t.Logf("opening admin connection: %v", err)
			return
		}
		defer admin.Close()

		if _, err := admin.Exec(fmt.Sprintf(`DROP DATABASE IF EXISTS %q WITH (FORCE)`, name)); err != nil {
			t.Logf("dropping database %s: %v", name, err)
		}
	})

	return db
}

func cfg(name string) config.DB {
	return config.DB{
		User:         user,
		Password:     password,
		Host:         host,
		Name:         name,
		MaxIdleConns: 2,
		MaxOpenConns: 10,
		DisableTLS:   true,
	}
}
