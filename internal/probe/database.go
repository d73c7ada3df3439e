package probe

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"stack-keeper/internal/models"
	"stack-keeper/internal/render"
)

// redisPinger is implemented by the real go-redis client and by test doubles.
type redisPinger interface {
	PingResult(ctx context.Context) (string, error)
	Close() error
}

type realRedisPinger struct {
	client *redis.Client
}

func (r *realRedisPinger) PingResult(ctx context.Context) (string, error) {
	return r.client.Ping(ctx).Result()
}

func (r *realRedisPinger) Close() error {
	return r.client.Close()
}

type redisProbe struct {
	host     string
	port     int
	password string
	dial     func(addr, password string) redisPinger
}

func newRedisProbe(spec models.ProbeSpecification) *redisProbe {
	port := spec.Port
	if port == 0 {
		port = 6379
	}
	return &redisProbe{
		host:     spec.Host,
		port:     port,
		password: spec.Password,
		dial: func(addr, password string) redisPinger {
			return &realRedisPinger{client: redis.NewClient(&redis.Options{
				Addr:        addr,
				Password:    password,
				DialTimeout: DefaultTimeout,
				ReadTimeout: DefaultTimeout,
				MaxRetries:  -1,
			})}
		},
	}
}

// Check sends PING and expects PONG.
func (p *redisProbe) Check(ctx context.Context, vars render.Source) error {
	addr := hostPort(render.Render(p.host, vars), p.port)
	client := p.dial(addr, render.Render(p.password, vars))
	defer client.Close()

	ctx, cancel := withTimeout(ctx)
	defer cancel()
	val, err := client.PingResult(ctx)
	if err != nil {
		return fmt.Errorf("redis %s ping: %w", addr, err)
	}
	if val != "PONG" {
		return fmt.Errorf("redis %s: unexpected PING response %q", addr, val)
	}
	return nil
}

// sqlPinger is the subset of *sql.DB used by the MySQL probe.
type sqlPinger interface {
	PingContext(ctx context.Context) error
	Close() error
}

type mysqlProbe struct {
	spec models.ProbeSpecification
	open func(dsn string) (sqlPinger, error)
}

func newMySQLProbe(spec models.ProbeSpecification) *mysqlProbe {
	if spec.Port == 0 {
		spec.Port = 3306
	}
	return &mysqlProbe{
		spec: spec,
		open: func(dsn string) (sqlPinger, error) {
			return sql.Open("mysql", dsn)
		},
	}
}

func (p *mysqlProbe) dsn(vars render.Source) string {
	cfg := mysql.NewConfig()
	cfg.User = render.Render(p.spec.User, vars)
	cfg.Passwd = render.Render(p.spec.Password, vars)
	cfg.Net = "tcp"
	cfg.Addr = hostPort(render.Render(p.spec.Host, vars), p.spec.Port)
	cfg.DBName = render.Render(p.spec.Database, vars)
	cfg.Timeout = DefaultTimeout
	return cfg.FormatDSN()
}

func (p *mysqlProbe) Check(ctx context.Context, vars render.Source) error {
	db, err := p.open(p.dsn(vars))
	if err != nil {
		return fmt.Errorf("mysql open: %w", err)
	}
	defer db.Close()

	ctx, cancel := withTimeout(ctx)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("mysql ping: %w", err)
	}
	return nil
}

// pgPinger is the subset of *pgx.Conn used by the Postgres probe.
type pgPinger interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type postgresProbe struct {
	spec    models.ProbeSpecification
	connect func(ctx context.Context, connString string) (pgPinger, error)
}

func newPostgresProbe(spec models.ProbeSpecification) *postgresProbe {
	if spec.Port == 0 {
		spec.Port = 5432
	}
	return &postgresProbe{
		spec: spec,
		connect: func(ctx context.Context, connString string) (pgPinger, error) {
			return pgx.Connect(ctx, connString)
		},
	}
}

func (p *postgresProbe) connString(vars render.Source) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(render.Render(p.spec.User, vars), render.Render(p.spec.Password, vars)),
		Host:   hostPort(render.Render(p.spec.Host, vars), p.spec.Port),
		Path:   "/" + render.Render(p.spec.Database, vars),
	}
	q := url.Values{}
	q.Set("sslmode", "disable")
	q.Set("connect_timeout", strconv.Itoa(int(DefaultTimeout.Seconds())))
	u.RawQuery = q.Encode()
	return u.String()
}

func (p *postgresProbe) Check(ctx context.Context, vars render.Source) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	conn, err := p.connect(ctx, p.connString(vars))
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	defer conn.Close(context.Background())

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

func hostPort(host string, port int) string {
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
