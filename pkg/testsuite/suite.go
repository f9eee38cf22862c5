package testsuite

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/switq/fast-food-api/pkg/db"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

type options struct {
	kafka bool
	redis bool
}

type Option func(*options)

func WithKafka() Option { return func(o *options) { o.kafka = true } }

func WithRedis() Option { return func(o *options) { o.redis = true } }

type BaseSuite struct {
	suite.Suite
	PgContainer    *postgres.PostgresContainer
	KafkaContainer *kafka.KafkaContainer
	RedisContainer *tcredis.RedisContainer
	DbPool         *pgxpool.Pool
	KafkaBrokers   []string
	RedisAddr      string
	Ctx            context.Context
}

// SetupInfrastructure starts Postgres with migrations applied, plus Kafka and Redis when asked.
func (s *BaseSuite) SetupInfrastructure(migrationsRelPath string, opts ...Option) {
	s.Ctx = context.Background()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var err error
	s.PgContainer, err = postgres.Run(
		s.Ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)

	connStr, err := s.PgContainer.ConnectionString(s.Ctx, "sslmode=disable")
	s.Require().NoError(err)

	if o.kafka {
		s.KafkaContainer, err = kafka.Run(
			s.Ctx,
			"confluentinc/cp-kafka:7.5.0",
			kafka.WithClusterID("test-cluster"),
		)
		s.Require().NoError(err)

		s.KafkaBrokers, err = s.KafkaContainer.Brokers(s.Ctx)
		s.Require().NoError(err)
	}

	if o.redis {
		s.RedisContainer, err = tcredis.Run(s.Ctx, "redis:7-alpine")
		s.Require().NoError(err)

		endpoint, err := s.RedisContainer.Endpoint(s.Ctx, "")
		s.Require().NoError(err)
		s.RedisAddr = endpoint
	}

	absPath, err := filepath.Abs(migrationsRelPath)
	s.Require().NoError(err)

	log.Printf("Running migrations from: %s", absPath)
	s.Require().NoError(db.Migrate(connStr, absPath))

	s.DbPool, err = pgxpool.New(s.Ctx, connStr)
	s.Require().NoError(err)
}

func (s *BaseSuite) TearDownInfrastructure() {
	if s.DbPool != nil {
		s.DbPool.Close()
	}

	containers := map[string]testcontainers.Container{}
	if s.PgContainer != nil {
		containers["postgres"] = s.PgContainer
	}
	if s.KafkaContainer != nil {
		containers["kafka"] = s.KafkaContainer
	}
	if s.RedisContainer != nil {
		containers["redis"] = s.RedisContainer
	}

	for name, c := range containers {
		if err := c.Terminate(s.Ctx); err != nil {
			log.Printf("Failed to terminate %s container: %v", name, err)
		}
	}
}

func (s *BaseSuite) TruncateTable(tableNames ...string) {
	for _, tableName := range tableNames {
		_, err := s.DbPool.Exec(s.Ctx, fmt.Sprintf("TRUNCATE %s CASCADE", tableName))
		s.Require().NoError(err)
	}
}
