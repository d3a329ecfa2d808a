package mainconfig

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/wolfman30/clinic-reminders/internal/config"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// LoadAWSConfig centralizes AWS SDK initialization so every binary shares the
// same LocalStack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("mainconfig: load aws config: %w", err)
	}

	if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
		awsCfg.EndpointResolverWithOptions = localEndpoints(endpoint, cfg.AWSRegion)
	}
	return awsCfg, nil
}

// overriddenServices are the AWS APIs the reminder binaries call; everything
// else keeps its default endpoint.
var overriddenServices = map[string]bool{
	sqs.ServiceID:      true,
	dynamodb.ServiceID: true,
	s3.ServiceID:       true,
	sesv2.ServiceID:    true,
}

// localEndpoints routes the reminder services to a single endpoint, typically
// LocalStack. S3 keeps path-style addressing.
func localEndpoints(endpoint, region string) aws.EndpointResolverWithOptions {
	return aws.EndpointResolverWithOptionsFunc(func(service, _ string, _ ...interface{}) (aws.Endpoint, error) {
		if !overriddenServices[service] {
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		}
		return aws.Endpoint{
			URL:               endpoint,
			PartitionID:       "aws",
			SigningRegion:     region,
			HostnameImmutable: service == s3.ServiceID,
		}, nil
	})
}

// ConnectPostgres opens a pgx pool and pings it. Returns nil when the URL is
// empty or the database is unreachable.
func ConnectPostgres(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(databaseURL) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		logger.Error("invalid DATABASE_URL", "error", err)
		return nil
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("postgres ping failed", "error", err)
		pool.Close()
		return nil
	}
	return pool
}
