// Package bootstrap turns a config.Config into a running booth: AWS clients,
// durable storage, the generation client with its providers, and a
// rehydrated orchestrator. Every binary's startup is a short composition of
// these helpers.
package bootstrap

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/claw-cam/internal/auth"
	"github.com/fpang/claw-cam/internal/config"
	"github.com/fpang/claw-cam/internal/generation"
	"github.com/fpang/claw-cam/internal/logging"
	"github.com/fpang/claw-cam/internal/photo"
	"github.com/fpang/claw-cam/internal/s3util"
	"github.com/fpang/claw-cam/internal/store"
)

// SSMAPI is the subset of the SSM client LoadKeysFromSSM needs.
type SSMAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadAWS loads the default AWS config.
func LoadAWS(ctx context.Context) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return cfg, nil
}

// LoadKeysFromSSM reads the key pool from a SecureString or StringList
// parameter holding a comma- or newline-separated list.
func LoadKeysFromSSM(ctx context.Context, client SSMAPI, param string) ([]string, error) {
	start := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &param,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read API keys from SSM %s: %w", param, err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return nil, fmt.Errorf("SSM parameter %s has no value", param)
	}
	keys := auth.SplitKeys(*result.Parameter.Value)
	log.Debug().
		Str("param", param).
		Int("keys", len(keys)).
		Dur("elapsed", time.Since(start)).
		Msg("API keys loaded from SSM")
	return keys, nil
}

// needsAWS reports whether cfg touches any AWS service.
func needsAWS(cfg config.Config) bool {
	switch cfg.Storage {
	case config.StorageS3, config.StorageDynamo, config.StorageAWS:
		return true
	}
	return cfg.SSMKeysParam != "" || cfg.S3Bucket != ""
}

// OpenBackend builds the storage backend named by cfg.Storage. awsCfg is
// only read for the AWS backends.
func OpenBackend(cfg config.Config, awsCfg aws.Config) (store.Backend, error) {
	var backend store.Backend
	switch cfg.Storage {
	case config.StorageSQLite, "":
		b, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		backend = b
	case config.StorageS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("storage %q requires CLAWCAM_S3_BUCKET", cfg.Storage)
		}
		backend = store.NewS3Backend(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix)
	case config.StorageDynamo:
		if cfg.DynamoTable == "" {
			return nil, fmt.Errorf("storage %q requires CLAWCAM_DYNAMO_TABLE", cfg.Storage)
		}
		backend = store.NewDynamoBackend(dynamodb.NewFromConfig(awsCfg), cfg.DynamoTable)
	case config.StorageAWS:
		if cfg.S3Bucket == "" || cfg.DynamoTable == "" {
			return nil, fmt.Errorf("storage %q requires CLAWCAM_S3_BUCKET and CLAWCAM_DYNAMO_TABLE", cfg.Storage)
		}
		backend = &store.SplitBackend{
			Payloads: store.NewS3Backend(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix),
			Settings: store.NewDynamoBackend(dynamodb.NewFromConfig(awsCfg), cfg.DynamoTable),
		}
	case config.StorageNone:
		return store.NopBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}

	if cfg.Compress {
		return store.NewCompressedBackend(backend)
	}
	return backend, nil
}

// NewClient builds the generation client with every provider registered.
// The API URL setting travels on each request, so providers keep their
// built-in endpoints.
func NewClient(cfg config.Config) *generation.Client {
	return generation.NewClient(
		generation.NewKeyPool(cfg.APIKeys),
		cfg.Generation(),
		generation.NewGeminiSDKProvider(""),
		generation.NewGeminiRESTProvider(""),
		generation.NewAgentProvider(cfg.AgentEndpoint, cfg.AgentToken),
	)
}

// Booth is a fully wired, rehydrated booth.
type Booth struct {
	Config       config.Config
	Orchestrator *photo.Orchestrator
	Client       *generation.Client
	Store        *store.Adapter
	// Exporter is set when an S3 bucket is configured.
	Exporter *s3util.Exporter
}

// NewBooth wires cfg into a Booth and rehydrates it from storage. Storage
// failures degrade to an in-memory session; only AWS config errors fail.
func NewBooth(ctx context.Context, cfg config.Config) (*Booth, error) {
	var awsCfg aws.Config
	if needsAWS(cfg) {
		var err error
		if awsCfg, err = LoadAWS(ctx); err != nil {
			return nil, err
		}
	}

	if cfg.SSMKeysParam != "" && len(cfg.APIKeys) == 0 {
		keys, err := LoadKeysFromSSM(ctx, ssm.NewFromConfig(awsCfg), cfg.SSMKeysParam)
		if err != nil {
			log.Warn().Err(err).Msg("Continuing without SSM API keys")
		} else {
			cfg.APIKeys = keys
		}
	}

	adapter := store.Open(cfg.Storage, func() (store.Backend, error) {
		return OpenBackend(cfg, awsCfg)
	})
	client := NewClient(cfg)
	orch := photo.New(photo.Config{
		State:     photo.NewState(cfg.Settings()),
		Store:     adapter,
		Client:    client,
		MaxPhotos: cfg.MaxPhotos,
	})
	orch.Init(ctx)

	b := &Booth{Config: cfg, Orchestrator: orch, Client: client, Store: adapter}
	if cfg.S3Bucket != "" {
		s3Client := s3.NewFromConfig(awsCfg)
		b.Exporter = &s3util.Exporter{
			Client:    s3Client,
			Presigner: s3.NewPresignClient(s3Client),
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
		}
	}
	return b, nil
}

// StartupLog returns a startup logger pre-filled from the booth's config.
func (b *Booth) StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	c := b.Config
	l := logging.NewStartupLogger(name).
		InitDuration(time.Since(initStart)).
		Storage("backend", c.Storage).
		Provider("provider", c.Provider).
		Provider("model", c.Model).
		Provider("keys", strconv.Itoa(b.Client.Keys().Len())).
		Feature("storage", b.Store.Available()).
		Feature("compression", c.Compress).
		Feature("pacing", c.RequestsPerMinute > 0).
		Feature("export", b.Exporter != nil).
		Config("maxPhotos", strconv.Itoa(c.MaxPhotos)).
		Config("maxConcurrent", strconv.Itoa(c.MaxConcurrent)).
		Config("timeout", c.Timeout.String())
	switch c.Storage {
	case config.StorageSQLite:
		l.Storage("path", c.SQLitePath)
	case config.StorageS3, config.StorageDynamo, config.StorageAWS:
		if c.S3Bucket != "" {
			l.Storage("bucket", c.S3Bucket)
		}
		if c.DynamoTable != "" {
			l.Storage("table", c.DynamoTable)
		}
	}
	if c.AgentEndpoint != "" {
		l.Provider("agentEndpoint", c.AgentEndpoint)
	}
	return l
}
