package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

const (
	KindNone  = ""
	KindLocal = "local"
	KindS3    = "s3"

	DefaultRegion = "us-east-1"
)

// Target stores copies of a run's deliverables under a run-specific key
// prefix such as "1453/2025.12". It returns where each file went.
type Target interface {
	Archive(ctx context.Context, prefix string, files []string) ([]string, error)
}

type Settings struct {
	Kind    string
	Dir     string
	Bucket  string
	Prefix  string
	Profile string
	Region  string
}

// NewTarget builds the target selected by settings. KindNone yields a nil
// target and no error.
func NewTarget(ctx context.Context, settings Settings) (Target, error) {
	switch settings.Kind {
	case KindNone:
		return nil, nil
	case KindLocal:
		t, err := NewLocalTarget(settings.Dir)
		if err != nil {
			return nil, err
		}
		return t, nil
	case KindS3:
		cfg, err := LoadAWSConfig(ctx, settings.Profile, settings.Region)
		if err != nil {
			return nil, err
		}
		t, err := NewS3Target(s3.NewFromConfig(*cfg), settings.Bucket, settings.Prefix)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown archive kind %q", settings.Kind)
	}
}

type LocalTarget struct {
	dir string
}

func NewLocalTarget(dir string) (*LocalTarget, error) {
	if dir == "" {
		return nil, fmt.Errorf("archive directory is required")
	}
	return &LocalTarget{dir: dir}, nil
}

func (t *LocalTarget) Archive(ctx context.Context, prefix string, files []string) ([]string, error) {
	dest := filepath.Join(t.dir, filepath.FromSlash(prefix))
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	out := make([]string, 0, len(files))
	for _, src := range files {
		target := filepath.Join(dest, filepath.Base(src))
		if err := copyFile(src, target); err != nil {
			return out, fmt.Errorf("archive %s: %w", filepath.Base(src), err)
		}
		zerolog.Ctx(ctx).Debug().Str("file", target).Msg("archived")
		out = append(out, target)
	}
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ObjectPutter is the part of the S3 client the archive uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Target struct {
	client ObjectPutter
	bucket string
	prefix string
}

func NewS3Target(client ObjectPutter, bucket, prefix string) (*S3Target, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client is nil")
	}
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	return &S3Target{client: client, bucket: bucket, prefix: prefix}, nil
}

func (t *S3Target) Archive(ctx context.Context, prefix string, files []string) ([]string, error) {
	out := make([]string, 0, len(files))
	for _, src := range files {
		key := path.Join(t.prefix, prefix, filepath.Base(src))
		if err := t.put(ctx, src, key); err != nil {
			return out, fmt.Errorf("upload %s: %w", filepath.Base(src), err)
		}
		uri := fmt.Sprintf("s3://%s/%s", t.bucket, key)
		zerolog.Ctx(ctx).Debug().Str("object", uri).Msg("archived")
		out = append(out, uri)
	}
	return out, nil
}

func (t *S3Target) put(ctx context.Context, src, key string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: awssdk.String(t.bucket),
		Key:    awssdk.String(key),
		Body:   f,
	})
	return err
}

func LoadAWSConfig(ctx context.Context, profile, region string) (*awssdk.Config, error) {
	if region == "" {
		region = DefaultRegion
	}
	opts := []func(*config.LoadOptions) error{config.WithDefaultRegion(region)}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	return &awsCfg, nil
}
