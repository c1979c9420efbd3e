package remote

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/fortress/internal/fortress"
	"github.com/dmitrijs2005/fortress/internal/fortresscrypto"
)

// sivMetadataKey carries the SIV alongside the object body. S3 returns
// metadata keys lowercased.
const sivMetadataKey = "siv"

// s3API is the slice of the S3 client the store uses.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store keeps encrypted objects in an S3 bucket, one object per database
// object, keyed by hex ID under a per-account prefix. The SIV rides in
// object metadata so the inventory never downloads bodies.
type S3Store struct {
	client s3API
	bucket string
	prefix string
}

// NewS3Store builds a store on the ambient AWS configuration (environment,
// shared config, instance role).
func NewS3Store(ctx context.Context, bucket, prefix string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fortress.ErrTransportFailure, err)
	}
	return &S3Store{client: s3.NewFromConfig(cfg), bucket: bucket, prefix: prefix}, nil
}

// NewS3StoreWithEndpoint builds a store against a custom S3-compatible
// endpoint with static credentials, such as a self-hosted MinIO.
func NewS3StoreWithEndpoint(ctx context.Context, bucket, prefix, endpoint, accessKey, secretKey string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		awsconfig.WithRegion("us-east-1"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fortress.ErrTransportFailure, err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return &S3Store{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *S3Store) key(id fortress.ID) string {
	return s.prefix + id.String()
}

func (s *S3Store) List(ctx context.Context) ([]fortress.RemoteObject, error) {
	var out []fortress.RemoteObject
	var continuation *string

	for {
		page, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: list: %v", fortress.ErrTransportFailure, err)
		}

		for _, item := range page.Contents {
			id, err := fortress.ParseID(strings.TrimPrefix(aws.ToString(item.Key), s.prefix))
			if err != nil {
				// Foreign objects under our prefix are not ours to touch.
				continue
			}
			head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    aws.String(s.key(id)),
			})
			if err != nil {
				return nil, fmt.Errorf("%w: head %s: %v", fortress.ErrTransportFailure, id, err)
			}
			siv, err := parseSiv(head.Metadata[sivMetadataKey])
			if err != nil {
				return nil, err
			}
			out = append(out, fortress.RemoteObject{Id: id, Siv: siv})
		}

		if !aws.ToBool(page.IsTruncated) {
			break
		}
		continuation = page.NextContinuationToken
	}
	return out, nil
}

func (s *S3Store) Get(ctx context.Context, id fortress.ID) (fortresscrypto.SIV, []byte, error) {
	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return fortresscrypto.SIV{}, nil, fmt.Errorf("%w: get %s: %v", fortress.ErrTransportFailure, id, err)
	}
	defer obj.Body.Close()

	siv, err := parseSiv(obj.Metadata[sivMetadataKey])
	if err != nil {
		return fortresscrypto.SIV{}, nil, err
	}
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return fortresscrypto.SIV{}, nil, fmt.Errorf("%w: get %s: %v", fortress.ErrTransportFailure, id, err)
	}
	return siv, data, nil
}

func (s *S3Store) Put(ctx context.Context, id fortress.ID, siv fortresscrypto.SIV, ciphertext []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(s.key(id)),
		Body:     bytes.NewReader(ciphertext),
		Metadata: map[string]string{sivMetadataKey: hex.EncodeToString(siv[:])},
	})
	if err != nil {
		return fmt.Errorf("%w: put %s: %v", fortress.ErrTransportFailure, id, err)
	}
	return nil
}

var (
	_ fortress.ObjectStore = (*S3Store)(nil)
	_ fortress.ObjectStore = (*HTTPStore)(nil)
)
