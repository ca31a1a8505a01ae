//go:build integration

package testutils

import (
	"context"
	"fmt"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
	_ "gocloud.dev/blob/s3blob"

	"github.com/collegelist/aicte/pkg/store"
)

const (
	minioUser     = "minioadmin"
	minioPassword = "minioadmin"
	minioAlias    = "minio"
)

// Minio is a running MinIO server holding one artifact bucket.
type Minio struct {
	// BucketURL is the s3blob URL of the bucket, usable as --bucket.
	BucketURL string
}

// OpenStore opens an artifact store on the bucket, closed when the test ends.
func (m *Minio) OpenStore(t *testing.T, ctx context.Context) *store.Store {
	t.Helper()
	st, err := store.Open(ctx, m.BucketURL)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// StartMinio runs MinIO with bucket created and points the AWS credential
// variables at it. Containers are removed when the test ends.
func StartMinio(t *testing.T, ctx context.Context, bucket string) *Minio {
	t.Helper()

	nw, err := network.New(ctx)
	if err != nil {
		t.Fatalf("create network: %v", err)
	}
	t.Cleanup(func() { nw.Remove(context.Background()) })

	server := runContainer(t, ctx, testcontainers.ContainerRequest{
		Image:          "minio/minio:latest",
		ExposedPorts:   []string{"9000/tcp"},
		Networks:       []string{nw.Name},
		NetworkAliases: map[string][]string{nw.Name: {minioAlias}},
		Env: map[string]string{
			"MINIO_ROOT_USER":     minioUser,
			"MINIO_ROOT_PASSWORD": minioPassword,
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/ready").WithPort("9000"),
	})

	// The mc client exits once the bucket exists.
	runContainer(t, ctx, testcontainers.ContainerRequest{
		Image:      "minio/mc:latest",
		Networks:   []string{nw.Name},
		Entrypoint: []string{"/bin/sh", "-c"},
		Cmd: []string{fmt.Sprintf("mc alias set local http://%s:9000 %s %s && mc mb --ignore-existing local/%s",
			minioAlias, minioUser, minioPassword, bucket)},
		WaitingFor: wait.ForExit(),
	})

	endpoint, err := server.PortEndpoint(ctx, "9000/tcp", "http")
	if err != nil {
		t.Fatalf("minio endpoint: %v", err)
	}

	t.Setenv("AWS_ACCESS_KEY_ID", minioUser)
	t.Setenv("AWS_SECRET_ACCESS_KEY", minioPassword)

	return &Minio{
		BucketURL: fmt.Sprintf("s3://%s?endpoint=%s&use_path_style=true&disable_https=true&region=us-east-1", bucket, endpoint),
	}
}

func runContainer(t *testing.T, ctx context.Context, req testcontainers.ContainerRequest) testcontainers.Container {
	t.Helper()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s: %v", req.Image, err)
	}
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("terminate %s: %v", req.Image, err)
		}
	})
	return c
}
